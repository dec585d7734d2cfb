package graph

import (
	"encoding/json"
	"fmt"

	"github.com/protograph/protograph/internal/value"
)

// InputKind tags the three input variants a node may carry.
type InputKind string

const (
	// InputConstant is an inline constant value.
	InputConstant InputKind = "constant"
	// InputNode references a sibling node's output by ID.
	InputNode InputKind = "node"
	// InputParameter references one of the enclosing network's declared
	// input parameters by position.
	InputParameter InputKind = "parameter"
)

// Input is one entry of a node's ordered input list.
type Input struct {
	Kind      InputKind
	Value     value.Value // set for InputConstant
	Node      NodeID      // set for InputNode
	Parameter int         // set for InputParameter
}

// Constant builds a constant input.
func Constant(v value.Value) Input {
	return Input{Kind: InputConstant, Value: v}
}

// FromNode builds an input referencing another node's output.
func FromNode(id NodeID) Input {
	return Input{Kind: InputNode, Node: id}
}

// FromParameter builds an input referencing a declared network parameter.
func FromParameter(index int) Input {
	return Input{Kind: InputParameter, Parameter: index}
}

// inputDoc is the serialized form of an Input. Constants round-trip through
// plain Go values so documents stay hand-editable.
type inputDoc struct {
	Kind      InputKind `json:"kind" yaml:"kind"`
	Value     any       `json:"value,omitempty" yaml:"value,omitempty"`
	Node      NodeID    `json:"node,omitempty" yaml:"node,omitempty"`
	Parameter int       `json:"parameter,omitempty" yaml:"parameter,omitempty"`
}

func (in Input) toDoc() inputDoc {
	doc := inputDoc{Kind: in.Kind, Node: in.Node, Parameter: in.Parameter}
	if in.Kind == InputConstant {
		doc.Value = value.ToGo(in.Value)
	}
	return doc
}

func (in *Input) fromDoc(doc inputDoc) error {
	in.Kind = doc.Kind
	in.Node = doc.Node
	in.Parameter = doc.Parameter
	if doc.Kind == InputConstant {
		v, err := value.FromGo(doc.Value)
		if err != nil {
			return fmt.Errorf("constant input: %w", err)
		}
		in.Value = v
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (in Input) MarshalJSON() ([]byte, error) {
	return json.Marshal(in.toDoc())
}

// UnmarshalJSON implements json.Unmarshaler.
func (in *Input) UnmarshalJSON(data []byte) error {
	var doc inputDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	return in.fromDoc(doc)
}

// MarshalYAML implements yaml.Marshaler.
func (in Input) MarshalYAML() (any, error) {
	return in.toDoc(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (in *Input) UnmarshalYAML(unmarshal func(any) error) error {
	var doc inputDoc
	if err := unmarshal(&doc); err != nil {
		return err
	}
	return in.fromDoc(doc)
}
