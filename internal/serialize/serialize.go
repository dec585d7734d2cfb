// Package serialize encodes graph documents for persistence and transport.
// The editor layer owns save/undo semantics; this package only provides the
// byte-level envelope: a codec (json or msgpack) plus optional zstd
// compression.
package serialize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/protograph/protograph/internal/graph"
)

// Codec encodes and decodes one document representation.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Name() string
}

// Compression selects the envelope compression.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// Serializer is a codec plus compression pairing.
type Serializer struct {
	codec       Codec
	compression Compression
}

// New returns a serializer with the given codec and compression.
func New(codec Codec, compression Compression) *Serializer {
	return &Serializer{codec: codec, compression: compression}
}

// Default returns the compact pairing used by the document store: msgpack
// with zstd.
func Default() *Serializer {
	return New(MsgpackCodec{}, CompressionZstd)
}

// Serialize encodes and compresses v.
func (s *Serializer) Serialize(v any) ([]byte, error) {
	data, err := s.codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("encode (%s): %w", s.codec.Name(), err)
	}
	data, err = s.compress(data)
	if err != nil {
		return nil, fmt.Errorf("compress (%s): %w", s.compression, err)
	}
	return data, nil
}

// Deserialize decompresses and decodes data into v.
func (s *Serializer) Deserialize(data []byte, v any) error {
	data, err := s.decompress(data)
	if err != nil {
		return fmt.Errorf("decompress (%s): %w", s.compression, err)
	}
	if err := s.codec.Decode(data, v); err != nil {
		return fmt.Errorf("decode (%s): %w", s.codec.Name(), err)
	}
	return nil
}

// MarshalNetwork serializes a graph document. The network passes through its
// JSON document form first, so constants serialize identically under every
// codec.
func (s *Serializer) MarshalNetwork(nw *graph.NodeNetwork) ([]byte, error) {
	raw, err := json.Marshal(nw)
	if err != nil {
		return nil, fmt.Errorf("marshal network: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("marshal network: %w", err)
	}
	return s.Serialize(doc)
}

// UnmarshalNetwork reverses MarshalNetwork.
func (s *Serializer) UnmarshalNetwork(data []byte) (*graph.NodeNetwork, error) {
	var doc any
	if err := s.Deserialize(data, &doc); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("unmarshal network: %w", err)
	}
	nw := graph.New()
	if err := json.Unmarshal(raw, nw); err != nil {
		return nil, fmt.Errorf("unmarshal network: %w", err)
	}
	return nw, nil
}

func (s *Serializer) compress(data []byte) ([]byte, error) {
	switch s.compression {
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return data, nil
	}
}

func (s *Serializer) decompress(data []byte) ([]byte, error) {
	switch s.compression {
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	default:
		return data, nil
	}
}

// JSONCodec encodes documents as JSON.
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error)    { return json.Marshal(v) }
func (JSONCodec) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSONCodec) Name() string                    { return "json" }

// MsgpackCodec encodes documents as MessagePack.
type MsgpackCodec struct{}

func (MsgpackCodec) Encode(v any) ([]byte, error)    { return msgpack.Marshal(v) }
func (MsgpackCodec) Decode(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
func (MsgpackCodec) Name() string                    { return "msgpack" }
