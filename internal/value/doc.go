// Package value provides the closed tagged value variant that flows through
// the node graph, together with the shallow type descriptors used by the
// compiler's type check.
//
// This package contains value and type definitions only. All other internal
// packages import value; value imports nothing internal. This keeps it the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - The Value interface is sealed: only the kinds defined here implement
//     it, plus Opaque as the single type-erased fallback for host-defined
//     payloads (render trees, images, font handles).
//   - Canonical encoding is the ONLY serialization used for content-addressed
//     identity computation. Map keys are ordered by UTF-16 code units and
//     strings are NFC normalized, so the same logical value always hashes to
//     the same identity.
//   - Floats are encoded in shortest round-trip form; NaN and infinities are
//     rejected because they have no canonical encoding.
package value
