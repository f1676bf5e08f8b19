// Package canon provides the canonical JSON encoding and hashing used for
// commit markers and replay verification.
//
// This package has no internal imports. Every other package that needs a
// byte-stable representation of a value goes through MarshalCanonical.
//
// Encoding rules:
//   - Object keys sorted by Unicode code point at every nesting level
//   - No whitespace; "," and ":" separators
//   - Floats rounded to 6 decimals (round-half-to-even on the exact binary
//     value) and written in shortest round-trip form ("1.0", "5e-05")
//   - Strings NFC normalized and written ASCII-only with \uXXXX escapes
//   - NaN and Inf are rejected with a SerializationError
//
// The output is byte-identical to Python's
// json.dumps(obj, sort_keys=True, separators=(",", ":")) applied to the same
// values pre-rounded with round(x, 6), for NFC input.
package canon
