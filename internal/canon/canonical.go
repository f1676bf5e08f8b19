package canon

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces the canonical JSON encoding of v.
// This is the only serialization that may feed a hash.
//
// Accepted inputs are the sealed Value types plus string, bool, int, int64,
// float64, []any, []string, []float64, map[string]any and map[string]float64.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v, "$"); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustMarshalCanonical is like MarshalCanonical but panics on error.
// Use only in tests or with values built from finite constants.
func MustMarshalCanonical(v any) []byte {
	data, err := MarshalCanonical(v)
	if err != nil {
		panic(err)
	}
	return data
}

func writeValue(buf *bytes.Buffer, v any, path string) error {
	switch val := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case String:
		writeString(buf, string(val))
	case string:
		writeString(buf, val)
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case int:
		buf.WriteString(strconv.Itoa(val))
	case Float:
		return writeFloat(buf, float64(val), path)
	case float64:
		return writeFloat(buf, val, path)
	case Bool:
		writeBool(buf, bool(val))
	case bool:
		writeBool(buf, val)
	case Array:
		return writeArray(buf, len(val), func(i int) any { return val[i] }, path)
	case []any:
		return writeArray(buf, len(val), func(i int) any { return val[i] }, path)
	case []string:
		return writeArray(buf, len(val), func(i int) any { return val[i] }, path)
	case []float64:
		return writeArray(buf, len(val), func(i int) any { return val[i] }, path)
	case Object:
		m := make(map[string]any, len(val))
		for k, elem := range val {
			m[k] = elem
		}
		return writeObject(buf, m, path)
	case map[string]any:
		return writeObject(buf, val, path)
	case map[string]float64:
		m := make(map[string]any, len(val))
		for k, elem := range val {
			m[k] = elem
		}
		return writeObject(buf, m, path)
	default:
		return &SerializationError{Path: path, Reason: ReasonUnsupportedType, Detail: fmt.Sprintf("%T", v)}
	}
	return nil
}

func writeBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteString("true")
		return
	}
	buf.WriteString("false")
}

func writeArray(buf *bytes.Buffer, n int, at func(int) any, path string) error {
	buf.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(buf, at(i), fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

// writeObject normalizes keys before sorting so that two spellings of the
// same NFC key cannot both appear in the output.
func writeObject(buf *bytes.Buffer, obj map[string]any, path string) error {
	normalized := make(map[string]any, len(obj))
	for k, v := range obj {
		nk := norm.NFC.String(k)
		if _, dup := normalized[nk]; dup {
			return &SerializationError{Path: path, Reason: ReasonDuplicateKey, Detail: strconv.Quote(nk)}
		}
		normalized[nk] = v
	}

	keys := make([]string, 0, len(normalized))
	for k := range normalized {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeEscaped(buf, k)
		buf.WriteByte(':')
		if err := writeValue(buf, normalized[k], path+"."+k); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeEscaped(buf, norm.NFC.String(s))
}

// writeEscaped writes s as an ASCII-only JSON string. Printable ASCII passes
// through; everything else uses short escapes or lowercase \uXXXX, with
// surrogate pairs above the BMP.
func writeEscaped(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			switch {
			case r >= 0x20 && r <= 0x7e:
				buf.WriteRune(r)
			case r > 0xffff:
				hi, lo := utf16.EncodeRune(r)
				fmt.Fprintf(buf, `\u%04x\u%04x`, hi, lo)
			default:
				fmt.Fprintf(buf, `\u%04x`, r)
			}
		}
	}
	buf.WriteByte('"')
}

func writeFloat(buf *bytes.Buffer, x float64, path string) error {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return &SerializationError{Path: path, Reason: ReasonNonFiniteFloat, Detail: strconv.FormatFloat(x, 'g', -1, 64)}
	}
	buf.WriteString(FormatFloat(Round6(x)))
	return nil
}

// Round6 rounds x to 6 decimal places, ties to even on the exact binary
// value. NaN and Inf are returned unchanged.
func Round6(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	// strconv rounds the exact decimal expansion of x, ties to even.
	r, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 6, 64), 64)
	if err != nil {
		return x
	}
	return r
}

// FormatFloat writes a finite float in shortest round-trip form:
// fixed notation with at least one fractional digit for exponents in
// [-4, 16), scientific ("1e-05", "1.5e+16") otherwise.
func FormatFloat(x float64) string {
	if x == 0 {
		if math.Signbit(x) {
			return "-0.0"
		}
		return "0.0"
	}

	s := strconv.FormatFloat(x, 'e', -1, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	mant, expPart, _ := strings.Cut(s, "e")
	exp, _ := strconv.Atoi(expPart)
	digits := strings.Replace(mant, ".", "", 1)

	var out string
	switch {
	case exp < -4 || exp >= 16:
		out = digits[:1]
		if len(digits) > 1 {
			out += "." + digits[1:]
		}
		sign := "+"
		if exp < 0 {
			sign = "-"
			exp = -exp
		}
		out += fmt.Sprintf("e%s%02d", sign, exp)
	case exp < 0:
		out = "0." + strings.Repeat("0", -exp-1) + digits
	case len(digits) <= exp+1:
		out = digits + strings.Repeat("0", exp+1-len(digits)) + ".0"
	default:
		out = digits[:exp+1] + "." + digits[exp+1:]
	}

	if neg {
		return "-" + out
	}
	return out
}
