package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/cuemby/fleetguard/pkg/fleetguarderr"
)

const maxDepth = 64

// Canonicalize converts v (any JSON-marshalable record) to its canonical
// byte form: UTF-8 JSON, object keys sorted ascending, no insignificant
// whitespace, integers in minimal form, no trailing newline.
//
// v is first marshaled with the standard encoding/json so that struct
// tags and custom MarshalJSON methods are honored, then re-decoded into a
// generic tree and re-emitted in canonical order. This two-pass approach
// means canonicalization works uniformly over structs, maps, and
// already-decoded map[string]interface{} values alike.
func Canonicalize(v any) ([]byte, error) {
	const op = "canon.Canonicalize"

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fleetguarderr.New(op, fleetguarderr.Malformed, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fleetguarderr.New(op, fleetguarderr.Malformed, err)
	}

	var buf bytes.Buffer
	if err := encodeValue(&buf, generic, 0); err != nil {
		return nil, fleetguarderr.New(op, fleetguarderr.Malformed, err)
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("record nesting exceeds %d levels", maxDepth)
	}
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		return encodeNumber(buf, val)
	case string:
		return encodeString(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, elem, depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			if !utf8.ValidString(k) {
				return fmt.Errorf("non-UTF-8 object key %q", k)
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encodeValue(buf, val[k], depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported record value of type %T", v)
	}
	return nil
}

// encodeNumber emits n in minimal form: integers with no fractional part
// or exponent are written as plain decimal integers; anything else is
// written via the shortest round-tripping float representation. Non-finite
// values cannot occur here because encoding/json already rejects them
// during the initial Marshal.
func encodeNumber(buf *bytes.Buffer, n json.Number) error {
	s := n.String()
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		buf.WriteString(strconv.FormatInt(i, 10))
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("non-finite number %q", s)
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

// encodeString writes s as a minimal, non-HTML-escaped JSON string literal
// so canonical output never depends on the eventual transport (HTML
// embedding must not change what gets signed).
func encodeString(buf *bytes.Buffer, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("non-UTF-8 string value")
	}
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
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
	return nil
}
