package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Marshal produces the storage form of v: object keys in UTF-16 order, no
// HTML escaping, strings and numbers exactly as held.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalCanonical produces the identity form of v. On top of Marshal it
// NFC-normalizes strings (keys included) and rewrites numbers to a single
// spelling, so "1.50" and "1.5" serialize alike.
//
// Use it for hashing only. Payloads are stored and delivered with Marshal.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v, true); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v Value, canonical bool) error {
	switch val := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case String:
		return encodeString(buf, string(val), canonical)
	case Number:
		if !isJSONNumber(string(val)) {
			return fmt.Errorf("invalid number literal %q", string(val))
		}
		if canonical {
			buf.WriteString(canonicalNumber(val))
		} else {
			buf.WriteString(string(val))
		}
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, elem, canonical); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Object:
		keys := val.SortedKeys()
		if canonical {
			keys = normalizedKeys(val)
		}
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k, canonical); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, lookupNormalized(val, k, canonical), canonical); err != nil {
				return fmt.Errorf("object[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported payload type %T", v)
	}
	return nil
}

// normalizedKeys returns the NFC forms of obj's keys in UTF-16 order.
func normalizedKeys(obj Object) []string {
	norms := make(Object, len(obj))
	for k, elem := range obj {
		norms[norm.NFC.String(k)] = elem
	}
	return norms.SortedKeys()
}

func lookupNormalized(obj Object, key string, canonical bool) Value {
	if elem, ok := obj[key]; ok || !canonical {
		return elem
	}
	for k, elem := range obj {
		if norm.NFC.String(k) == key {
			return elem
		}
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string, canonical bool) error {
	if canonical {
		s = norm.NFC.String(s)
	}
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte("\n"))
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators undoes encoding/json's \u2028 and \u2029 escapes.
// An escape preceded by an odd run of backslashes is literal text and is kept.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+5 < len(data) && data[i+1] == 'u' &&
			string(data[i+2:i+5]) == "202" && (data[i+5] == '8' || data[i+5] == '9') {
			run := 0
			for j := len(out) - 1; j >= 0 && out[j] == '\\'; j-- {
				run++
			}
			if run%2 == 0 {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
		}
		out = append(out, data[i])
	}
	return out
}

// canonicalNumber renders integers in plain decimal and everything else in
// the shortest round-tripping float form.
func canonicalNumber(n Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		// Integer literal outside int64 range.
		return s
	}
	f, err := n.Float64()
	if err != nil {
		return s
	}
	if f == float64(int64(f)) && f < 1e15 && f > -1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
