package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// PropertyKind enumerates the value shapes an extended profile property may
// legally take on the wire.
type PropertyKind int

const (
	KindNull PropertyKind = iota
	KindString
	KindNumber
	KindBool
	KindStructured
)

func (k PropertyKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindStructured:
		return "structured"
	default:
		return "null"
	}
}

// PropertyValue is a tagged variant over the legal extended profile value
// shapes: null, string, number, boolean, or a structured (object/array)
// JSON document. The zero value is the null value.
type PropertyValue struct {
	kind       PropertyKind
	str        string
	num        float64
	boolean    bool
	structured json.RawMessage
}

func NullValue() PropertyValue               { return PropertyValue{} }
func StringValue(s string) PropertyValue     { return PropertyValue{kind: KindString, str: s} }
func NumberValue(f float64) PropertyValue    { return PropertyValue{kind: KindNumber, num: f} }
func BoolValue(b bool) PropertyValue         { return PropertyValue{kind: KindBool, boolean: b} }

// StructuredValue wraps a JSON object or array document. The raw bytes are
// retained verbatim.
func StructuredValue(raw json.RawMessage) PropertyValue {
	return PropertyValue{kind: KindStructured, structured: raw}
}

func (v PropertyValue) Kind() PropertyKind { return v.kind }
func (v PropertyValue) IsNull() bool       { return v.kind == KindNull }

// Str returns the string payload; zero for non-string values.
func (v PropertyValue) Str() string { return v.str }

// Num returns the numeric payload; zero for non-number values.
func (v PropertyValue) Num() float64 { return v.num }

// Bool returns the boolean payload; false for non-bool values.
func (v PropertyValue) Bool() bool { return v.boolean }

// Structured returns the raw JSON document for structured values, nil
// otherwise.
func (v PropertyValue) Structured() json.RawMessage { return v.structured }

// Equal reports whether two property values have the same kind and payload.
// Structured values compare by compacted byte equality.
func (v PropertyValue) Equal(o PropertyValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.boolean == o.boolean
	case KindStructured:
		return bytes.Equal(compactJSON(v.structured), compactJSON(o.structured))
	default:
		return true
	}
}

// MarshalJSON renders the value in its wire form.
func (v PropertyValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.boolean)
	case KindStructured:
		return append([]byte(nil), v.structured...), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts any wire value, coercing unsupported shapes to null.
func (v *PropertyValue) UnmarshalJSON(b []byte) error {
	pv, _ := PropertyValueFromJSON(b)
	*v = pv
	return nil
}

// PropertyValueFromJSON converts an untyped remote payload into a tagged
// PropertyValue. It is total: any payload outside the legal union (absent,
// truncated, or otherwise unparseable) is coerced to null, and the second
// return reports that a coercion happened so the caller can warn.
func PropertyValueFromJSON(raw json.RawMessage) (PropertyValue, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return NullValue(), true
	}
	switch trimmed[0] {
	case 'n':
		return NullValue(), false
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return NullValue(), true
		}
		return StringValue(s), false
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return NullValue(), true
		}
		return BoolValue(b), false
	case '{', '[':
		return StructuredValue(append(json.RawMessage(nil), trimmed...)), false
	default:
		f, err := strconv.ParseFloat(string(trimmed), 64)
		if err != nil {
			return NullValue(), true
		}
		return NumberValue(f), false
	}
}

func compactJSON(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
