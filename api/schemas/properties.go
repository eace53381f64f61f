package schemas

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"regexp"
	"sort"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// codec is the json-iterator configuration used for every property payload.
var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// numberLiteral matches a JSON number as defined by RFC 8259.
var numberLiteral = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// Kind identifies which variant of a property Value is populated.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a JSON value stored on a node or edge. It is a tagged union: exactly
// one payload field is meaningful, selected by kind. The zero Value is null.
//
// Numbers keep their JSON literal so integers wider than a float64 mantissa
// survive a storage round-trip unchanged.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	str  string
	arr  []Value
	obj  map[string]Value
}

// Null returns the JSON null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int wraps an integer.
func Int(i int64) Value { return Value{kind: KindNumber, num: json.Number(strconv.FormatInt(i, 10))} }

// Float wraps a float. NaN and infinities are not representable in JSON and
// fail at encode time.
func Float(f float64) Value {
	return Value{kind: KindNumber, num: json.Number(strconv.FormatFloat(f, 'g', -1, 64))}
}

// Number wraps a JSON number literal.
func Number(n json.Number) Value { return Value{kind: KindNumber, num: n} }

// Array wraps an ordered list of values.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

// Object wraps a string-keyed map of values.
func Object(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindObject, obj: fields}
}

// Kind reports the populated variant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is JSON null.
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)         { return v.b, v.kind == KindBool }
func (v Value) AsString() (string, bool)     { return v.str, v.kind == KindString }
func (v Value) AsNumber() (json.Number, bool) { return v.num, v.kind == KindNumber }
func (v Value) AsArray() ([]Value, bool)     { return v.arr, v.kind == KindArray }
func (v Value) AsObject() (map[string]Value, bool) {
	return v.obj, v.kind == KindObject
}

// AsFloat64 returns the numeric value as a float64.
func (v Value) AsFloat64() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := v.num.Float64()
	return f, err == nil
}

// AsInt64 returns the numeric value as an int64 when it is integral.
func (v Value) AsInt64() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	i, err := v.num.Int64()
	return i, err == nil
}

// Interface converts v to plain Go values: nil, bool, json.Number, string,
// []any or map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalYAML renders numbers as int64 or float64 so YAML output keeps them unquoted.
func (v Value) MarshalYAML() (interface{}, error) {
	switch v.kind {
	case KindNumber:
		if i, ok := v.AsInt64(); ok {
			return i, nil
		}
		f, _ := v.AsFloat64()
		return f, nil
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			y, err := item.MarshalYAML()
			if err != nil {
				return nil, err
			}
			out[i] = y
		}
		return out, nil
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			y, err := item.MarshalYAML()
			if err != nil {
				return nil, err
			}
			out[k] = y
		}
		return out, nil
	default:
		return v.Interface(), nil
	}
}

// Equal reports deep equality. Numbers compare by exact rational value, so
// "1.50" equals "1.5"; storage engines are free to re-render number literals.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.str == o.str
	case KindNumber:
		if v.num == o.num {
			return true
		}
		a, okA := new(big.Rat).SetString(string(v.num))
		b, okB := new(big.Rat).SetString(string(o.num))
		return okA && okB && a.Cmp(b) == 0
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return Properties(v.obj).Equal(Properties(o.obj))
	}
	return false
}

// FromAny converts plain Go data into a Value. Types without a direct mapping
// are round-tripped through their JSON encoding.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		if !numberLiteral.MatchString(string(t)) {
			return Value{}, fmt.Errorf("invalid number literal %q", t)
		}
		return Number(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint:
		return Number(json.Number(strconv.FormatUint(uint64(t), 10))), nil
	case uint64:
		return Number(json.Number(strconv.FormatUint(t, 10))), nil
	case float32:
		return floatValue(float64(t))
	case float64:
		return floatValue(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = v
		}
		return Array(items...), nil
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			fields[k] = v
		}
		return Object(fields), nil
	case Properties:
		return Object(t.Clone()), nil
	}

	raw, err := codec.Marshal(x)
	if err != nil {
		return Value{}, fmt.Errorf("unsupported property value of type %T: %w", x, err)
	}
	var v Value
	if err := v.UnmarshalJSON(raw); err != nil {
		return Value{}, err
	}
	return v, nil
}

func floatValue(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("non-finite number %v is not valid JSON", f)
	}
	return Float(f), nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	stream := codec.BorrowStream(nil)
	defer codec.ReturnStream(stream)
	if err := writeValue(stream, v); err != nil {
		return nil, err
	}
	if stream.Error != nil {
		return nil, stream.Error
	}
	out := make([]byte, len(stream.Buffer()))
	copy(out, stream.Buffer())
	return out, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	iter := codec.BorrowIterator(data)
	defer codec.ReturnIterator(iter)
	parsed := readValue(iter)
	if iter.Error != nil {
		return fmt.Errorf("failed to decode property value: %w", iter.Error)
	}
	// Anything but end of input after the value is trailing data.
	iter.WhatIsNext()
	if !errors.Is(iter.Error, io.EOF) {
		return errors.New("failed to decode property value: unexpected data after JSON value")
	}
	*v = parsed
	return nil
}

func writeValue(stream *jsoniter.Stream, v Value) error {
	switch v.kind {
	case KindNull:
		stream.WriteNil()
	case KindBool:
		stream.WriteBool(v.b)
	case KindNumber:
		if !numberLiteral.MatchString(string(v.num)) {
			return fmt.Errorf("invalid number literal %q", v.num)
		}
		stream.WriteRaw(string(v.num))
	case KindString:
		stream.WriteString(v.str)
	case KindArray:
		stream.WriteArrayStart()
		for i, item := range v.arr {
			if i > 0 {
				stream.WriteMore()
			}
			if err := writeValue(stream, item); err != nil {
				return err
			}
		}
		stream.WriteArrayEnd()
	case KindObject:
		return writeObject(stream, v.obj)
	default:
		return fmt.Errorf("unknown property kind %s", v.kind)
	}
	return nil
}

// writeObject emits keys in sorted order so encodings are byte-stable.
func writeObject(stream *jsoniter.Stream, fields map[string]Value) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	stream.WriteObjectStart()
	for i, k := range keys {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(k)
		if err := writeValue(stream, fields[k]); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
	}
	stream.WriteObjectEnd()
	return nil
}

func readValue(iter *jsoniter.Iterator) Value {
	switch iter.WhatIsNext() {
	case jsoniter.NilValue:
		iter.ReadNil()
		return Null()
	case jsoniter.BoolValue:
		return Bool(iter.ReadBool())
	case jsoniter.NumberValue:
		n := iter.ReadNumber()
		// A number that ends the buffer leaves io.EOF behind without being truncated.
		if errors.Is(iter.Error, io.EOF) {
			iter.Error = nil
		}
		if iter.Error == nil && !numberLiteral.MatchString(string(n)) {
			iter.ReportError("readValue", fmt.Sprintf("invalid number literal %q", string(n)))
		}
		return Number(n)
	case jsoniter.StringValue:
		return String(iter.ReadString())
	case jsoniter.ArrayValue:
		items := []Value{}
		iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			items = append(items, readValue(it))
			return it.Error == nil
		})
		return Array(items...)
	case jsoniter.ObjectValue:
		fields := map[string]Value{}
		iter.ReadMapCB(func(it *jsoniter.Iterator, key string) bool {
			fields[key] = readValue(it)
			return it.Error == nil
		})
		return Object(fields)
	default:
		iter.ReportError("readValue", "unexpected token")
		return Null()
	}
}

// Properties is the property map attached to nodes and edges.
type Properties map[string]Value

// MarshalJSON encodes p as a JSON object; a nil map encodes as {}.
func (p Properties) MarshalJSON() ([]byte, error) {
	stream := codec.BorrowStream(nil)
	defer codec.ReturnStream(stream)
	if err := writeObject(stream, p); err != nil {
		return nil, err
	}
	if stream.Error != nil {
		return nil, stream.Error
	}
	out := make([]byte, len(stream.Buffer()))
	copy(out, stream.Buffer())
	return out, nil
}

// UnmarshalJSON accepts a JSON object or null.
func (p *Properties) UnmarshalJSON(data []byte) error {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	switch v.kind {
	case KindNull:
		*p = Properties{}
	case KindObject:
		*p = Properties(v.obj)
	default:
		return fmt.Errorf("properties must be a JSON object, got %s", v.kind)
	}
	return nil
}

// Equal reports whether both maps hold the same keys with equal values.
func (p Properties) Equal(o Properties) bool {
	if len(p) != len(o) {
		return false
	}
	for k, v := range p {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy; Values are immutable once built.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// PropertiesFromMap converts plain Go data into Properties.
func PropertiesFromMap(m map[string]any) (Properties, error) {
	out := make(Properties, len(m))
	for k, raw := range m {
		v, err := FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// EncodeProperties serializes p into the JSON text stored by every backend.
func EncodeProperties(p Properties) ([]byte, error) {
	return p.MarshalJSON()
}

// DecodeProperties parses stored JSON text. Empty input and null decode to an
// empty map.
func DecodeProperties(data []byte) (Properties, error) {
	if len(data) == 0 {
		return Properties{}, nil
	}
	var p Properties
	if err := p.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return p, nil
}
