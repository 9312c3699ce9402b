package message

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nasa/GMSEC-API-sub012/errors"
)

// FieldType identifies the scalar kind of a field value
type FieldType int

// Field types understood by the message model and the schema definitions
const (
	TypeChar FieldType = iota
	TypeBool
	TypeI8
	TypeI16
	TypeI32
	TypeI64
	TypeU8
	TypeU16
	TypeU32
	TypeU64
	TypeF32
	TypeF64
	TypeString
	TypeBinary
)

var fieldTypeNames = []string{
	"CHAR", "BOOL", "I8", "I16", "I32", "I64", "U8", "U16", "U32", "U64", "F32", "F64", "STRING", "BINARY",
}

// String returns the schema type string
func (t FieldType) String() string {
	if t < 0 || int(t) >= len(fieldTypeNames) {
		return "UNSET"
	}
	return fieldTypeNames[t]
}

// ParseFieldType maps a schema type string to a FieldType
func ParseFieldType(s string) (FieldType, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range fieldTypeNames {
		if name == upper {
			return FieldType(i), nil
		}
	}
	return 0, errors.Newf(errors.ErrInvalidType, "unknown field type %q", s)
}

// IsSigned reports whether t is a signed integer type
func (t FieldType) IsSigned() bool {
	return t >= TypeI8 && t <= TypeI64
}

// IsUnsigned reports whether t is an unsigned integer type
func (t FieldType) IsUnsigned() bool {
	return t >= TypeU8 && t <= TypeU64
}

// IsFloat reports whether t is a floating point type
func (t FieldType) IsFloat() bool {
	return t == TypeF32 || t == TypeF64
}

// IsNumeric reports whether t holds a number
func (t FieldType) IsNumeric() bool {
	return t.IsSigned() || t.IsUnsigned() || t.IsFloat()
}

// MaxInteger returns the largest value representable by an integer type.
func (t FieldType) MaxInteger() (uint64, bool) {
	switch t {
	case TypeI8:
		return math.MaxInt8, true
	case TypeI16:
		return math.MaxInt16, true
	case TypeI32:
		return math.MaxInt32, true
	case TypeI64:
		return math.MaxInt64, true
	case TypeU8:
		return math.MaxUint8, true
	case TypeU16:
		return math.MaxUint16, true
	case TypeU32:
		return math.MaxUint32, true
	case TypeU64:
		return math.MaxUint64, true
	default:
		return 0, false
	}
}

// minInteger returns the smallest value representable by a signed type
func (t FieldType) minInteger() int64 {
	switch t {
	case TypeI8:
		return math.MinInt8
	case TypeI16:
		return math.MinInt16
	case TypeI32:
		return math.MinInt32
	case TypeI64:
		return math.MinInt64
	default:
		return 0
	}
}

// Field is a named, typed value carried by a Message
type Field struct {
	name   string
	ftype  FieldType
	value  any
	header bool
}

func newField(name string, t FieldType, v any) *Field {
	return &Field{name: strings.ToUpper(name), ftype: t, value: v}
}

// NewCharField creates a CHAR field
func NewCharField(name string, v byte) *Field { return newField(name, TypeChar, v) }

// NewBoolField creates a BOOL field
func NewBoolField(name string, v bool) *Field { return newField(name, TypeBool, v) }

// NewI8Field creates an I8 field
func NewI8Field(name string, v int8) *Field { return newField(name, TypeI8, v) }

// NewI16Field creates an I16 field
func NewI16Field(name string, v int16) *Field { return newField(name, TypeI16, v) }

// NewI32Field creates an I32 field
func NewI32Field(name string, v int32) *Field { return newField(name, TypeI32, v) }

// NewI64Field creates an I64 field
func NewI64Field(name string, v int64) *Field { return newField(name, TypeI64, v) }

// NewU8Field creates a U8 field
func NewU8Field(name string, v uint8) *Field { return newField(name, TypeU8, v) }

// NewU16Field creates a U16 field
func NewU16Field(name string, v uint16) *Field { return newField(name, TypeU16, v) }

// NewU32Field creates a U32 field
func NewU32Field(name string, v uint32) *Field { return newField(name, TypeU32, v) }

// NewU64Field creates a U64 field
func NewU64Field(name string, v uint64) *Field { return newField(name, TypeU64, v) }

// NewF32Field creates an F32 field
func NewF32Field(name string, v float32) *Field { return newField(name, TypeF32, v) }

// NewF64Field creates an F64 field
func NewF64Field(name string, v float64) *Field { return newField(name, TypeF64, v) }

// NewStringField creates a STRING field
func NewStringField(name string, v string) *Field { return newField(name, TypeString, v) }

// NewBinaryField creates a BINARY field; the bytes are copied
func NewBinaryField(name string, v []byte) *Field {
	return newField(name, TypeBinary, append([]byte(nil), v...))
}

// NewIntegerField creates an integer field of type t, rejecting values
// outside the range of t.
func NewIntegerField(name string, t FieldType, v int64) (*Field, error) {
	switch {
	case t.IsSigned():
		if v < t.minInteger() {
			return nil, errors.Newf(errors.ErrFieldConversion, "value %d out of range for %s", v, t)
		}
		if maxVal, _ := t.MaxInteger(); v > int64(maxVal) {
			return nil, errors.Newf(errors.ErrFieldConversion, "value %d out of range for %s", v, t)
		}
	case t.IsUnsigned():
		if v < 0 {
			return nil, errors.Newf(errors.ErrFieldConversion, "value %d out of range for %s", v, t)
		}
		if maxVal, _ := t.MaxInteger(); uint64(v) > maxVal {
			return nil, errors.Newf(errors.ErrFieldConversion, "value %d out of range for %s", v, t)
		}
	default:
		return nil, errors.Newf(errors.ErrInvalidType, "%s is not an integer type", t)
	}
	return NewFieldFromString(name, t, strconv.FormatInt(v, 10))
}

// NewFieldFromString parses text as a value of type t
func NewFieldFromString(name string, t FieldType, text string) (*Field, error) {
	var (
		v   any
		err error
	)

	switch t {
	case TypeChar:
		if len(text) != 1 {
			err = fmt.Errorf("CHAR requires exactly one byte, got %q", text)
		} else {
			v = text[0]
		}
	case TypeBool:
		v, err = parseBool(text)
	case TypeI8, TypeI16, TypeI32, TypeI64:
		var n int64
		n, err = strconv.ParseInt(strings.TrimSpace(text), 10, bitSize(t))
		v = narrowSigned(t, n)
	case TypeU8, TypeU16, TypeU32, TypeU64:
		var n uint64
		n, err = strconv.ParseUint(strings.TrimSpace(text), 10, bitSize(t))
		v = narrowUnsigned(t, n)
	case TypeF32:
		var f float64
		f, err = strconv.ParseFloat(strings.TrimSpace(text), 32)
		v = float32(f)
	case TypeF64:
		v, err = strconv.ParseFloat(strings.TrimSpace(text), 64)
	case TypeString:
		v = text
	case TypeBinary:
		v, err = hex.DecodeString(text)
	default:
		return nil, errors.Newf(errors.ErrInvalidType, "unsupported field type %d", int(t))
	}

	if err != nil {
		return nil, errors.Newf(errors.ErrFieldConversion, "field %s: cannot convert %q to %s: %v", name, text, t, err)
	}
	return newField(name, t, v), nil
}

func parseBool(text string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", text)
}

func bitSize(t FieldType) int {
	switch t {
	case TypeI8, TypeU8:
		return 8
	case TypeI16, TypeU16:
		return 16
	case TypeI32, TypeU32:
		return 32
	default:
		return 64
	}
}

func narrowSigned(t FieldType, n int64) any {
	switch t {
	case TypeI8:
		return int8(n)
	case TypeI16:
		return int16(n)
	case TypeI32:
		return int32(n)
	default:
		return n
	}
}

func narrowUnsigned(t FieldType, n uint64) any {
	switch t {
	case TypeU8:
		return uint8(n)
	case TypeU16:
		return uint16(n)
	case TypeU32:
		return uint32(n)
	default:
		return n
	}
}

// Name returns the field name (always upper case)
func (f *Field) Name() string { return f.name }

// Type returns the field type
func (f *Field) Type() FieldType { return f.ftype }

// Value returns the raw Go value
func (f *Field) Value() any { return f.value }

// IsHeader reports whether the field is a header field
func (f *Field) IsHeader() bool { return f.header }

// SetHeader marks the field as header or standard
func (f *Field) SetHeader(header bool) { f.header = header }

// Copy returns an independent copy of the field
func (f *Field) Copy() *Field {
	c := *f
	if b, ok := f.value.([]byte); ok {
		c.value = append([]byte(nil), b...)
	}
	return &c
}

// StringValue renders the value as text
func (f *Field) StringValue() string {
	switch v := f.value.(type) {
	case byte:
		if f.ftype == TypeChar {
			return string(rune(v))
		}
		return strconv.FormatUint(uint64(v), 10)
	case bool:
		return strconv.FormatBool(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return v
	case []byte:
		return strings.ToUpper(hex.EncodeToString(v))
	default:
		return fmt.Sprint(v)
	}
}

// I64Value returns the value as a signed integer
func (f *Field) I64Value() (int64, error) {
	switch {
	case f.ftype.IsSigned():
		return reflectSigned(f.value), nil
	case f.ftype.IsUnsigned():
		u := reflectUnsigned(f.value)
		if u > math.MaxInt64 {
			return 0, f.conversionError("I64")
		}
		return int64(u), nil
	case f.ftype.IsFloat():
		return int64(reflectFloat(f.value)), nil
	case f.ftype == TypeChar:
		return int64(f.value.(byte)), nil
	case f.ftype == TypeBool:
		if f.value.(bool) {
			return 1, nil
		}
		return 0, nil
	case f.ftype == TypeString:
		n, err := strconv.ParseInt(strings.TrimSpace(f.value.(string)), 10, 64)
		if err != nil {
			return 0, f.conversionError("I64")
		}
		return n, nil
	}
	return 0, f.conversionError("I64")
}

// U64Value returns the value as an unsigned integer
func (f *Field) U64Value() (uint64, error) {
	switch {
	case f.ftype.IsUnsigned():
		return reflectUnsigned(f.value), nil
	case f.ftype.IsSigned():
		n := reflectSigned(f.value)
		if n < 0 {
			return 0, f.conversionError("U64")
		}
		return uint64(n), nil
	case f.ftype.IsFloat():
		fl := reflectFloat(f.value)
		if fl < 0 {
			return 0, f.conversionError("U64")
		}
		return uint64(fl), nil
	case f.ftype == TypeChar:
		return uint64(f.value.(byte)), nil
	case f.ftype == TypeBool:
		if f.value.(bool) {
			return 1, nil
		}
		return 0, nil
	case f.ftype == TypeString:
		n, err := strconv.ParseUint(strings.TrimSpace(f.value.(string)), 10, 64)
		if err != nil {
			return 0, f.conversionError("U64")
		}
		return n, nil
	}
	return 0, f.conversionError("U64")
}

// F64Value returns the value as a float
func (f *Field) F64Value() (float64, error) {
	switch {
	case f.ftype.IsFloat():
		return reflectFloat(f.value), nil
	case f.ftype.IsSigned():
		return float64(reflectSigned(f.value)), nil
	case f.ftype.IsUnsigned():
		return float64(reflectUnsigned(f.value)), nil
	case f.ftype == TypeString:
		fl, err := strconv.ParseFloat(strings.TrimSpace(f.value.(string)), 64)
		if err != nil {
			return 0, f.conversionError("F64")
		}
		return fl, nil
	}
	return 0, f.conversionError("F64")
}

// BoolValue returns the value as a boolean
func (f *Field) BoolValue() (bool, error) {
	switch {
	case f.ftype == TypeBool:
		return f.value.(bool), nil
	case f.ftype.IsNumeric():
		fl, _ := f.F64Value()
		return fl != 0, nil
	case f.ftype == TypeString:
		b, err := parseBool(f.value.(string))
		if err != nil {
			return false, f.conversionError("BOOL")
		}
		return b, nil
	}
	return false, f.conversionError("BOOL")
}

func (f *Field) conversionError(target string) error {
	return errors.Newf(errors.ErrFieldConversion, "field %s of type %s cannot be represented as %s", f.name, f.ftype, target)
}

func reflectSigned(v any) int64 {
	switch n := v.(type) {
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	}
	return 0
}

func reflectUnsigned(v any) uint64 {
	switch n := v.(type) {
	case uint8:
		return uint64(n)
	case uint16:
		return uint64(n)
	case uint32:
		return uint64(n)
	case uint64:
		return n
	}
	return 0
}

func reflectFloat(v any) float64 {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

// String implements fmt.Stringer
func (f *Field) String() string {
	return fmt.Sprintf("%s(%s)=%s", f.name, f.ftype, f.StringValue())
}
