package mist

import (
	"math"
	"reflect"
	"slices"
	"strings"

	"github.com/golobby/cast"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/message"
)

// floatEpsilon is the tolerance used when comparing floating point values
const floatEpsilon = 1e-6

// Condition identifies which comparison a dependency performs
type Condition int

// Dependency conditions
const (
	ConditionEquals Condition = iota
	ConditionGreaterThan
	ConditionLessThan
)

// String returns the schema attribute name of the condition
func (c Condition) String() string {
	switch c {
	case ConditionEquals:
		return "EQUALS"
	case ConditionGreaterThan:
		return "GREATER-THAN"
	case ConditionLessThan:
		return "LESS-THAN"
	default:
		return "UNKNOWN"
	}
}

// FieldTemplateDependency alters a field template when another field of
// the message satisfies a condition. It is immutable once built.
type FieldTemplateDependency struct {
	name       string
	condition  Condition
	operand    string
	conditions int

	hasMode bool
	mode    FieldMode
	pattern string
	values  []string
	types   []string
	rename  string
}

// DependencyOption configures a FieldTemplateDependency
type DependencyOption func(*FieldTemplateDependency)

// IfEquals triggers when the field equals v
func IfEquals(v string) DependencyOption {
	return func(d *FieldTemplateDependency) {
		d.condition, d.operand = ConditionEquals, v
		d.conditions++
	}
}

// IfGreaterThan triggers when the field is greater than v
func IfGreaterThan(v string) DependencyOption {
	return func(d *FieldTemplateDependency) {
		d.condition, d.operand = ConditionGreaterThan, v
		d.conditions++
	}
}

// IfLessThan triggers when the field is less than v
func IfLessThan(v string) DependencyOption {
	return func(d *FieldTemplateDependency) {
		d.condition, d.operand = ConditionLessThan, v
		d.conditions++
	}
}

// ThenMode replaces the mode when satisfied
func ThenMode(mode FieldMode) DependencyOption {
	return func(d *FieldTemplateDependency) {
		d.hasMode, d.mode = true, mode
	}
}

// ThenPattern replaces the pattern when satisfied
func ThenPattern(pattern string) DependencyOption {
	return func(d *FieldTemplateDependency) {
		d.pattern = pattern
	}
}

// ThenValues replaces the allowed values when satisfied
func ThenValues(values ...string) DependencyOption {
	return func(d *FieldTemplateDependency) {
		d.values = slices.Clone(values)
	}
}

// ThenTypes replaces the allowed types when satisfied
func ThenTypes(types ...string) DependencyOption {
	return func(d *FieldTemplateDependency) {
		d.types = normalizeTypes(types)
	}
}

// ThenRename replaces the expected field name when satisfied
func ThenRename(name string) DependencyOption {
	return func(d *FieldTemplateDependency) {
		d.rename = strings.ToUpper(strings.TrimSpace(name))
	}
}

// NewDependency builds a dependency on the named field. Exactly one of
// IfEquals, IfGreaterThan or IfLessThan must be given.
func NewDependency(name string, opts ...DependencyOption) (*FieldTemplateDependency, error) {
	d := &FieldTemplateDependency{name: strings.ToUpper(strings.TrimSpace(name))}
	if d.name == "" {
		return nil, errors.Newf(errors.ErrSchemaParse, "dependency has no field name")
	}

	for _, opt := range opts {
		opt(d)
	}
	if d.conditions != 1 {
		return nil, errors.Newf(errors.ErrSchemaParse,
			"dependency on %s must declare exactly one of EQUALS, GREATER-THAN, LESS-THAN (got %d)", d.name, d.conditions)
	}
	d.values = canonicalValues(d.name, d.types, d.values)
	return d, nil
}

// Name returns the name of the triggering field
func (d *FieldTemplateDependency) Name() string { return d.name }

// Condition returns the comparison and its operand
func (d *FieldTemplateDependency) Condition() (Condition, string) { return d.condition, d.operand }

// Mode returns the replacement mode and whether one is set
func (d *FieldTemplateDependency) Mode() (FieldMode, bool) { return d.mode, d.hasMode }

// Pattern returns the replacement pattern
func (d *FieldTemplateDependency) Pattern() string { return d.pattern }

// Values returns the replacement values
func (d *FieldTemplateDependency) Values() []string { return slices.Clone(d.values) }

// Types returns the replacement types
func (d *FieldTemplateDependency) Types() []string { return slices.Clone(d.types) }

// Rename returns the replacement field name
func (d *FieldTemplateDependency) Rename() string { return d.rename }

func (d *FieldTemplateDependency) withNames(name, rename string) *FieldTemplateDependency {
	c := *d
	c.name = name
	c.rename = rename
	return &c
}

var (
	int64Type   = reflect.TypeOf(int64(0))
	uint64Type  = reflect.TypeOf(uint64(0))
	float64Type = reflect.TypeOf(float64(0))
	boolType    = reflect.TypeOf(false)
)

// Satisfied evaluates the condition against f. Numeric fields compare
// numerically, everything else compares as text. An operand that cannot be
// read as the field's kind never satisfies the condition.
func (d *FieldTemplateDependency) Satisfied(f *message.Field) bool {
	if f == nil {
		return false
	}

	t := f.Type()
	switch {
	case t.IsSigned():
		v, err := f.I64Value()
		if err != nil {
			return false
		}
		op, err := cast.FromType(strings.TrimSpace(d.operand), int64Type)
		if err != nil {
			return false
		}
		return compareOrdered(d.condition, v, op.(int64))
	case t.IsUnsigned():
		v, err := f.U64Value()
		if err != nil {
			return false
		}
		op, err := cast.FromType(strings.TrimSpace(d.operand), uint64Type)
		if err != nil {
			return false
		}
		return compareOrdered(d.condition, v, op.(uint64))
	case t.IsFloat():
		v, err := f.F64Value()
		if err != nil {
			return false
		}
		op, err := cast.FromType(strings.TrimSpace(d.operand), float64Type)
		if err != nil {
			return false
		}
		return compareFloat(d.condition, v, op.(float64))
	case t == message.TypeBool:
		if d.condition != ConditionEquals {
			return false
		}
		v, err := f.BoolValue()
		if err != nil {
			return false
		}
		op, err := cast.FromType(strings.ToLower(strings.TrimSpace(d.operand)), boolType)
		if err != nil {
			return false
		}
		return v == op.(bool)
	default:
		return d.condition == ConditionEquals && f.StringValue() == d.operand
	}
}

func compareOrdered[T int64 | uint64](c Condition, v, op T) bool {
	switch c {
	case ConditionEquals:
		return v == op
	case ConditionGreaterThan:
		return v > op
	case ConditionLessThan:
		return v < op
	}
	return false
}

func compareFloat(c Condition, v, op float64) bool {
	equal := math.Abs(v-op) < floatEpsilon
	switch c {
	case ConditionEquals:
		return equal
	case ConditionGreaterThan:
		return v > op && !equal
	case ConditionLessThan:
		return v < op && !equal
	}
	return false
}
