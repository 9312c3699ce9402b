package mist

import (
	"slices"
	"strconv"
	"strings"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/message"
)

// FieldMode tells the validator how strictly a field is enforced
type FieldMode int

// Field modes
const (
	ModeOptional FieldMode = iota
	ModeRequired
	ModeControl
)

// String returns the schema name of the mode
func (m FieldMode) String() string {
	switch m {
	case ModeRequired:
		return "REQUIRED"
	case ModeOptional:
		return "OPTIONAL"
	case ModeControl:
		return "CONTROL"
	default:
		return "UNKNOWN"
	}
}

// ParseFieldMode maps REQUIRED/OPTIONAL/CONTROL to a FieldMode
func ParseFieldMode(s string) (FieldMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "REQUIRED":
		return ModeRequired, nil
	case "OPTIONAL", "":
		return ModeOptional, nil
	case "CONTROL":
		return ModeControl, nil
	}
	return ModeOptional, errors.Newf(errors.ErrSchemaParse, "unknown field mode %q", s)
}

// FieldClass distinguishes header fields from standard (body) fields
type FieldClass int

// Field classes
const (
	ClassStandard FieldClass = iota
	ClassHeader
)

// String returns the schema name of the class
func (c FieldClass) String() string {
	if c == ClassHeader {
		return "HEADER"
	}
	return "STANDARD"
}

// Control template names marking array boundaries in a template list
const (
	ArrayStart = "ARRAY-START"
	ArrayEnd   = "ARRAY-END"

	// TypeVariable accepts a field of any type
	TypeVariable = "VARIABLE"

	// indexPlaceholder is replaced by the 1-based array index
	indexPlaceholder = "--"
)

// FieldTemplate describes one expected message field. The declared
// attributes never change after load; CheckDependencies only touches the
// modified view, which ResetDependencies restores.
type FieldTemplate struct {
	name        string
	mode        FieldMode
	class       FieldClass
	values      []string
	types       []string
	pattern     string
	description string
	size        string
	prefix      string
	children    []*FieldTemplate
	deps        []*FieldTemplateDependency
	kinds       []message.Kind

	// array bookkeeping for ARRAY-START templates
	arrayName string
	arrayMode FieldMode

	modifiedName    string
	modifiedMode    FieldMode
	modifiedPattern string
	modifiedValues  []string
	modifiedTypes   []string
}

// FieldTemplateOption configures a FieldTemplate built by NewFieldTemplate
type FieldTemplateOption func(*FieldTemplate)

// WithMode sets the declared mode
func WithMode(mode FieldMode) FieldTemplateOption {
	return func(ft *FieldTemplate) { ft.mode = mode }
}

// WithClass sets the declared class
func WithClass(class FieldClass) FieldTemplateOption {
	return func(ft *FieldTemplate) { ft.class = class }
}

// WithTypes sets the allowed type strings
func WithTypes(types ...string) FieldTemplateOption {
	return func(ft *FieldTemplate) { ft.types = normalizeTypes(types) }
}

// WithValues sets the allowed values
func WithValues(values ...string) FieldTemplateOption {
	return func(ft *FieldTemplate) { ft.values = slices.Clone(values) }
}

// WithPattern sets the regular expression a value must match
func WithPattern(pattern string) FieldTemplateOption {
	return func(ft *FieldTemplate) { ft.pattern = pattern }
}

// WithDescription sets the free-form description
func WithDescription(description string) FieldTemplateOption {
	return func(ft *FieldTemplate) { ft.description = description }
}

// WithDependencies appends conditional rules evaluated in order
func WithDependencies(deps ...*FieldTemplateDependency) FieldTemplateOption {
	return func(ft *FieldTemplate) { ft.deps = append(ft.deps, deps...) }
}

// WithKinds restricts the template to the given message kinds
func WithKinds(kinds ...message.Kind) FieldTemplateOption {
	return func(ft *FieldTemplate) { ft.kinds = slices.Clone(kinds) }
}

// NewFieldTemplate creates a template for the named field
func NewFieldTemplate(name string, opts ...FieldTemplateOption) *FieldTemplate {
	ft := &FieldTemplate{name: strings.ToUpper(strings.TrimSpace(name))}
	for _, opt := range opts {
		opt(ft)
	}
	ft.values = canonicalValues(ft.name, ft.types, ft.values)
	for i, dep := range ft.deps {
		if len(dep.values) == 0 || len(dep.types) > 0 {
			continue
		}
		c := *dep
		c.values = canonicalValues(ft.name, ft.types, dep.values)
		ft.deps[i] = &c
	}
	ft.ResetDependencies()
	return ft
}

// canonicalValues rewrites declared values in the text form a field of the
// single declared type renders, so "2019.0" on an F32 becomes "2019".
// Values that do not parse as that type are kept as written.
func canonicalValues(name string, types, values []string) []string {
	if len(types) != 1 || types[0] == TypeVariable || len(values) == 0 {
		return values
	}
	t, err := message.ParseFieldType(types[0])
	if err != nil {
		return values
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v
		if f, err := message.NewFieldFromString(name, t, v); err == nil {
			out[i] = f.StringValue()
		}
	}
	return out
}

func newArrayStart(name, size string, mode FieldMode) *FieldTemplate {
	ft := NewFieldTemplate(ArrayStart, WithMode(ModeControl))
	ft.arrayName = name
	ft.arrayMode = mode
	ft.size = size
	return ft
}

func newArrayEnd(name string) *FieldTemplate {
	ft := NewFieldTemplate(ArrayEnd, WithMode(ModeControl))
	ft.arrayName = name
	return ft
}

func newContainer(name, prefix string, children []*FieldTemplate) *FieldTemplate {
	ft := NewFieldTemplate(name, WithMode(ModeControl))
	ft.prefix = prefix
	ft.children = children
	return ft
}

func normalizeTypes(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Name returns the declared field name
func (ft *FieldTemplate) Name() string { return ft.name }

// ModifiedName returns the name after the last CheckDependencies call
func (ft *FieldTemplate) ModifiedName() string { return ft.modifiedName }

// Mode returns the declared mode
func (ft *FieldTemplate) Mode() FieldMode { return ft.mode }

// ModifiedMode returns the mode after the last CheckDependencies call
func (ft *FieldTemplate) ModifiedMode() FieldMode { return ft.modifiedMode }

// Class returns the declared class
func (ft *FieldTemplate) Class() FieldClass { return ft.class }

// IsHeader reports whether the template describes a header field
func (ft *FieldTemplate) IsHeader() bool { return ft.class == ClassHeader }

// Values returns the allowed values
func (ft *FieldTemplate) Values() []string { return slices.Clone(ft.values) }

// ModifiedValues returns the allowed values after dependency evaluation
func (ft *FieldTemplate) ModifiedValues() []string { return slices.Clone(ft.modifiedValues) }

// Types returns the allowed type strings
func (ft *FieldTemplate) Types() []string { return slices.Clone(ft.types) }

// ModifiedTypes returns the allowed types after dependency evaluation
func (ft *FieldTemplate) ModifiedTypes() []string { return slices.Clone(ft.modifiedTypes) }

// Pattern returns the declared value pattern
func (ft *FieldTemplate) Pattern() string { return ft.pattern }

// ModifiedPattern returns the pattern after dependency evaluation
func (ft *FieldTemplate) ModifiedPattern() string { return ft.modifiedPattern }

// Description returns the free-form description
func (ft *FieldTemplate) Description() string { return ft.description }

// Size returns the name of the field holding the array length (ARRAY-START only)
func (ft *FieldTemplate) Size() string { return ft.size }

// Prefix returns the name prefix applied to container children
func (ft *FieldTemplate) Prefix() string { return ft.prefix }

// ArrayName returns the array name of an ARRAY-START/ARRAY-END template
func (ft *FieldTemplate) ArrayName() string { return ft.arrayName }

// Children returns deep copies of the child templates
func (ft *FieldTemplate) Children() []*FieldTemplate { return copyTemplates(ft.children) }

// Dependencies returns the conditional rules in declaration order
func (ft *FieldTemplate) Dependencies() []*FieldTemplateDependency { return slices.Clone(ft.deps) }

// Kinds returns the message kinds the template applies to; empty means all
func (ft *FieldTemplate) Kinds() []message.Kind { return slices.Clone(ft.kinds) }

// AppliesTo reports whether the template is relevant for kind
func (ft *FieldTemplate) AppliesTo(kind message.Kind) bool {
	return len(ft.kinds) == 0 || slices.Contains(ft.kinds, kind)
}

// IsArrayStart reports whether the template opens an array block
func (ft *FieldTemplate) IsArrayStart() bool { return ft.mode == ModeControl && ft.name == ArrayStart }

// IsArrayEnd reports whether the template closes an array block
func (ft *FieldTemplate) IsArrayEnd() bool { return ft.mode == ModeControl && ft.name == ArrayEnd }

// IsContainer reports whether the template groups prefixed children
func (ft *FieldTemplate) IsContainer() bool {
	return ft.mode == ModeControl && !ft.IsArrayStart() && !ft.IsArrayEnd()
}

// HasExplicitType reports whether exactly one concrete type is allowed
func (ft *FieldTemplate) HasExplicitType() bool {
	return len(ft.modifiedTypes) == 1 && ft.modifiedTypes[0] != TypeVariable
}

// HasExplicitValue reports whether exactly one value is allowed
func (ft *FieldTemplate) HasExplicitValue() bool {
	return len(ft.modifiedValues) == 1
}

// AllowsType reports whether typeName is one of the allowed types
func (ft *FieldTemplate) AllowsType(typeName string) bool {
	return typeAllowed(ft.modifiedTypes, strings.ToUpper(typeName))
}

func typeAllowed(types []string, typeName string) bool {
	if len(types) == 0 || slices.Contains(types, TypeVariable) {
		return true
	}
	return slices.Contains(types, typeName)
}

// ToField synthesizes a field from the template. An empty typeName uses
// the explicit type. The value is the explicit value when there is one,
// otherwise the zero value of the type.
func (ft *FieldTemplate) ToField(typeName string) (*message.Field, error) {
	typeName = strings.ToUpper(strings.TrimSpace(typeName))
	if typeName == "" {
		if !ft.HasExplicitType() {
			return nil, errors.Newf(errors.ErrInvalidType, "field template %s has no explicit type", ft.modifiedName)
		}
		typeName = ft.modifiedTypes[0]
	}
	if typeName == TypeVariable || !ft.AllowsType(typeName) {
		return nil, errors.Newf(errors.ErrInvalidType, "type %s is not allowed for field template %s (allowed %v)",
			typeName, ft.modifiedName, ft.modifiedTypes)
	}

	t, err := message.ParseFieldType(typeName)
	if err != nil {
		return nil, err
	}

	text := zeroText(t)
	if ft.HasExplicitValue() {
		text = ft.modifiedValues[0]
	}

	f, err := message.NewFieldFromString(ft.modifiedName, t, text)
	if err != nil {
		return nil, err
	}
	f.SetHeader(ft.class == ClassHeader)
	return f, nil
}

func zeroText(t message.FieldType) string {
	switch {
	case t == message.TypeBool:
		return "false"
	case t == message.TypeChar:
		return " "
	case t.IsNumeric():
		return "0"
	default:
		return ""
	}
}

// ResolvedField is the effective view of a template for one message
type ResolvedField struct {
	Name    string
	Mode    FieldMode
	Pattern string
	Values  []string
	Types   []string
}

// Resolve evaluates the dependencies against msg without touching the
// template. Satisfied dependencies apply in declaration order; a later
// dependency overrides an attribute set by an earlier one.
func (ft *FieldTemplate) Resolve(msg *message.Message) ResolvedField {
	return ft.resolve(msg, "")
}

func (ft *FieldTemplate) resolve(msg *message.Message, prefix string) ResolvedField {
	rf := ResolvedField{
		Name:    ft.name,
		Mode:    ft.mode,
		Pattern: ft.pattern,
		Values:  ft.values,
		Types:   ft.types,
	}
	if msg == nil {
		return rf
	}

	for _, dep := range ft.deps {
		f, err := msg.Field(prefix + dep.name)
		if err != nil || !dep.Satisfied(f) {
			continue
		}
		if dep.rename != "" {
			rf.Name = dep.rename
		}
		if dep.hasMode {
			rf.Mode = dep.mode
		}
		if dep.pattern != "" {
			rf.Pattern = dep.pattern
		}
		if len(dep.values) > 0 {
			rf.Values = dep.values
		}
		if len(dep.types) > 0 {
			rf.Types = dep.types
		}
	}
	return rf
}

// CheckDependencies applies the satisfied dependencies onto the modified
// view. Call ResetDependencies before reusing the template for another message.
func (ft *FieldTemplate) CheckDependencies(msg *message.Message) {
	rf := ft.Resolve(msg)
	ft.modifiedName = rf.Name
	ft.modifiedMode = rf.Mode
	ft.modifiedPattern = rf.Pattern
	ft.modifiedValues = slices.Clone(rf.Values)
	ft.modifiedTypes = slices.Clone(rf.Types)
}

// ResetDependencies restores the modified view to the declared attributes
func (ft *FieldTemplate) ResetDependencies() {
	ft.modifiedName = ft.name
	ft.modifiedMode = ft.mode
	ft.modifiedPattern = ft.pattern
	ft.modifiedValues = slices.Clone(ft.values)
	ft.modifiedTypes = slices.Clone(ft.types)
}

// Copy returns a deep copy including children and modified state
func (ft *FieldTemplate) Copy() *FieldTemplate {
	c := *ft
	c.values = slices.Clone(ft.values)
	c.types = slices.Clone(ft.types)
	c.kinds = slices.Clone(ft.kinds)
	c.deps = slices.Clone(ft.deps)
	c.children = copyTemplates(ft.children)
	c.modifiedValues = slices.Clone(ft.modifiedValues)
	c.modifiedTypes = slices.Clone(ft.modifiedTypes)
	return &c
}

// withIndex copies the template replacing the first index placeholder in
// every name it carries. Nested arrays keep their own placeholder.
// Container children are relative to the prefix and are left alone.
func (ft *FieldTemplate) withIndex(index int) *FieldTemplate {
	idx := strconv.Itoa(index)
	replace := func(s string) string { return strings.Replace(s, indexPlaceholder, idx, 1) }

	c := ft.Copy()
	if !c.IsArrayStart() && !c.IsArrayEnd() {
		c.name = replace(c.name)
	}
	c.arrayName = replace(c.arrayName)
	c.size = replace(c.size)
	c.prefix = replace(c.prefix)
	for i, dep := range c.deps {
		c.deps[i] = dep.withNames(replace(dep.name), replace(dep.rename))
	}
	c.ResetDependencies()
	return c
}

func copyTemplates(in []*FieldTemplate) []*FieldTemplate {
	if in == nil {
		return nil
	}
	out := make([]*FieldTemplate, len(in))
	for i, ft := range in {
		out[i] = ft.Copy()
	}
	return out
}
