package mist

import (
	"fmt"
	"strings"
	"time"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/message"
)

// maxArrayElements bounds the expansion of a single array
const maxArrayElements = 1 << 16

// ValidateMessage checks msg against the template of its schema ID and
// the header fields for its kind, then runs the custom validator. All
// problems are collected into a single *ValidationError. An unknown schema
// is reported as ErrSchemaNotFound, not as a validation failure.
func (s *Specification) ValidateMessage(msg *message.Message) error {
	start := time.Now()

	schemaID, err := s.SchemaID(msg)
	if err != nil {
		return err
	}
	mt, ok := s.templates[schemaID]
	if !ok {
		return errors.Newf(errors.ErrSchemaNotFound, "schema ID %q is not loaded", schemaID)
	}

	w := &walker{msg: msg}

	kind, err := FindKind(schemaID)
	if err == nil && msg.Kind() != kind {
		w.add("message kind %s does not match schema %s (%s)", msg.Kind(), schemaID, kind)
	}
	w.checkSubject(mt.subject)
	w.walk(s.combinedFields(mt, kind), "")

	s.mu.RLock()
	custom := s.validator
	s.mu.RUnlock()
	if custom != nil {
		if err := custom.Validate(msg); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				w.problems = append(w.problems, ve.Problems...)
			} else {
				w.problems = append(w.problems, err.Error())
			}
		}
	}

	valid := len(w.problems) == 0
	if s.metrics != nil {
		s.metrics.RecordValidation(schemaID, valid, time.Since(start))
	}
	if valid {
		return nil
	}

	s.logger.Debug("Message failed validation",
		"subject", msg.Subject(),
		"schema", schemaID,
		"problems", len(w.problems))
	return &ValidationError{SchemaID: schemaID, Subject: msg.Subject(), Problems: w.problems}
}

// combinedFields puts the header templates for kind first. A template
// field with the same name as a header field takes the header field's
// place; the remaining template fields follow in declaration order.
func (s *Specification) combinedFields(mt *MessageTemplate, kind message.Kind) []*FieldTemplate {
	overrides := make(map[string]*FieldTemplate)
	depth := 0
	for _, ft := range mt.fields {
		switch {
		case ft.IsArrayStart():
			depth++
		case ft.IsArrayEnd():
			depth--
		case depth == 0 && ft.mode != ModeControl:
			overrides[ft.name] = ft
		}
	}

	out := make([]*FieldTemplate, 0, len(mt.fields)+len(s.headers[s.headerID]))
	used := make(map[string]bool)
	for _, ft := range s.headers[s.headerID] {
		if !ft.AppliesTo(kind) {
			continue
		}
		if o, ok := overrides[ft.name]; ok {
			out = append(out, o)
			used[ft.name] = true
			continue
		}
		out = append(out, ft)
	}

	depth = 0
	for _, ft := range mt.fields {
		switch {
		case ft.IsArrayStart():
			depth++
		case ft.IsArrayEnd():
			depth--
		case depth == 0 && used[ft.name]:
			continue
		}
		out = append(out, ft)
	}
	return out
}

type walker struct {
	msg      *message.Message
	problems []string
}

func (w *walker) add(format string, args ...any) {
	w.problems = append(w.problems, fmt.Sprintf(format, args...))
}

// walk checks list with every field name prefixed by prefix
func (w *walker) walk(list []*FieldTemplate, prefix string) {
	for i := 0; i < len(list); i++ {
		ft := list[i]
		switch {
		case ft.IsArrayStart():
			end := arrayEnd(list, i)
			w.walkArray(ft, list[i+1:end], prefix)
			i = end
		case ft.IsArrayEnd():
		case ft.IsContainer():
			w.walk(ft.children, prefix+ft.prefix)
		default:
			w.check(ft, prefix)
		}
	}
}

// arrayEnd returns the index of the ARRAY-END closing the block opened at
// start, or len(list) when the block is unterminated.
func arrayEnd(list []*FieldTemplate, start int) int {
	depth := 0
	for i := start; i < len(list); i++ {
		switch {
		case list[i].IsArrayStart():
			depth++
		case list[i].IsArrayEnd():
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(list)
}

func (w *walker) walkArray(start *FieldTemplate, body []*FieldTemplate, prefix string) {
	sizeName := prefix + start.size

	f, err := w.msg.Field(sizeName)
	if err != nil {
		if start.arrayMode == ModeRequired {
			w.add("%s: required array has no size field %s", prefix+start.arrayName, sizeName)
		}
		return
	}

	// a size field of the wrong type is reported by its own template
	count, err := f.I64Value()
	if err != nil {
		return
	}
	switch {
	case count < 0:
		w.add("%s: array size %s is negative (%d)", prefix+start.arrayName, sizeName, count)
		return
	case count > maxArrayElements:
		w.add("%s: array size %s exceeds %d (%d)", prefix+start.arrayName, sizeName, maxArrayElements, count)
		return
	case count == 0 && start.arrayMode == ModeRequired:
		w.add("%s: required array has no elements", prefix+start.arrayName)
		return
	}

	for idx := 1; idx <= int(count); idx++ {
		element := make([]*FieldTemplate, len(body))
		for i, ft := range body {
			element[i] = ft.withIndex(idx)
		}
		w.walk(element, prefix)
	}
}

func (w *walker) check(ft *FieldTemplate, prefix string) {
	if ft.mode == ModeControl {
		return
	}

	rf := ft.resolve(w.msg, prefix)
	if rf.Mode == ModeControl {
		return
	}
	name := prefix + rf.Name

	f, err := w.msg.Field(name)
	if err != nil {
		if rf.Mode == ModeRequired {
			w.add("%s: required field is missing", name)
		}
		return
	}

	typeName := f.Type().String()
	if !typeAllowed(rf.Types, typeName) {
		w.add("%s: type %s is not allowed, expected %s", name, typeName, strings.Join(rf.Types, " or "))
		return
	}

	if len(rf.Values) > 0 && !valueAllowed(f, rf.Values) {
		w.add("%s: value %q is not one of the allowed values [%s]", name, f.StringValue(), strings.Join(rf.Values, ", "))
		return
	}

	if rf.Pattern != "" {
		re, err := compilePattern(rf.Pattern)
		switch {
		case err != nil:
			w.add("%s: invalid pattern %q: %v", name, rf.Pattern, err)
		case !re.MatchString(f.StringValue()):
			w.add("%s: value %q does not match pattern %q", name, f.StringValue(), rf.Pattern)
		}
	}
}

// valueAllowed compares numerically for numeric fields and as text
// otherwise, the same way dependency conditions do.
func valueAllowed(f *message.Field, values []string) bool {
	for _, v := range values {
		eq := FieldTemplateDependency{condition: ConditionEquals, operand: v}
		if eq.Satisfied(f) {
			return true
		}
	}
	return false
}

// checkSubject compares each subject token with the element that defines
// it. Elements whose field is absent are not checked.
func (w *walker) checkSubject(elements []SubjectElement) {
	tokens := strings.Split(w.msg.Subject(), ".")

	required := 0
	for i, el := range elements {
		if !el.Optional {
			required = i + 1
		}
	}
	if len(tokens) < required {
		w.add("subject %q has %d elements, expected at least %d", w.msg.Subject(), len(tokens), required)
	}

	for i, el := range elements {
		if i >= len(tokens) {
			break
		}
		token := tokens[i]
		if token == "" {
			w.add("subject %q: element %s is empty", w.msg.Subject(), el.Name)
			continue
		}

		if el.Value != "" {
			if !strings.EqualFold(token, el.Value) {
				w.add("subject %q: element %s is %q, expected %q", w.msg.Subject(), el.Name, token, el.Value)
			}
			continue
		}

		f, err := w.msg.Field(el.Field)
		if err != nil {
			continue
		}
		want := subjectToken(f.StringValue())
		if want == "" {
			want = fillToken
		}
		if !strings.EqualFold(token, want) {
			w.add("subject %q: element %s is %q but field %s is %q", w.msg.Subject(), el.Name, token, el.Field, f.StringValue())
		}
	}
}
