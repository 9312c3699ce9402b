package message

import (
	"strings"

	"github.com/nasa/GMSEC-API-sub012/errors"
)

// Kind is the message kind derived from the schema ID
type Kind int

// Message kinds
const (
	KindPublish Kind = iota
	KindRequest
	KindReply
)

// String returns the GMSEC name of the kind
func (k Kind) String() string {
	switch k {
	case KindPublish:
		return "PUBLISH"
	case KindRequest:
		return "REQUEST"
	case KindReply:
		return "REPLY"
	default:
		return "UNKNOWN"
	}
}

// ParseKind maps PUBLISH/REQUEST/REPLY to a Kind
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PUBLISH":
		return KindPublish, nil
	case "REQUEST":
		return KindRequest, nil
	case "REPLY":
		return KindReply, nil
	}
	return 0, errors.Newf(errors.ErrUnknownMessageType, "unknown message kind %q", s)
}

// Message is a subject plus an insertion-ordered set of fields.
// A Message is not safe for concurrent mutation.
type Message struct {
	subject string
	kind    Kind
	order   []string
	fields  map[string]*Field
}

// New creates an empty message
func New(subject string, kind Kind) *Message {
	return &Message{
		subject: subject,
		kind:    kind,
		fields:  make(map[string]*Field),
	}
}

// Subject returns the message subject
func (m *Message) Subject() string { return m.subject }

// SetSubject replaces the message subject
func (m *Message) SetSubject(subject string) { m.subject = subject }

// Kind returns the message kind
func (m *Message) Kind() Kind { return m.kind }

// SetKind replaces the message kind
func (m *Message) SetKind(kind Kind) { m.kind = kind }

// AddField adds f, replacing any field with the same name in place.
// It reports whether an existing field was replaced.
func (m *Message) AddField(f *Field) bool {
	if f == nil {
		return false
	}
	name := f.Name()
	_, replaced := m.fields[name]
	if !replaced {
		m.order = append(m.order, name)
	}
	m.fields[name] = f
	return replaced
}

// AddFields adds each field in order
func (m *Message) AddFields(fields ...*Field) {
	for _, f := range fields {
		m.AddField(f)
	}
}

// HasField reports whether the message carries name
func (m *Message) HasField(name string) bool {
	_, ok := m.fields[strings.ToUpper(name)]
	return ok
}

// Field returns the named field
func (m *Message) Field(name string) (*Field, error) {
	f, ok := m.fields[strings.ToUpper(name)]
	if !ok {
		return nil, errors.Newf(errors.ErrFieldNotFound, "message %q has no field %s", m.subject, strings.ToUpper(name))
	}
	return f, nil
}

// ClearField removes name and reports whether it was present
func (m *Message) ClearField(name string) bool {
	key := strings.ToUpper(name)
	if _, ok := m.fields[key]; !ok {
		return false
	}
	delete(m.fields, key)
	for i, n := range m.order {
		if n == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// FieldCount returns the number of fields
func (m *Message) FieldCount() int { return len(m.order) }

// Fields returns the fields in insertion order
func (m *Message) Fields() []*Field {
	out := make([]*Field, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.fields[name])
	}
	return out
}

// Copy returns a deep copy of the message
func (m *Message) Copy() *Message {
	c := New(m.subject, m.kind)
	for _, f := range m.Fields() {
		c.AddField(f.Copy())
	}
	return c
}

// StringValue returns the named field rendered as text
func (m *Message) StringValue(name string) (string, error) {
	f, err := m.Field(name)
	if err != nil {
		return "", err
	}
	return f.StringValue(), nil
}

// I64Value returns the named field as a signed integer
func (m *Message) I64Value(name string) (int64, error) {
	f, err := m.Field(name)
	if err != nil {
		return 0, err
	}
	return f.I64Value()
}

// U64Value returns the named field as an unsigned integer
func (m *Message) U64Value(name string) (uint64, error) {
	f, err := m.Field(name)
	if err != nil {
		return 0, err
	}
	return f.U64Value()
}

// F64Value returns the named field as a float
func (m *Message) F64Value(name string) (float64, error) {
	f, err := m.Field(name)
	if err != nil {
		return 0, err
	}
	return f.F64Value()
}

// BoolValue returns the named field as a boolean
func (m *Message) BoolValue(name string) (bool, error) {
	f, err := m.Field(name)
	if err != nil {
		return false, err
	}
	return f.BoolValue()
}
