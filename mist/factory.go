package mist

import (
	"strings"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/message"
)

// NewMessage builds a message for schemaID. Every top-level template field
// with one type and one value is added, then standardFields (typically
// MISSION-ID, COMPONENT and friends), and finally the subject is rendered
// with BuildSubject.
func (s *Specification) NewMessage(schemaID string, standardFields ...*message.Field) (*message.Message, error) {
	mt, err := s.lookup(schemaID)
	if err != nil {
		return nil, err
	}
	kind, err := mt.Kind()
	if err != nil {
		return nil, err
	}

	msg := message.New("", kind)
	depth := 0
	for _, ft := range s.combinedFields(mt, kind) {
		switch {
		case ft.IsArrayStart():
			depth++
			continue
		case ft.IsArrayEnd():
			depth--
			continue
		}
		if depth > 0 || ft.mode == ModeControl || !ft.HasExplicitType() || !ft.HasExplicitValue() {
			continue
		}
		f, err := ft.ToField("")
		if err != nil {
			return nil, errors.Wrap(err, "Specification", "NewMessage", "instantiate field "+ft.name)
		}
		msg.AddField(f)
	}

	for _, f := range standardFields {
		if f == nil {
			continue
		}
		c := f.Copy()
		c.SetHeader(true)
		msg.AddField(c)
	}

	subject, err := s.subjectFor(mt, msg)
	if err != nil {
		return nil, err
	}
	msg.SetSubject(subject)
	return msg, nil
}

// BuildSubject renders the subject of msg from the subject definition of
// the schema named by its MESSAGE-TYPE and MESSAGE-SUBTYPE fields. Absent
// optional elements become FILL; an absent required element is an error.
func (s *Specification) BuildSubject(msg *message.Message) (string, error) {
	if msg == nil {
		return "", errors.Newf(errors.ErrInvalidData, "message is nil")
	}
	id := s.schemaIDFromFields(msg)
	if id == "" {
		return "", errors.Newf(errors.ErrSchemaNotFound, "message type fields name no loaded schema")
	}
	return s.subjectFor(s.templates[id], msg)
}

func (s *Specification) subjectFor(mt *MessageTemplate, msg *message.Message) (string, error) {
	tokens := make([]string, 0, len(mt.subject))
	for _, el := range mt.subject {
		if el.Value != "" {
			tokens = append(tokens, el.Value)
			continue
		}

		token := ""
		if v, err := msg.StringValue(el.Field); err == nil {
			token = subjectToken(v)
		}
		if token == "" {
			if !el.Optional {
				return "", errors.Newf(errors.ErrFieldNotFound, "subject element %s of %s needs field %s",
					el.Name, mt.schemaID, el.Field)
			}
			token = fillToken
		}
		tokens = append(tokens, token)
	}
	return strings.Join(tokens, "."), nil
}

// subjectToken upper-cases v and replaces characters that cannot appear
// in a subject element with '-'.
func subjectToken(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, v)
}
