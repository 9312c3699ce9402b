package message

import (
	"encoding/json"
	"encoding/xml"
	"fmt"

	"github.com/nasa/GMSEC-API-sub012/errors"
)

type wireField struct {
	Name   string `json:"name" xml:"NAME,attr"`
	Type   string `json:"type" xml:"TYPE,attr"`
	Value  string `json:"value" xml:",chardata"`
	Header bool   `json:"header,omitempty" xml:"HEAD,attr,omitempty"`
}

type wireMessage struct {
	XMLName xml.Name    `json:"-" xml:"MESSAGE"`
	Subject string      `json:"subject" xml:"SUBJECT,attr"`
	Kind    string      `json:"kind" xml:"KIND,attr"`
	Fields  []wireField `json:"fields" xml:"FIELD"`
}

func (m *Message) toWire() wireMessage {
	w := wireMessage{
		Subject: m.subject,
		Kind:    m.kind.String(),
		Fields:  make([]wireField, 0, len(m.order)),
	}
	for _, f := range m.Fields() {
		w.Fields = append(w.Fields, wireField{
			Name:   f.Name(),
			Type:   f.Type().String(),
			Value:  f.StringValue(),
			Header: f.IsHeader(),
		})
	}
	return w
}

func fromWire(w wireMessage) (*Message, error) {
	kind, err := ParseKind(w.Kind)
	if err != nil {
		return nil, err
	}

	m := New(w.Subject, kind)
	for _, wf := range w.Fields {
		t, err := ParseFieldType(wf.Type)
		if err != nil {
			return nil, err
		}
		f, err := NewFieldFromString(wf.Name, t, wf.Value)
		if err != nil {
			return nil, err
		}
		f.SetHeader(wf.Header)
		m.AddField(f)
	}
	return m, nil
}

// ToJSON encodes the message in the wire format published on the middleware
func (m *Message) ToJSON() ([]byte, error) {
	data, err := json.Marshal(m.toWire())
	if err != nil {
		return nil, errors.Wrap(err, "Message", "ToJSON", "marshal message")
	}
	return data, nil
}

// FromJSON decodes a message produced by ToJSON
func FromJSON(data []byte) (*Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidData, err), "Message", "FromJSON", "unmarshal message")
	}
	return fromWire(w)
}

// ToXML renders the message as GMSEC-style XML
func (m *Message) ToXML() string {
	data, err := xml.MarshalIndent(m.toWire(), "", "\t")
	if err != nil {
		return ""
	}
	return string(data)
}

// FromXML decodes a message rendered by ToXML
func FromXML(data []byte) (*Message, error) {
	var w wireMessage
	if err := xml.Unmarshal(data, &w); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidData, err), "Message", "FromXML", "unmarshal message")
	}
	return fromWire(w)
}
