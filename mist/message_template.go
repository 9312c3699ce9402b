package mist

import (
	"encoding/xml"
	"slices"
	"strings"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/message"
)

// SubjectElement maps one subject token to the field that supplies it.
// Constant elements carry a fixed Value instead of a field.
type SubjectElement struct {
	Name     string
	Field    string
	Value    string
	Optional bool
}

// fillToken stands in for an absent optional subject element
const fillToken = "FILL"

// FindKind derives the message kind from the first MSG, REQ or RESP token
// of a dot-delimited schema ID.
func FindKind(schemaID string) (message.Kind, error) {
	for _, token := range strings.Split(strings.ToUpper(schemaID), ".") {
		switch token {
		case "MSG":
			return message.KindPublish, nil
		case "REQ":
			return message.KindRequest, nil
		case "RESP":
			return message.KindReply, nil
		}
	}
	return message.KindPublish, errors.Newf(errors.ErrUnknownMessageType, "schema ID %q names no message kind", schemaID)
}

// MessageTemplate is the ordered list of field templates for one schema ID
type MessageTemplate struct {
	schemaID    string
	level       SchemaLevel
	description string
	fields      []*FieldTemplate
	subject     []SubjectElement
	definition  string
}

// NewMessageTemplate creates a template owning deep copies of fields
func NewMessageTemplate(schemaID string, level SchemaLevel, fields []*FieldTemplate, subject []SubjectElement) *MessageTemplate {
	return newMessageTemplate(schemaID, level, "", fields, subject)
}

func newMessageTemplate(schemaID string, level SchemaLevel, description string, fields []*FieldTemplate, subject []SubjectElement) *MessageTemplate {
	mt := &MessageTemplate{
		schemaID:    strings.ToUpper(schemaID),
		level:       level,
		description: description,
		fields:      copyTemplates(fields),
		subject:     slices.Clone(subject),
	}
	mt.definition = renderDefinition(mt)
	return mt
}

// SchemaID returns the schema ID
func (mt *MessageTemplate) SchemaID() string { return mt.schemaID }

// Level returns the schema level that defined the template
func (mt *MessageTemplate) Level() SchemaLevel { return mt.level }

// Description returns the template description
func (mt *MessageTemplate) Description() string { return mt.description }

// Kind returns the message kind implied by the schema ID
func (mt *MessageTemplate) Kind() (message.Kind, error) { return FindKind(mt.schemaID) }

// FieldTemplates returns deep copies of the field templates in order
func (mt *MessageTemplate) FieldTemplates() []*FieldTemplate { return copyTemplates(mt.fields) }

// SubjectElements returns the subject definition
func (mt *MessageTemplate) SubjectElements() []SubjectElement { return slices.Clone(mt.subject) }

// Definition returns the XML rendering of the template definition
func (mt *MessageTemplate) Definition() string { return mt.definition }

// FieldTemplate looks up a template by declared name. Lookup never uses
// the dependency-modified name.
func (mt *MessageTemplate) FieldTemplate(name string) (*FieldTemplate, error) {
	if ft := findTemplate(mt.fields, strings.ToUpper(name)); ft != nil {
		return ft.Copy(), nil
	}
	return nil, errors.Newf(errors.ErrFieldTemplateNotFound, "template %s has no field template %s", mt.schemaID, strings.ToUpper(name))
}

func findTemplate(list []*FieldTemplate, name string) *FieldTemplate {
	for _, ft := range list {
		if ft.IsContainer() && strings.HasPrefix(name, ft.prefix) {
			if child := findTemplate(ft.children, strings.TrimPrefix(name, ft.prefix)); child != nil {
				return child
			}
		}
		if ft.mode != ModeControl && ft.name == name {
			return ft
		}
	}
	return nil
}

// ToXML renders a representative message for subject. Only templates with
// an explicit type and value are instantiated; control templates and
// anything inside an array block are skipped because the repeat count is
// unknown without a live message.
func (mt *MessageTemplate) ToXML(subject string) string {
	kind, err := mt.Kind()
	if err != nil {
		kind = message.KindPublish
	}

	msg := message.New(subject, kind)
	depth := 0
	for _, ft := range mt.fields {
		switch {
		case ft.IsArrayStart():
			depth++
			continue
		case ft.IsArrayEnd():
			depth--
			continue
		}
		if depth > 0 || ft.mode == ModeControl {
			continue
		}
		if !ft.HasExplicitType() || !ft.HasExplicitValue() {
			continue
		}
		if f, err := ft.ToField(""); err == nil {
			msg.AddField(f)
		}
	}
	return msg.ToXML()
}

// Copy returns a deep copy of the template
func (mt *MessageTemplate) Copy() *MessageTemplate {
	c := *mt
	c.fields = copyTemplates(mt.fields)
	c.subject = slices.Clone(mt.subject)
	return &c
}

type defValue struct {
	Text string `xml:",chardata"`
}

type defDependency struct {
	Name        string     `xml:"NAME,attr"`
	Equals      string     `xml:"EQUALS,attr,omitempty"`
	GreaterThan string     `xml:"GREATER-THAN,attr,omitempty"`
	LessThan    string     `xml:"LESS-THAN,attr,omitempty"`
	Mode        string     `xml:"MODE,attr,omitempty"`
	Pattern     string     `xml:"PATTERN,attr,omitempty"`
	Type        string     `xml:"TYPE,attr,omitempty"`
	Rename      string     `xml:"RENAME,attr,omitempty"`
	Values      []defValue `xml:"VALUE"`
}

type defField struct {
	XMLName      xml.Name
	Name         string          `xml:"NAME,attr"`
	Mode         string          `xml:"MODE,attr,omitempty"`
	Type         string          `xml:"TYPE,attr,omitempty"`
	Class        string          `xml:"CLASS,attr,omitempty"`
	Size         string          `xml:"SIZE,attr,omitempty"`
	Prefix       string          `xml:"PREFIX,attr,omitempty"`
	Pattern      string          `xml:"PATTERN,attr,omitempty"`
	Description  string          `xml:"DESCRIPTION,attr,omitempty"`
	Values       []defValue      `xml:"VALUE"`
	Dependencies []defDependency `xml:"DEPENDENCY"`
	Children     []defField      `xml:",any"`
}

type defElement struct {
	Name     string `xml:"NAME,attr"`
	Field    string `xml:"FIELD,attr,omitempty"`
	Value    string `xml:"VALUE,attr,omitempty"`
	Optional bool   `xml:"OPTIONAL,attr,omitempty"`
}

type defTemplate struct {
	XMLName     xml.Name     `xml:"TEMPLATE"`
	ID          string       `xml:"ID,attr"`
	Level       int          `xml:"LEVEL,attr"`
	Description string       `xml:"DESCRIPTION,attr,omitempty"`
	Subject     []defElement `xml:"SUBJECT>ELEMENT"`
	Fields      []defField   `xml:",any"`
}

func renderDefinition(mt *MessageTemplate) string {
	def := defTemplate{
		ID:          mt.schemaID,
		Level:       int(mt.level),
		Description: mt.description,
		Fields:      renderFields(mt.fields),
	}
	for _, el := range mt.subject {
		def.Subject = append(def.Subject, defElement(el))
	}

	data, err := xml.MarshalIndent(def, "", "\t")
	if err != nil {
		return ""
	}
	return string(data)
}

func renderFields(list []*FieldTemplate) []defField {
	out := make([]defField, 0, len(list))
	for _, ft := range list {
		df := defField{
			XMLName:     xml.Name{Local: "FIELD"},
			Name:        ft.name,
			Mode:        ft.mode.String(),
			Type:        strings.Join(ft.types, " "),
			Pattern:     ft.pattern,
			Description: ft.description,
		}
		switch {
		case ft.IsArrayStart():
			df.XMLName.Local = ArrayStart
			df.Name = ft.arrayName
			df.Mode = ft.arrayMode.String()
			df.Size = ft.size
		case ft.IsArrayEnd():
			df.XMLName.Local = ArrayEnd
			df.Name = ft.arrayName
			df.Mode = ""
		case ft.IsContainer():
			df.XMLName.Local = "CONTAINER"
			df.Mode = ""
			df.Prefix = ft.prefix
			df.Children = renderFields(ft.children)
		default:
			df.Class = ft.class.String()
		}
		for _, v := range ft.values {
			df.Values = append(df.Values, defValue{Text: v})
		}
		for _, d := range ft.deps {
			df.Dependencies = append(df.Dependencies, renderDependency(d))
		}
		out = append(out, df)
	}
	return out
}

func renderDependency(d *FieldTemplateDependency) defDependency {
	dd := defDependency{
		Name:    d.name,
		Pattern: d.pattern,
		Type:    strings.Join(d.types, " "),
		Rename:  d.rename,
	}
	switch d.condition {
	case ConditionEquals:
		dd.Equals = d.operand
	case ConditionGreaterThan:
		dd.GreaterThan = d.operand
	case ConditionLessThan:
		dd.LessThan = d.operand
	}
	if d.hasMode {
		dd.Mode = d.mode.String()
	}
	for _, v := range d.values {
		dd.Values = append(dd.Values, defValue{Text: v})
	}
	return dd
}
