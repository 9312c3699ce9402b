package mist

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/message"
)

func validateWire(t *testing.T, schema []byte, msg *message.Message) *gojsonschema.Result {
	t.Helper()
	payload, err := msg.ToJSON()
	require.NoError(t, err)
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(payload))
	require.NoError(t, err)
	return result
}

func TestJSONSchema_IsDraft07(t *testing.T) {
	spec := newSpec(t)
	schema, err := spec.JSONSchema("HB")
	require.NoError(t, err)

	meta := gojsonschema.NewReferenceLoader(jsonSchemaDraft)
	result, err := gojsonschema.Validate(meta, gojsonschema.NewBytesLoader(schema))
	if err != nil {
		t.Skipf("draft-07 meta-schema unavailable: %v", err)
	}
	assert.True(t, result.Valid(), "%v", result.Errors())

	var doc map[string]any
	require.NoError(t, json.Unmarshal(schema, &doc))
	assert.Equal(t, "MSG.HB", doc["title"])
	assert.Equal(t, "urn:gmsec:201900:MSG.HB", doc["$id"])
}

func TestJSONSchema_AgreesWithValidation(t *testing.T) {
	spec := newSpec(t)
	schema, err := spec.JSONSchema("MSG.HB")
	require.NoError(t, err)

	valid := buildMessage(t, spec, "MSG.HB", message.NewI16Field("PUB-RATE", 30))
	require.NoError(t, spec.ValidateMessage(valid))
	result := validateWire(t, schema, valid)
	assert.True(t, result.Valid(), "%v", result.Errors())

	tests := []struct {
		name   string
		mutate func(*message.Message)
	}{
		{"missing required field", func(m *message.Message) { m.ClearField("MISSION-ID") }},
		{"wrong type", func(m *message.Message) { m.AddField(message.NewI16Field("MISSION-ID", 7)) }},
		{"value not allowed", func(m *message.Message) { m.AddField(message.NewStringField("MESSAGE-TYPE", "TLM")) }},
		{"pattern mismatch", func(m *message.Message) { m.AddField(message.NewStringField("PUBLISH-TIME", "yesterday")) }},
		{"wrong kind", func(m *message.Message) { m.SetKind(message.KindRequest) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := valid.Copy()
			tt.mutate(msg)
			assert.Error(t, spec.ValidateMessage(msg))
			assert.False(t, validateWire(t, schema, msg).Valid())
		})
	}
}

func TestJSONSchema_UnknownSchema(t *testing.T) {
	_, err := newSpec(t).JSONSchema("MSG.NOPE")
	assert.ErrorIs(t, err, errors.ErrSchemaNotFound)
}
