package mist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/message"
)

func TestNewMessage_Heartbeat(t *testing.T) {
	spec := newSpec(t)
	msg := buildMessage(t, spec, "HB")

	assert.Equal(t, message.KindPublish, msg.Kind())
	assert.Equal(t, "C2MS.FILL.FILL.MISSION.FILL.FILL.FILL.MSG.HB.COMP", msg.Subject())

	version, err := msg.F64Value("HEADER-VERSION")
	require.NoError(t, err)
	assert.InDelta(t, 2019.0, version, 1e-6)

	for name, want := range map[string]string{
		"MESSAGE-TYPE":    "MSG",
		"MESSAGE-SUBTYPE": "HB",
		"SPECIFICATION":   "C2MS",
		"MISSION-ID":      "MISSION",
	} {
		got, err := msg.StringValue(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	f, err := msg.Field("COMPONENT")
	require.NoError(t, err)
	assert.True(t, f.IsHeader())
	assert.False(t, msg.HasField("PUB-RATE"))
}

func TestNewMessage_DeclaredValuesRoundTrip(t *testing.T) {
	spec := newSpec(t)
	mt, err := spec.MessageTemplate("HB")
	require.NoError(t, err)
	msg := buildMessage(t, spec, "HB")

	for _, ft := range mt.FieldTemplates() {
		if !ft.HasExplicitType() || !ft.HasExplicitValue() || !msg.HasField(ft.Name()) {
			continue
		}
		f, err := msg.Field(ft.Name())
		require.NoError(t, err, ft.Name())
		assert.Equal(t, ft.Values()[0], f.StringValue(), ft.Name())
	}

	version, err := msg.Field("HEADER-VERSION")
	require.NoError(t, err)
	assert.Equal(t, "2019", version.StringValue())
	assert.Contains(t, msg.ToXML(), ">2019<")
}

func TestNewMessage_SubjectTokens(t *testing.T) {
	spec := newSpec(t)
	msg, err := spec.NewMessage("MSG.HB",
		message.NewStringField("MISSION-ID", "deep space"),
		message.NewStringField("SAT-ID-PHYSICAL", "sat1"),
		message.NewStringField("COMPONENT", "hb.gen"),
	)
	require.NoError(t, err)
	assert.Equal(t, "C2MS.FILL.FILL.DEEP-SPACE.FILL.SAT1.FILL.MSG.HB.HB-GEN", msg.Subject())
}

func TestNewMessage_Errors(t *testing.T) {
	spec := newSpec(t)

	_, err := spec.NewMessage("MSG.NOPE")
	assert.ErrorIs(t, err, errors.ErrSchemaNotFound)

	_, err = spec.NewMessage("HB", message.NewStringField("MISSION-ID", "M"))
	assert.ErrorIs(t, err, errors.ErrFieldNotFound)
}

func TestNewMessage_RequestKind(t *testing.T) {
	spec := newSpec(t)
	msg, err := spec.NewMessage("REQ.DIR", append(standardFields(),
		message.NewStringField("DESTINATION-COMPONENT", "TARGET"))...)
	require.NoError(t, err)

	assert.Equal(t, message.KindRequest, msg.Kind())
	assert.Equal(t, "C2MS.FILL.FILL.MISSION.FILL.FILL.FILL.REQ.DIR.TARGET", msg.Subject())
}

func TestBuildSubject(t *testing.T) {
	spec := newSpec(t)
	msg := buildMessage(t, spec, "HB")

	msg.AddField(message.NewStringField("COMPONENT", "OTHER"))
	subject, err := spec.BuildSubject(msg)
	require.NoError(t, err)
	assert.Equal(t, "C2MS.FILL.FILL.MISSION.FILL.FILL.FILL.MSG.HB.OTHER", subject)

	_, err = spec.BuildSubject(message.New("X", message.KindPublish))
	assert.ErrorIs(t, err, errors.ErrSchemaNotFound)

	_, err = spec.BuildSubject(nil)
	assert.Error(t, err)
}
