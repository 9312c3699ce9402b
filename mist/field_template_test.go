package mist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/message"
)

func mustDependency(t *testing.T, name string, opts ...DependencyOption) *FieldTemplateDependency {
	t.Helper()
	dep, err := NewDependency(name, opts...)
	require.NoError(t, err)
	return dep
}

func TestFieldTemplate_ToFieldRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		typeName string
		value    string
		want     string
	}{
		{"string", "STRING", "C2MS", "C2MS"},
		{"i16", "I16", "-30", "-30"},
		{"u16", "U16", "30", "30"},
		{"i32 max", "I32", "2147483647", "2147483647"},
		{"u64 max", "U64", "18446744073709551615", "18446744073709551615"},
		{"f64", "F64", "2.5", "2.5"},
		{"bool", "BOOL", "true", "true"},
		{"char", "CHAR", "x", "x"},
		{"binary", "BINARY", "CAFE", "CAFE"},
		{"f32 trailing zero", "F32", "2019.0", "2019"},
		{"f64 trailing zero", "F64", "1.50", "1.5"},
		{"i16 leading zero", "I16", "030", "30"},
		{"bool upper case", "BOOL", "TRUE", "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := NewFieldTemplate("sample", WithTypes(tt.typeName), WithValues(tt.value))
			require.True(t, ft.HasExplicitType())
			require.True(t, ft.HasExplicitValue())
			assert.Equal(t, []string{tt.want}, ft.Values())

			f, err := ft.ToField(tt.typeName)
			require.NoError(t, err)
			assert.Equal(t, "SAMPLE", f.Name())
			assert.Equal(t, ft.Values()[0], f.StringValue())

			f, err = ft.ToField("")
			require.NoError(t, err)
			assert.Equal(t, ft.Values()[0], f.StringValue())
		})
	}
}

func TestFieldTemplate_DependencyValuesCanonical(t *testing.T) {
	dep := mustDependency(t, "MODE", IfEquals("X"), ThenValues("07"))
	ft := NewFieldTemplate("LEVEL", WithTypes("I32"), WithDependencies(dep))

	msg := message.New("TEST", message.KindPublish)
	msg.AddField(message.NewStringField("MODE", "X"))
	rf := ft.Resolve(msg)
	assert.Equal(t, []string{"7"}, rf.Values)
	assert.Equal(t, []string{"07"}, dep.Values(), "shared dependency is left as declared")

	typed := mustDependency(t, "MODE", IfEquals("X"), ThenTypes("F64"), ThenValues("1.50"))
	assert.Equal(t, []string{"1.5"}, typed.Values())
}

func TestFieldTemplate_UnparsableValueKept(t *testing.T) {
	ft := NewFieldTemplate("RATE", WithTypes("I16"), WithValues("fast"))
	assert.Equal(t, []string{"fast"}, ft.Values())

	multi := NewFieldTemplate("RATE", WithTypes("I16", "U16"), WithValues("030"))
	assert.Equal(t, []string{"030"}, multi.Values())
}

func TestFieldTemplate_ToField(t *testing.T) {
	ft := NewFieldTemplate("PUB-RATE", WithTypes("I16", "U16"), WithClass(ClassHeader))
	assert.False(t, ft.HasExplicitType())

	_, err := ft.ToField("")
	assert.ErrorIs(t, err, errors.ErrInvalidType)

	f, err := ft.ToField("u16")
	require.NoError(t, err)
	assert.Equal(t, message.TypeU16, f.Type())
	assert.Equal(t, "0", f.StringValue())
	assert.True(t, f.IsHeader())

	_, err = ft.ToField("STRING")
	assert.ErrorIs(t, err, errors.ErrInvalidType)

	variable := NewFieldTemplate("ANY", WithTypes(TypeVariable))
	assert.False(t, variable.HasExplicitType())
	assert.True(t, variable.AllowsType("F32"))
	_, err = variable.ToField(TypeVariable)
	assert.ErrorIs(t, err, errors.ErrInvalidType)

	bad := NewFieldTemplate("BAD", WithTypes("I16"), WithValues("abc"))
	_, err = bad.ToField("")
	assert.ErrorIs(t, err, errors.ErrFieldConversion)
}

func TestFieldTemplate_Resolve(t *testing.T) {
	ft := NewFieldTemplate("MSG-TEXT",
		WithTypes("STRING"),
		WithDependencies(
			mustDependency(t, "SEVERITY", IfGreaterThan("2"), ThenMode(ModeRequired)),
			mustDependency(t, "SEVERITY", IfEquals("4"), ThenPattern("CRIT.*"), ThenRename("ALERT-TEXT")),
		),
	)

	low := message.New("A", message.KindPublish)
	low.AddField(message.NewI16Field("SEVERITY", 1))
	rf := ft.Resolve(low)
	assert.Equal(t, ModeOptional, rf.Mode)
	assert.Equal(t, "MSG-TEXT", rf.Name)

	high := message.New("A", message.KindPublish)
	high.AddField(message.NewI16Field("SEVERITY", 4))
	rf = ft.Resolve(high)
	assert.Equal(t, ModeRequired, rf.Mode)
	assert.Equal(t, "CRIT.*", rf.Pattern)
	assert.Equal(t, "ALERT-TEXT", rf.Name)

	// the template itself is untouched
	assert.Equal(t, ModeOptional, ft.ModifiedMode())
	assert.Equal(t, "MSG-TEXT", ft.ModifiedName())
}

func TestFieldTemplate_LastSatisfiedDependencyWins(t *testing.T) {
	ft := NewFieldTemplate("LIMIT",
		WithDependencies(
			mustDependency(t, "LEVEL", IfGreaterThan("1"), ThenValues("A", "B")),
			mustDependency(t, "LEVEL", IfGreaterThan("5"), ThenValues("C")),
		),
	)

	msg := message.New("A", message.KindPublish)
	msg.AddField(message.NewI32Field("LEVEL", 9))
	assert.Equal(t, []string{"C"}, ft.Resolve(msg).Values)

	msg.AddField(message.NewI32Field("LEVEL", 3))
	assert.Equal(t, []string{"A", "B"}, ft.Resolve(msg).Values)
}

func TestFieldTemplate_DependencyReset(t *testing.T) {
	build := func() *FieldTemplate {
		return NewFieldTemplate("LIMIT",
			WithTypes("STRING"),
			WithValues("NONE"),
			WithDependencies(
				mustDependency(t, "LIMIT-ENABLE-DISABLE", IfEquals("true"),
					ThenMode(ModeRequired), ThenValues("RED-LOW", "RED-HIGH"), ThenTypes("STRING", "I16")),
			),
		)
	}

	msgA := message.New("A", message.KindPublish)
	msgA.AddField(message.NewBoolField("LIMIT-ENABLE-DISABLE", true))
	msgB := message.New("B", message.KindPublish)
	msgB.AddField(message.NewBoolField("LIMIT-ENABLE-DISABLE", false))

	reused := build()
	reused.CheckDependencies(msgA)
	assert.Equal(t, ModeRequired, reused.ModifiedMode())
	assert.Equal(t, []string{"RED-LOW", "RED-HIGH"}, reused.ModifiedValues())

	reused.ResetDependencies()
	reused.CheckDependencies(msgB)

	pristine := build()
	pristine.CheckDependencies(msgB)

	assert.Equal(t, pristine.ModifiedName(), reused.ModifiedName())
	assert.Equal(t, pristine.ModifiedMode(), reused.ModifiedMode())
	assert.Equal(t, pristine.ModifiedPattern(), reused.ModifiedPattern())
	assert.Equal(t, pristine.ModifiedValues(), reused.ModifiedValues())
	assert.Equal(t, pristine.ModifiedTypes(), reused.ModifiedTypes())
}

func TestFieldTemplate_CopyIsDeep(t *testing.T) {
	child := NewFieldTemplate("DATA", WithTypes("BINARY"))
	container := newContainer("FRAME", "FRAME-", []*FieldTemplate{child})

	c := container.Copy()
	c.children[0].name = "CHANGED"
	assert.Equal(t, "DATA", container.children[0].name)

	ft := NewFieldTemplate("X", WithValues("1", "2"))
	cp := ft.Copy()
	cp.values[0] = "9"
	assert.Equal(t, []string{"1", "2"}, ft.Values())
}

func TestFieldTemplate_WithIndex(t *testing.T) {
	ft := NewFieldTemplate("MNEMONIC.--.SAMPLE.--.LIMIT",
		WithDependencies(mustDependency(t, "MNEMONIC.--.SAMPLE.--.LIMIT-ENABLE-DISABLE", IfEquals("true"), ThenMode(ModeRequired))),
	)

	outer := ft.withIndex(2)
	assert.Equal(t, "MNEMONIC.2.SAMPLE.--.LIMIT", outer.Name())
	inner := outer.withIndex(7)
	assert.Equal(t, "MNEMONIC.2.SAMPLE.7.LIMIT", inner.Name())
	assert.Equal(t, "MNEMONIC.2.SAMPLE.7.LIMIT-ENABLE-DISABLE", inner.Dependencies()[0].Name())

	// the source keeps its placeholders
	assert.Equal(t, "MNEMONIC.--.SAMPLE.--.LIMIT", ft.Name())

	start := newArrayStart("SAMPLE", "MNEMONIC.--.NUM-OF-SAMPLES", ModeOptional)
	assert.Equal(t, ArrayStart, start.withIndex(3).Name())
	assert.Equal(t, "MNEMONIC.3.NUM-OF-SAMPLES", start.withIndex(3).Size())
}

func TestFieldTemplate_AppliesTo(t *testing.T) {
	all := NewFieldTemplate("UNIQUE-ID")
	assert.True(t, all.AppliesTo(message.KindReply))

	reqOnly := NewFieldTemplate("REQUEST-ID", WithKinds(message.KindRequest, message.KindReply))
	assert.True(t, reqOnly.AppliesTo(message.KindRequest))
	assert.False(t, reqOnly.AppliesTo(message.KindPublish))
}

func TestParseFieldMode(t *testing.T) {
	mode, err := ParseFieldMode("required")
	require.NoError(t, err)
	assert.Equal(t, ModeRequired, mode)

	mode, err = ParseFieldMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeOptional, mode)

	_, err = ParseFieldMode("MANDATORY")
	assert.ErrorIs(t, err, errors.ErrSchemaParse)
}
