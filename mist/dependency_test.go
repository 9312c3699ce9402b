package mist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/message"
)

func TestNewDependency_RequiresOneCondition(t *testing.T) {
	_, err := NewDependency("SEVERITY", ThenMode(ModeRequired))
	assert.ErrorIs(t, err, errors.ErrSchemaParse)

	_, err = NewDependency("SEVERITY", IfEquals("1"), IfLessThan("3"))
	assert.ErrorIs(t, err, errors.ErrSchemaParse)

	_, err = NewDependency("", IfEquals("1"))
	assert.ErrorIs(t, err, errors.ErrSchemaParse)

	dep, err := NewDependency("severity", IfLessThan("3"), ThenPattern("X+"))
	require.NoError(t, err)
	assert.Equal(t, "SEVERITY", dep.Name())
	cond, operand := dep.Condition()
	assert.Equal(t, ConditionLessThan, cond)
	assert.Equal(t, "3", operand)
	_, hasMode := dep.Mode()
	assert.False(t, hasMode)
}

func TestDependency_Satisfied(t *testing.T) {
	tests := []struct {
		name  string
		opt   DependencyOption
		field *message.Field
		want  bool
	}{
		{"signed equals", IfEquals("3"), message.NewI16Field("F", 3), true},
		{"signed greater", IfGreaterThan("2"), message.NewI32Field("F", 3), true},
		{"signed not greater", IfGreaterThan("3"), message.NewI32Field("F", 3), false},
		{"signed less", IfLessThan("0"), message.NewI8Field("F", -1), true},
		{"unsigned greater", IfGreaterThan("10"), message.NewU32Field("F", 11), true},
		{"unsigned negative operand", IfLessThan("-1"), message.NewU16Field("F", 1), false},
		{"float equals within epsilon", IfEquals("1.0000001"), message.NewF64Field("F", 1.0), true},
		{"float greater within epsilon", IfGreaterThan("1.0000001"), message.NewF64Field("F", 1.0), false},
		{"float less", IfLessThan("2.5"), message.NewF32Field("F", 2.25), true},
		{"bool equals", IfEquals("TRUE"), message.NewBoolField("F", true), true},
		{"bool greater never", IfGreaterThan("false"), message.NewBoolField("F", true), false},
		{"string equals", IfEquals("RT"), message.NewStringField("F", "RT"), true},
		{"string greater never", IfGreaterThan("A"), message.NewStringField("F", "B"), false},
		{"numeric operand on string field", IfEquals("3"), message.NewStringField("F", "three"), false},
		{"text operand on numeric field", IfEquals("three"), message.NewI16Field("F", 3), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dep, err := NewDependency("F", tt.opt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dep.Satisfied(tt.field))
		})
	}

	dep, err := NewDependency("F", IfEquals("1"))
	require.NoError(t, err)
	assert.False(t, dep.Satisfied(nil))
}
