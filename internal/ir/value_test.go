package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	valid := []string{"0", "42", "-1", "+1", "3.14", "-0.5", ".5", "5.", "123456789012345678901234567890.5"}
	for _, s := range valid {
		t.Run(s, func(t *testing.T) {
			d, err := ParseDecimal(s)
			require.NoError(t, err)
			assert.Equal(t, Decimal(s), d)
		})
	}

	invalid := []string{"", ".", "-", "+.", "1.2.3", "1e5", "abc", "1,5", " 1"}
	for _, s := range invalid {
		t.Run("invalid_"+s, func(t *testing.T) {
			_, err := ParseDecimal(s)
			assert.Error(t, err)
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		value Value
		want  Kind
	}{
		{Null{}, KindNull},
		{String("x"), KindString},
		{Int(7), KindInt},
		{Decimal("1.5"), KindDecimal},
		{Bool(true), KindBool},
		{Date{Year: 2020, Month: time.March, Day: 1}, KindDate},
		{Timestamp{Time: time.Date(2020, 3, 1, 12, 0, 0, 0, time.UTC)}, KindTimestamp},
		{List{Int(1), Int(2)}, KindList},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.value), "value %#v", tt.value)
	}
}

func TestParseKind(t *testing.T) {
	for _, name := range []string{"string", "int", "decimal", "bool", "date", "timestamp"} {
		kind, err := ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, name, kind.String())
	}

	// null and list are runtime kinds, not declarable column types.
	_, err := ParseKind("null")
	assert.Error(t, err)
	_, err = ParseKind("list")
	assert.Error(t, err)
	_, err = ParseKind("float")
	assert.Error(t, err)
}
