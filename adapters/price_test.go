package adapters

import (
	"encoding/json"
	"testing"

	"grocery-helpers/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"dollars", "$4.99", "4.99"},
		{"no sign", "12.50", "12.5"},
		{"thousands", "$1,299.00", "1299"},
		{"split across lines", "$3\n.47", "3.47"},
		{"cents", "99¢", "0.99"},
		{"mis-decoded cents", "87Â¢", "0.87"},
		{"single digit cents", "5¢", "0.05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePrice(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParsePrice_Invalid(t *testing.T) {
	for _, input := range []string{"", "  ", "free", "abc¢"} {
		_, err := parsePrice(input)
		assert.Error(t, err, input)
	}
}

func TestSplitUnitPrice(t *testing.T) {
	assert.Equal(t, types.UnitPrice{Price: "$1.10", Quantity: "100g"}, splitUnitPrice(" $1.10/100g "))
	assert.Equal(t, types.UnitPrice{Price: "$0.44", Quantity: "1ea"}, splitUnitPrice("$0.44 / 1ea"))
	assert.Equal(t, types.UnitPrice{Price: "$2.00"}, splitUnitPrice("$2.00"))
}

func TestFlexString(t *testing.T) {
	var v struct {
		A flexString `json:"a"`
		B flexString `json:"b"`
		C flexString `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"4.99","b":3,"c":null}`), &v))
	assert.Equal(t, "4.99", v.A.String())
	assert.Equal(t, "3", v.B.String())
	assert.Equal(t, "", v.C.String())
}
