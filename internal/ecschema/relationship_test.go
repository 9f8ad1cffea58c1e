package ecschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMultiplicity(t *testing.T) {
	tests := []struct {
		in      string
		want    Multiplicity
		wantErr bool
	}{
		{in: "0..1", want: ZeroOne},
		{in: "(1..1)", want: OneOne},
		{in: "0..*", want: ZeroMany},
		{in: "(1..N)", want: OneMany},
		{in: "1", want: OneOne},
		{in: "0..3", want: Multiplicity{Lower: 0, Upper: 3}},
		{in: "2..1", wantErr: true},
		{in: "a..1", wantErr: true},
		{in: "0..0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMultiplicity(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMultiplicity_Predicates(t *testing.T) {
	assert.True(t, ZeroMany.IsMany())
	assert.False(t, ZeroOne.IsMany())
	assert.True(t, OneOne.IsExactlyOne())
	assert.True(t, OneMany.IsMandatory())
	assert.False(t, ZeroOne.IsMandatory())
	assert.Equal(t, "(0..*)", ZeroMany.String())
	assert.Equal(t, "(1..1)", OneOne.String())
}

func TestEnd_Other(t *testing.T) {
	assert.Equal(t, EndTarget, EndSource.Other())
	assert.Equal(t, EndSource, EndTarget.Other())
	assert.Equal(t, "SET NULL", OnDeleteSetNull.SQL())
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath("Address.Street")
	require.NoError(t, err)
	assert.Len(t, p.Segments, 2)
	assert.Equal(t, "Address.Street", p.String())

	p, err = ParsePath("Items[].Name")
	require.NoError(t, err)
	assert.True(t, p.Segments[0].IsArray)

	for _, bad := range []string{"", "a..b", "[]", "1abc"} {
		_, err := ParsePath(bad)
		assert.Error(t, err, bad)
	}
}
