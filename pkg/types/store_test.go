package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSort(t *testing.T) {
	tests := []struct {
		in      string
		want    Sort
		wantErr bool
	}{
		{in: "name", want: Sort{Column: "name"}},
		{in: "name asc", want: Sort{Column: "name"}},
		{in: "name desc", want: Sort{Column: "name", Desc: true}},
		{in: "name:DESC", want: Sort{Column: "name", Desc: true}},
		{in: "-created", want: Sort{Column: "created", Desc: true}},
		{in: "", wantErr: true},
		{in: "name sideways", wantErr: true},
		{in: "a b c", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSort(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidQuery)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWhereColumnsSorted(t *testing.T) {
	w := Where{"b": 1, "a": 2, "c": nil}
	assert.Equal(t, []string{"a", "b", "c"}, w.Columns())
	assert.Empty(t, Where(nil).Columns())
}

func TestAdapterNotSetIsConfigurationError(t *testing.T) {
	assert.ErrorIs(t, ErrAdapterNotSet, ErrConfiguration)
}

func TestCardinality(t *testing.T) {
	assert.True(t, CardinalityOne.Single())
	assert.False(t, CardinalityMany.Single())
	assert.False(t, Cardinality("").Single())
	assert.True(t, Cardinality("").Valid())
	assert.False(t, Cardinality("several").Valid())
}
