package entry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeCodesRoundTrip(t *testing.T) {
	for _, typ := range []Type{TypeMedia, TypeExternalPack, TypeAnimatedMedia} {
		parsed, err := ParseType(typ.Code())
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}
}

func TestParseTypeUnknown(t *testing.T) {
	for _, code := range []string{"", "x", "S", "sp"} {
		_, err := ParseType(code)
		assert.ErrorIs(t, err, ErrUnknownType, "code %q", code)
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"simple", "cats", true},
		{"punctuation", "cats-and-dogs_01", true},
		{"spaces allowed", "my cats", true},
		{"empty", "", false},
		{"uppercase rejected", "Cats", false},
		{"too long", strings.Repeat("a", MaxPackNameLen+1), false},
		{"exactly max", strings.Repeat("a", MaxPackNameLen), true},
		{"bad char", "cats|0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				var ne *NameError
				assert.ErrorAs(t, err, &ne)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "cats", NormalizeName("  CaTs "))
}

func TestEntryValidate(t *testing.T) {
	assert.NoError(t, Entry{Type: TypeMedia, Data: "file-id"}.Validate())
	assert.Error(t, Entry{Type: TypeMedia, Data: ""}.Validate())
	assert.Error(t, Entry{Type: TypeMedia, Data: strings.Repeat("x", MaxDataLen+1)}.Validate())
	assert.Error(t, Entry{Type: Type(99), Data: "ok"}.Validate())
}

func TestIsDeeplinkSafe(t *testing.T) {
	assert.True(t, IsDeeplinkSafe("cats_01-A"))
	assert.False(t, IsDeeplinkSafe("with space"))
	assert.False(t, IsDeeplinkSafe(""))
}
