package identity

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasScope(t *testing.T) {
	tests := []struct {
		granted []string
		scope   string
		want    bool
	}{
		{[]string{"all"}, "banshares/create", true},
		{[]string{"banshares"}, "banshares/create", true},
		{[]string{"banshares/create"}, "banshares/create", true},
		{[]string{"banshares/create"}, "banshares/manage", false},
		{[]string{"banshares/create"}, "banshares", false},
		{[]string{"bans"}, "banshares/create", false},
		{nil, "banshares/read", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HasScope(tt.granted, tt.scope), "%v has %s", tt.granted, tt.scope)
	}
}

func TestFromToken(t *testing.T) {
	p, err := FromToken(&jwt.Token{Claims: jwt.MapClaims{
		"sub":      "900000000000000001",
		"scopes":   []interface{}{"banshares/read", 7, "banshares/manage"},
		"internal": true,
	}})
	require.NoError(t, err)
	assert.Equal(t, "900000000000000001", p.ID)
	assert.Equal(t, []string{"banshares/read", "banshares/manage"}, p.Scopes)
	assert.True(t, p.Internal)
	assert.True(t, p.HasScope("banshares/manage"))

	p, err = FromToken(&jwt.Token{Claims: jwt.MapClaims{"sub": "1", "scopes": "banshares, all"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"banshares", "all"}, p.Scopes)
	assert.False(t, p.Internal)

	_, err = FromToken(&jwt.Token{Claims: jwt.MapClaims{"scopes": "all"}})
	assert.ErrorIs(t, err, ErrNoSubject)

	_, err = FromToken(&jwt.Token{Claims: &jwt.RegisteredClaims{Subject: "1"}})
	assert.ErrorIs(t, err, ErrInvalidClaim)

	_, err = FromToken(nil)
	assert.ErrorIs(t, err, ErrNoToken)
}
