package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveUsername(t *testing.T) {
	cases := []struct {
		name  string
		email string
		want  string
	}{
		{"Dave Grohl", "dave@example.com", "dave.grohl"},
		{"José Álvarez", "jose@example.com", "jose.alvarez"},
		{"  Budi   Santoso ", "budi@example.com", "budi.santoso"},
		{"", "eve.adams@example.com", "eve.adams"},
		{"!!!", "frank_z@example.com", "frank.z"},
		{"林書豪", "jlin17@example.com", "jlin17"},
		{"", "@example.com", "user"},
		{"", "", "user"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, deriveUsername(tc.name, tc.email), "name=%q email=%q", tc.name, tc.email)
	}
}

func TestSanitizeUsername(t *testing.T) {
	assert.Equal(t, "a.b", sanitizeUsername("a---b"))
	assert.Equal(t, "abc", sanitizeUsername("...abc..."))
	assert.Equal(t, "", sanitizeUsername("   "))
	assert.Equal(t, "francois", sanitizeUsername("François"))
}
