package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFlatten(t *testing.T) {
	got := Flatten(map[string]any{
		"id":   "did:key:holder",
		"name": "Ada",
		"address": map[string]any{
			"city": "Zurich",
			"geo":  map[string]any{"lat": 47.3},
		},
		"tags":  []any{"a", "b"},
		"empty": map[string]any{},
	})

	assert.Equal(t, map[string]any{
		"name":            "Ada",
		"address.city":    "Zurich",
		"address.geo.lat": 47.3,
		"tags":            []any{"a", "b"},
		"empty":           map[string]any{},
	}, got)
}

func TestMostSpecificType(t *testing.T) {
	assert.Equal(t, "Badge", MostSpecificType([]string{"VerifiableCredential", "Badge"}))
	assert.Equal(t, "VerifiableCredential", MostSpecificType([]string{"VerifiableCredential"}))
	assert.Equal(t, "VerifiableCredential", MostSpecificType(nil))
}

func TestStoredCredentialIsExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	assert.True(t, StoredCredential{ExpiresAt: &past}.IsExpired(now))
	assert.False(t, StoredCredential{}.IsExpired(now), "no expiry never expires")
}
