package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrackingTokenFormat(t *testing.T) {
	at := time.Date(2026, 4, 10, 15, 4, 5, 0, time.UTC)
	token, err := NewTrackingToken(at)
	require.NoError(t, err)
	assert.Regexp(t, `^REQ-20260410-150405-[0-9a-f]{4}$`, token)
}

func TestNewTrackingTokenUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	at := time.Date(2026, 4, 10, 3, 0, 0, 0, loc) // midnight UTC
	token, err := NewTrackingToken(at)
	require.NoError(t, err)
	assert.Contains(t, token, "REQ-20260410-000000-")
}

func TestAccessTokenCarriesClaims(t *testing.T) {
	tok, err := NewAccessToken("secret", 42, "MANAGEMENT", 15)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), tok.Exp, 5*time.Second)
}
