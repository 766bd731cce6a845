//go:build !integration

package api

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthManagerRoundTrip(t *testing.T) {
	a := NewAuthManager("s3cret", time.Hour)
	tok, err := a.Mint("session-1")
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	claims, err := a.ParseFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "session-1", claims.Subject)

	r = httptest.NewRequest("GET", "/x?token="+tok, nil)
	claims, err = a.ParseFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "session-1", claims.Subject)
}

func TestAuthManagerRejects(t *testing.T) {
	a := NewAuthManager("s3cret", time.Minute)
	tok, err := a.Mint("s")
	require.NoError(t, err)

	_, err = a.ParseFromRequest(httptest.NewRequest("GET", "/x", nil))
	assert.ErrorIs(t, err, errMissingToken)

	other := NewAuthManager("different", time.Minute)
	r := httptest.NewRequest("GET", "/x?token="+tok, nil)
	_, err = other.ParseFromRequest(r)
	assert.Error(t, err)

	a.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = a.ParseFromRequest(r)
	assert.Error(t, err, "expired token must be rejected")
}
