package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testVerifier(t *testing.T, token string) *TokenVerifier {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	require.NoError(t, err)
	v, err := NewTokenVerifier(string(hash))
	require.NoError(t, err)
	return v
}

func TestVerifyAccessToken(t *testing.T) {
	v := testVerifier(t, "s3cret")

	p, err := v.VerifyAccessToken(context.Background(), "s3cret")
	require.NoError(t, err)
	assert.Equal(t, Fingerprint("s3cret"), p.Subject)
	assert.Len(t, p.Subject, 8)

	_, err = v.VerifyAccessToken(context.Background(), "wrong")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.VerifyAccessToken(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestVerifyAccessToken_CanceledContext(t *testing.T) {
	v := testVerifier(t, "s3cret")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := v.VerifyAccessToken(ctx, "s3cret")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewTokenVerifier_RejectsBadHash(t *testing.T) {
	_, err := NewTokenVerifier("")
	assert.Error(t, err)
	_, err = NewTokenVerifier("not-a-bcrypt-hash")
	assert.Error(t, err)
}

func TestHashToken_RoundTrip(t *testing.T) {
	hash, err := HashToken("abc")
	require.NoError(t, err)
	v, err := NewTokenVerifier(hash)
	require.NoError(t, err)
	_, err = v.VerifyAccessToken(context.Background(), "abc")
	assert.NoError(t, err)

	_, err = HashToken("")
	assert.ErrorIs(t, err, ErrMissingToken)
}
