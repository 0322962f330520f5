package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Principal identifies an authenticated API caller. Operator tokens are not
// tied to a player, so Subject is a short fingerprint of the token.
type Principal struct {
	Subject string
}

type TokenVerifier struct {
	hash []byte
}

func NewTokenVerifier(hash string) (*TokenVerifier, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, fmt.Errorf("token hash is required")
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("parse token hash: %w", err)
	}
	return &TokenVerifier{hash: []byte(hash)}, nil
}

func (v *TokenVerifier) VerifyAccessToken(ctx context.Context, token string) (Principal, error) {
	if err := ctx.Err(); err != nil {
		return Principal{}, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrMissingToken
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(token)); err != nil {
		return Principal{}, ErrInvalidToken
	}
	return Principal{Subject: Fingerprint(token)}, nil
}

// HashToken produces the value expected in COINFORGE_API_TOKEN_HASH.
func HashToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	out, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(out), nil
}

func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}
