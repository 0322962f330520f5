package api

import (
	"strconv"
	"testing"

	"coinforge/internal/identity"

	"github.com/stretchr/testify/require"
)

func itoa(n int) string { return strconv.Itoa(n) }

func mustResolve(t *testing.T, platform, user string) string {
	t.Helper()
	id, err := identity.Resolve(platform, user)
	require.NoError(t, err)
	return id
}
