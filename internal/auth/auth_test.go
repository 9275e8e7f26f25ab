package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogin_RequiresCredentials(t *testing.T) {
	g := NewGate()

	_, err := g.Login("", "secret")
	require.Error(t, err)
	_, err = g.Login("user@example.com", "")
	require.Error(t, err)
}

func TestLoginAndCheck(t *testing.T) {
	g := NewGate()

	token, err := g.Login("user@example.com", "secret")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.True(t, g.Check(token))
	require.False(t, g.Check("forged-token"))
	require.False(t, g.Check(""))
}

func TestCheck_DistinctSessions(t *testing.T) {
	g := NewGate()

	a, err := g.Login("a@example.com", "pw")
	require.NoError(t, err)
	b, err := g.Login("b@example.com", "pw")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.True(t, g.Check(a))
	require.True(t, g.Check(b))
}
