package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveTitle_ShortMessageUnmodified(t *testing.T) {
	require.Equal(t, "0123456789", DeriveTitle("0123456789"))
}

func TestDeriveTitle_LongMessageTruncated(t *testing.T) {
	msg := "Hello world, this is a long first message exceeding thirty characters"
	got := DeriveTitle(msg)
	require.Equal(t, string([]rune(msg)[:30])+"...", got)
	require.Equal(t, "Hello world, this is a long fi...", got)
}

func TestDeriveTitle_ExactLimitUnmodified(t *testing.T) {
	msg := "123456789012345678901234567890" // exactly 30
	require.Equal(t, msg, DeriveTitle(msg))
}

func TestDeriveTitle_CountsRunesNotBytes(t *testing.T) {
	msg := "héllo wörld, ünïcöde çontent thät is longer than thirty runes"
	got := DeriveTitle(msg)
	runes := []rune(got)
	require.Len(t, runes, 33) // 30 content runes + "..."
	require.Equal(t, string([]rune(msg)[:30]), string(runes[:30]))
}

func TestNewConversation_Defaults(t *testing.T) {
	conv := NewConversation()
	require.NotEmpty(t, conv.ID)
	require.Equal(t, DefaultTitle, conv.Title)
	require.Empty(t, conv.Messages)
	require.False(t, conv.CreatedAt.IsZero())

	other := NewConversation()
	require.NotEqual(t, conv.ID, other.ID)
}

func TestClone_Independent(t *testing.T) {
	conv := NewConversation()
	conv.Append(RoleUser, "hi")

	cp := conv.Clone()
	cp.Append(RoleAssistant, "hello")
	cp.Messages[0].Content = "changed"

	require.Len(t, conv.Messages, 1)
	require.Equal(t, "hi", conv.Messages[0].Content)
}
