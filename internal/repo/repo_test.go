package repo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"parley/internal/chat"
	"parley/internal/store"
)

func openTestStorage(t *testing.T) (*store.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chats.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestLoadAll_EmptyStoreSynthesizesDefault(t *testing.T) {
	storage, path := openTestStorage(t)
	r := New(storage)

	convs := r.LoadAll(context.Background())
	require.Len(t, convs, 1)
	require.Equal(t, chat.DefaultTitle, convs[0].Title)
	require.Empty(t, convs[0].Messages)

	// The synthesized chat was persisted: a second repository over the same
	// database sees it rather than creating another one.
	storage.Close()
	reopened, err := store.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	again := New(reopened).LoadAll(context.Background())
	require.Len(t, again, 1)
	require.Equal(t, convs[0].ID, again[0].ID)
}

func TestLoadAll_RoundTrip(t *testing.T) {
	storage, _ := openTestStorage(t)
	ctx := context.Background()

	r := New(storage)
	r.LoadAll(ctx)

	conv := chat.NewConversation()
	conv.Title = "weather talk"
	conv.Append(chat.RoleUser, "how's the weather?")
	conv.Append(chat.RoleAssistant, "sunny")
	require.NoError(t, r.Save(ctx, conv))

	fresh := New(storage)
	convs := fresh.LoadAll(ctx)
	require.Len(t, convs, 2)

	got := fresh.Find(conv.ID)
	require.NotNil(t, got)
	require.Equal(t, conv.Title, got.Title)
	require.Equal(t, conv.Messages, got.Messages)
	require.True(t, conv.CreatedAt.Equal(got.CreatedAt))
}

func TestLoadAll_StorageErrorDegrades(t *testing.T) {
	r := New(failingStorage{})

	convs := r.LoadAll(context.Background())
	require.Len(t, convs, 1)
	require.Equal(t, chat.DefaultTitle, convs[0].Title)
}

func TestLoadAll_NilStorageDegrades(t *testing.T) {
	r := New(nil)
	convs := r.LoadAll(context.Background())
	require.Len(t, convs, 1)
}

func TestSave_ReplacesInPlace(t *testing.T) {
	storage, _ := openTestStorage(t)
	ctx := context.Background()
	r := New(storage)

	a, b, c := chat.NewConversation(), chat.NewConversation(), chat.NewConversation()
	require.NoError(t, r.Save(ctx, a))
	require.NoError(t, r.Save(ctx, b))
	require.NoError(t, r.Save(ctx, c))

	b.Append(chat.RoleUser, "middle one")
	require.NoError(t, r.Save(ctx, b))

	all := r.All()
	require.Len(t, all, 3)
	require.Equal(t, []string{a.ID, b.ID, c.ID}, []string{all[0].ID, all[1].ID, all[2].ID})
	require.Len(t, all[1].Messages, 1)
}

func TestSave_DoesNotAliasCaller(t *testing.T) {
	storage, _ := openTestStorage(t)
	r := New(storage)

	conv := chat.NewConversation()
	conv.Append(chat.RoleUser, "original")
	require.NoError(t, r.Save(context.Background(), conv))

	conv.Messages[0].Content = "mutated after save"
	require.Equal(t, "original", r.Find(conv.ID).Messages[0].Content)
}

func TestRemove(t *testing.T) {
	storage, _ := openTestStorage(t)
	ctx := context.Background()
	r := New(storage)

	a, b := chat.NewConversation(), chat.NewConversation()
	require.NoError(t, r.Save(ctx, a))
	require.NoError(t, r.Save(ctx, b))

	require.NoError(t, r.Remove(ctx, a.ID))
	require.Nil(t, r.Find(a.ID))
	require.Equal(t, 1, r.Len())

	_, err := storage.Get(ctx, a.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

// failingStorage errors on every operation.
type failingStorage struct{}

var errBroken = errors.New("disk on fire")

func (failingStorage) Get(context.Context, string) (store.Record, error) {
	return store.Record{}, errBroken
}
func (failingStorage) Put(context.Context, store.Record) error { return errBroken }

func (failingStorage) Delete(context.Context, string) error { return errBroken }

func (failingStorage) ListAll(context.Context) ([]store.Record, error) {
	return nil, errBroken
}
