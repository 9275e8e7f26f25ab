// Package repo is the domain-shaped façade over the durable store. It keeps
// an ordered in-memory mirror of every conversation and is the sole writer to
// persisted chat state.
package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"parley/internal/chat"
	"parley/internal/logger"
	"parley/internal/store"
)

// Storage is the subset of the durable store the repository needs. It is an
// interface so tests can substitute a failing or in-memory backend.
type Storage interface {
	Get(ctx context.Context, id string) (store.Record, error)
	Put(ctx context.Context, rec store.Record) error
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]store.Record, error)
}

// Repository wraps a Storage with chat-domain operations and a read-optimized
// mirror rebuilt from storage at startup. Persistence is authoritative; the
// mirror is a cache.
type Repository struct {
	storage Storage
	mirror  []*chat.Conversation
}

// New creates a repository over storage. storage may be nil when the backing
// database failed to open; every operation then degrades to mirror-only.
func New(storage Storage) *Repository {
	return &Repository{storage: storage}
}

// LoadAll reads every persisted conversation into the mirror. If storage is
// empty or unreadable it synthesizes a single default conversation instead,
// persisting it best-effort. Startup storage errors are absorbed: the caller
// always gets at least one usable conversation, never an error.
func (r *Repository) LoadAll(ctx context.Context) []*chat.Conversation {
	recs, err := r.list(ctx)
	if err != nil {
		logger.L.Warn("loading chats failed; starting with a fresh chat", "error", err)
		recs = nil
	}

	r.mirror = r.mirror[:0]
	for _, rec := range recs {
		var conv chat.Conversation
		if err := json.Unmarshal(rec.Data, &conv); err != nil {
			logger.L.Warn("skipping undecodable chat record", "id", rec.ID, "error", err)
			continue
		}
		if conv.Messages == nil {
			conv.Messages = []chat.Message{}
		}
		r.mirror = append(r.mirror, &conv)
	}

	if len(r.mirror) == 0 {
		conv := chat.NewConversation()
		if err := r.Save(ctx, conv); err != nil {
			logger.L.Warn("persisting default chat failed; keeping it in memory", "error", err)
		}
	}
	return r.All()
}

func (r *Repository) list(ctx context.Context) ([]store.Record, error) {
	if r.storage == nil {
		return nil, store.ErrStorageUnavailable
	}
	return r.storage.ListAll(ctx)
}

// Save persists conv and updates the mirror, replacing in place when the id
// already exists (preserving relative order) and appending otherwise.
func (r *Repository) Save(ctx context.Context, conv *chat.Conversation) error {
	cp := conv.Clone()
	replaced := false
	for i, c := range r.mirror {
		if c.ID == cp.ID {
			r.mirror[i] = cp
			replaced = true
			break
		}
	}
	if !replaced {
		r.mirror = append(r.mirror, cp)
	}

	if r.storage == nil {
		return store.ErrStorageUnavailable
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode chat %s: %w", cp.ID, err)
	}
	return r.storage.Put(ctx, store.Record{ID: cp.ID, Data: data})
}

// Remove deletes the conversation from the mirror and from storage. Choosing
// a replacement active conversation is the controller's policy, not ours.
func (r *Repository) Remove(ctx context.Context, id string) error {
	for i, c := range r.mirror {
		if c.ID == id {
			r.mirror = append(r.mirror[:i], r.mirror[i+1:]...)
			break
		}
	}
	if r.storage == nil {
		return store.ErrStorageUnavailable
	}
	return r.storage.Delete(ctx, id)
}

// Find returns the mirrored conversation with the given id, or nil.
func (r *Repository) Find(id string) *chat.Conversation {
	for _, c := range r.mirror {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// All returns the mirrored conversations in order.
func (r *Repository) All() []*chat.Conversation {
	out := make([]*chat.Conversation, len(r.mirror))
	copy(out, r.mirror)
	return out
}

// Len returns the number of mirrored conversations.
func (r *Repository) Len() int {
	return len(r.mirror)
}
