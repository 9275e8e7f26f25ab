// Package controller orchestrates user intent (send, switch, create, delete)
// against the session repository and the stream ingestion engine. It owns the
// single authoritative view of which conversation is active and of any
// in-progress assistant reply.
package controller

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/qmuntal/stateless"

	"parley/internal/chat"
	"parley/internal/llm"
	"parley/internal/logger"
	"parley/internal/repo"
	"parley/internal/stream"
)

// Per-conversation send states and triggers. A conversation cycles
// Idle -> Sending -> Idle whether the reply succeeds or fails; the machine
// only exists to refuse a second send while one is in flight.
type FSMState stateless.State

var (
	StateIdle    FSMState = "Idle"
	StateSending FSMState = "Sending"
)

type FSMTrigger stateless.Trigger

var (
	TriggerSendStarted FSMTrigger = "SendStarted"
	TriggerSendSettled FSMTrigger = "SendSettled"
)

// ErrorNotice is the fixed assistant message shown when a reply fails. When a
// partial reply was received it is appended after the partial content.
const ErrorNotice = "Sorry, there was an error processing your request. Please try again."

var (
	// ErrBlankMessage reports a send with no content.
	ErrBlankMessage = errors.New("message is blank")

	// ErrNoActiveChat reports a send with no active conversation.
	ErrNoActiveChat = errors.New("no active chat")

	// ErrSendInFlight reports a second send on a conversation whose previous
	// send has not settled yet.
	ErrSendInFlight = errors.New("send already in flight for this chat")
)

// Controller coordinates the repository, the completion collaborator and the
// ingestion engine. All state is guarded by mu; the stream itself is consumed
// outside the lock so concurrent sends on different conversations proceed
// independently.
type Controller struct {
	mu        sync.Mutex
	sessions  *repo.Repository
	completer llm.Completer

	activeID string
	pending  map[string]string // conversation id -> in-progress assistant content
	machines map[string]*stateless.StateMachine
}

// New creates a controller over the repository and completion collaborator.
func New(sessions *repo.Repository, completer llm.Completer) *Controller {
	c := &Controller{
		sessions:  sessions,
		completer: completer,
		pending:   make(map[string]string),
		machines:  make(map[string]*stateless.StateMachine),
	}
	return c
}

// Startup loads persisted conversations and designates the first as active.
// It never fails: an empty or broken store degrades to one fresh chat.
func (c *Controller) Startup(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	convs := c.sessions.LoadAll(ctx)
	c.activeID = convs[0].ID
}

// machine returns the send state machine for a conversation, creating it in
// Idle on first use.
func (c *Controller) machine(id string) *stateless.StateMachine {
	m, ok := c.machines[id]
	if !ok {
		m = stateless.NewStateMachine(StateIdle)
		m.Configure(StateIdle).Permit(TriggerSendStarted, StateSending)
		m.Configure(StateSending).Permit(TriggerSendSettled, StateIdle)
		c.machines[id] = m
	}
	return m
}

// CreateChat synthesizes a new empty conversation, persists it and makes it
// active. A persist failure is logged, not surfaced: the chat still becomes
// active and the next mutation will attempt to persist again.
func (c *Controller) CreateChat(ctx context.Context) *chat.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createChatLocked(ctx)
}

func (c *Controller) createChatLocked(ctx context.Context) *chat.Conversation {
	conv := chat.NewConversation()
	if err := c.sessions.Save(ctx, conv); err != nil {
		logger.L.Warn("persisting new chat failed; continuing in memory", "id", conv.ID, "error", err)
	}
	c.activeID = conv.ID
	return conv
}

// SwitchActive makes the conversation with the given id active. Unknown ids
// are a no-op. Switching never touches an in-flight send: its stream keeps
// updating the conversation it was started for.
func (c *Controller) SwitchActive(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessions.Find(id) == nil {
		return
	}
	c.activeID = id
}

// DeleteChat removes a conversation. When the deleted conversation was
// active, the first remaining one becomes active; deleting the last
// conversation synthesizes a fresh default chat, so at least one conversation
// always exists.
func (c *Controller) DeleteChat(ctx context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sessions.Remove(ctx, id); err != nil {
		logger.L.Warn("deleting chat from storage failed", "id", id, "error", err)
	}
	delete(c.machines, id)
	delete(c.pending, id)

	if c.activeID != id {
		return
	}
	if remaining := c.sessions.All(); len(remaining) > 0 {
		c.activeID = remaining[0].ID
		return
	}
	c.createChatLocked(ctx)
}

// Active returns the active conversation, or nil before Startup.
func (c *Controller) Active() *chat.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions.Find(c.activeID)
}

// Chats returns all conversations in mirror order.
func (c *Controller) Chats() []*chat.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions.All()
}

// Visible returns the message list for the active conversation, including the
// in-progress assistant reply when a send is streaming.
func (c *Controller) Visible() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv := c.sessions.Find(c.activeID)
	if conv == nil {
		return nil
	}
	msgs := make([]chat.Message, len(conv.Messages))
	copy(msgs, conv.Messages)
	if pending, ok := c.pending[conv.ID]; ok {
		msgs = append(msgs, chat.Message{Role: chat.RoleAssistant, Content: pending})
	}
	return msgs
}

// Send appends text as a user message to the active conversation, persists
// the checkpoint, streams the assistant reply and persists the settled
// conversation. onSnapshot, when non-nil, receives each cumulative reply
// snapshot as it grows.
//
// On any failure after the checkpoint the user message is never lost: the
// conversation is persisted with whatever partial reply accumulated plus
// ErrorNotice. The returned error reports the stream failure in that case.
func (c *Controller) Send(ctx context.Context, text string, onSnapshot func(string)) error {
	if strings.TrimSpace(text) == "" {
		return ErrBlankMessage
	}

	c.mu.Lock()
	conv := c.sessions.Find(c.activeID)
	if conv == nil {
		c.mu.Unlock()
		return ErrNoActiveChat
	}
	id := conv.ID

	m := c.machine(id)
	if ok, _ := m.CanFire(TriggerSendStarted); !ok {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	if err := m.Fire(TriggerSendStarted); err != nil {
		c.mu.Unlock()
		return err
	}

	work := conv.Clone()
	if work.Title == chat.DefaultTitle && len(work.Messages) == 0 {
		work.Title = chat.DeriveTitle(text)
	}
	work.Append(chat.RoleUser, text)

	// Durability checkpoint before the network call: the user message
	// survives even if everything after this point fails.
	if err := c.sessions.Save(ctx, work); err != nil {
		logger.L.Warn("checkpoint save failed", "id", id, "error", err)
	}
	history := make([]chat.Message, len(work.Messages))
	copy(history, work.Messages)
	c.mu.Unlock()

	src, err := c.completer.StreamCompletion(ctx, history)
	if err != nil {
		logger.L.Error("completion call failed", "id", id, "error", err)
		c.settle(ctx, id, ErrorNotice)
		return err
	}

	// Placeholder empty assistant message, grown by each snapshot.
	c.mu.Lock()
	c.pending[id] = ""
	c.mu.Unlock()

	content, err := stream.Ingest(ctx, src, func(snapshot string) {
		c.mu.Lock()
		c.pending[id] = snapshot
		c.mu.Unlock()
		if onSnapshot != nil {
			onSnapshot(snapshot)
		}
	})
	if err != nil {
		var interrupted *stream.InterruptedError
		if errors.As(err, &interrupted) && interrupted.Partial != "" {
			content = interrupted.Partial + "\n\n" + ErrorNotice
		} else {
			content = ErrorNotice
		}
		logger.L.Error("reply stream interrupted", "id", id, "error", err)
		c.settle(ctx, id, content)
		return err
	}

	c.settle(ctx, id, content)
	return nil
}

// settle merges the final assistant content into the conversation's committed
// message sequence, persists it, clears the pending slot and returns the
// conversation's machine to Idle. The conversation may have been deleted
// while the stream ran; settlement is then a cleanup-only step.
func (c *Controller) settle(ctx context.Context, id, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conv := c.sessions.Find(id); conv != nil {
		upd := conv.Clone()
		upd.Append(chat.RoleAssistant, content)
		if err := c.sessions.Save(ctx, upd); err != nil {
			logger.L.Warn("final save failed", "id", id, "error", err)
		}
	}
	delete(c.pending, id)
	if m, ok := c.machines[id]; ok {
		if err := m.Fire(TriggerSendSettled); err != nil {
			logger.L.Warn("send machine settle failed", "id", id, "error", err)
		}
	}
}
