// ABOUTME: Conversation session lifecycle: resolve agent, resolve conversation, stream replies
// ABOUTME: An epoch counter silences every async continuation from a superseded target

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parlorhq/parlor-go/internal/api"
	"github.com/parlorhq/parlor-go/internal/stream"
)

// State is the session lifecycle position.
type State int

const (
	StateIdle State = iota
	StateResolvingAgent
	StateResolvingConversation
	StateReady
	StateSending
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolvingAgent:
		return "resolving_agent"
	case StateResolvingConversation:
		return "resolving_conversation"
	case StateReady:
		return "ready"
	case StateSending:
		return "sending"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrNotReady is returned by Send before agent and conversation resolution
// have both completed.
var ErrNotReady = errors.New("session not ready to send")

// Backend is what the manager needs from the API client.
type Backend interface {
	GetAgent(ctx context.Context, handle string) (*api.Agent, error)
	CreateOrGetConversation(ctx context.Context, targetID, chatType string) (*api.Conversation, error)
	GetMessages(ctx context.Context, conversationID string) ([]api.ChatMessage, error)
	StreamReply(ctx context.Context, conversationID, content, clientMessageID string) (io.ReadCloser, error)
}

// Directory is the agent metadata cache consulted before the network.
type Directory interface {
	Get(handle string) (api.Agent, bool)
	Set(handle string, agent api.Agent)
}

// HistoryCache is the durable transcript cache.
type HistoryCache interface {
	Load(ctx context.Context, conversationID string) ([]api.ChatMessage, bool)
	Save(ctx context.Context, conversationID string, msgs []api.ChatMessage) error
}

// Listener receives session events. Callbacks arrive from background
// goroutines but never from a superseded epoch.
type Listener interface {
	OnStateChange(state State, errMsg string)
	OnTranscript(msgs []api.ChatMessage)
	OnTyping(partial string)
	OnMessage(msg api.ChatMessage)
}

// Manager owns one conversation session with a target agent. Changing the
// target resets the session and bumps the epoch; every continuation from
// resolution, history refresh or reply decoding re-checks its epoch before
// touching state, so stale work from a prior target or a superseded stream
// never renders.
type Manager struct {
	mu        sync.Mutex
	backend   Backend
	directory Directory
	history   HistoryCache
	listener  Listener
	logger    *slog.Logger

	epoch        uint64
	state        State
	errMsg       string
	handle       string
	agent        *api.Agent
	conversation *api.Conversation
	transcript   []api.ChatMessage
	cancelStream context.CancelFunc
}

// NewManager creates a session manager.
func NewManager(backend Backend, dir Directory, hist HistoryCache, listener Listener, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		backend:   backend,
		directory: dir,
		history:   hist,
		listener:  listener,
		logger:    logger.With("component", "session"),
		state:     StateIdle,
	}
}

// State returns the current lifecycle state and error message, if any.
func (m *Manager) State() (State, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.errMsg
}

// Agent returns the resolved agent, if resolution has completed.
func (m *Manager) Agent() *api.Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.agent == nil {
		return nil
	}
	a := *m.agent
	return &a
}

// Transcript returns a copy of the currently displayed transcript.
func (m *Manager) Transcript() []api.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]api.ChatMessage, len(m.transcript))
	copy(out, m.transcript)
	return out
}

// SetTarget points the session at a new agent handle. Any in-flight work
// for the previous target is cancelled and its callbacks silenced. On a
// directory cache hit the session is Ready immediately and the conversation
// resolves in the background; on a miss, Ready waits for both the agent
// fetch and the conversation.
func (m *Manager) SetTarget(ctx context.Context, handle string) {
	m.mu.Lock()
	m.epoch++
	epoch := m.epoch
	if m.cancelStream != nil {
		m.cancelStream()
		m.cancelStream = nil
	}
	m.handle = handle
	m.agent = nil
	m.conversation = nil
	m.transcript = nil
	m.errMsg = ""

	if cached, ok := m.directory.Get(handle); ok {
		agent := cached
		m.agent = &agent
		m.state = StateReady
		m.mu.Unlock()
		m.logger.Debug("agent resolved from cache", "handle", handle)
		m.notifyState(StateReady, "")
		go m.resolveConversation(ctx, epoch)
		return
	}

	m.state = StateResolvingAgent
	m.mu.Unlock()
	m.notifyState(StateResolvingAgent, "")
	go m.resolveTarget(ctx, epoch, handle)
}

// resolveTarget fetches agent metadata remotely, then continues into
// conversation resolution.
func (m *Manager) resolveTarget(ctx context.Context, epoch uint64, handle string) {
	agent, err := m.backend.GetAgent(ctx, handle)
	if err == nil {
		m.directory.Set(handle, *agent)
	}

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	if err != nil {
		m.state = StateError
		m.errMsg = err.Error()
		m.mu.Unlock()
		m.notifyState(StateError, err.Error())
		return
	}
	m.agent = agent
	m.state = StateResolvingConversation
	m.mu.Unlock()
	m.notifyState(StateResolvingConversation, "")

	m.resolveConversation(ctx, epoch)
}

// resolveConversation performs the idempotent create-or-get, surfaces the
// cached transcript, and kicks off the fresh history fetch.
func (m *Manager) resolveConversation(ctx context.Context, epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch || m.agent == nil {
		m.mu.Unlock()
		return
	}
	agent := *m.agent
	m.mu.Unlock()

	conv, err := m.backend.CreateOrGetConversation(ctx, agent.ID, api.ChatTypeAgent)
	if err != nil {
		m.mu.Lock()
		if epoch != m.epoch {
			m.mu.Unlock()
			return
		}
		m.state = StateError
		m.errMsg = err.Error()
		m.mu.Unlock()
		m.notifyState(StateError, err.Error())
		return
	}

	cached, hasCached := m.history.Load(ctx, conv.ID)

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	m.conversation = conv
	wasReady := m.state == StateReady
	if hasCached {
		m.transcript = cached
	}
	if !wasReady {
		m.state = StateReady
	}
	m.mu.Unlock()

	if hasCached {
		m.notifyTranscript(cached)
	}
	if !wasReady {
		m.notifyState(StateReady, "")
	}

	go m.refreshHistory(ctx, epoch, conv.ID)
}

// refreshHistory fetches the authoritative transcript and overwrites both
// the display and the cache. Server state always wins over cache.
func (m *Manager) refreshHistory(ctx context.Context, epoch uint64, conversationID string) {
	msgs, err := m.backend.GetMessages(ctx, conversationID)
	if err != nil {
		m.logger.Warn("history refresh failed", "error", err, "conversation_id", conversationID)
		return
	}

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	m.transcript = msgs
	m.mu.Unlock()

	if err := m.history.Save(ctx, conversationID, msgs); err != nil {
		m.logger.Warn("history cache write failed", "error", err, "conversation_id", conversationID)
	}
	m.notifyTranscript(msgs)
}

// Send posts a new user message and streams the agent's reply. Starting a
// new send bumps the epoch and aborts any still-open prior stream for the
// conversation, so stale tokens never render.
func (m *Manager) Send(ctx context.Context, content string) error {
	m.mu.Lock()
	if m.conversation == nil || (m.state != StateReady && m.state != StateSending) {
		m.mu.Unlock()
		return ErrNotReady
	}
	m.epoch++
	epoch := m.epoch
	conv := *m.conversation
	if m.cancelStream != nil {
		m.cancelStream()
	}
	streamCtx, cancel := context.WithCancel(ctx)
	m.cancelStream = cancel

	userMsg := api.ChatMessage{
		ID:        uuid.New().String(),
		Role:      api.RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
	m.transcript = append(m.transcript, userMsg)
	m.state = StateSending
	m.mu.Unlock()

	m.notifyMessage(userMsg)
	m.notifyState(StateSending, "")

	body, err := m.backend.StreamReply(streamCtx, conv.ID, content, userMsg.ID)
	if err != nil {
		cancel()
		m.mu.Lock()
		if epoch != m.epoch {
			m.mu.Unlock()
			return err
		}
		m.state = StateError
		m.errMsg = err.Error()
		m.mu.Unlock()
		m.notifyState(StateError, err.Error())
		return err
	}

	go m.consumeReply(streamCtx, epoch, conv.ID, body)
	return nil
}

// Stop aborts the in-flight reply stream, if any. This is the explicit
// user cancellation path; it resolves as a neutral outcome, not an error.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancelStream
	m.cancelStream = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// consumeReply decodes the reply stream and settles the session state when
// it ends.
func (m *Manager) consumeReply(ctx context.Context, epoch uint64, conversationID string, body io.ReadCloser) {
	defer body.Close()

	h := &replyHandler{m: m, epoch: epoch, conversationID: conversationID}
	err := stream.Decode(ctx, body, stream.NewDecoder(h, m.logger))

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	switch {
	case err == nil, errors.Is(err, stream.ErrAborted):
		m.state = StateReady
		m.errMsg = ""
		m.mu.Unlock()
		if errors.Is(err, stream.ErrAborted) {
			m.logger.Info("reply stream canceled", "conversation_id", conversationID)
			m.notifyTyping("")
		}
		m.notifyState(StateReady, "")
	default:
		m.state = StateError
		m.errMsg = err.Error()
		m.mu.Unlock()
		m.notifyState(StateError, err.Error())
	}
}

// replyHandler forwards decoder events to the session, dropping anything
// tagged with a stale epoch.
type replyHandler struct {
	m              *Manager
	epoch          uint64
	conversationID string
}

func (h *replyHandler) OnStart(model, mode string) {
	h.m.logger.Debug("reply started", "model", model, "mode", mode)
}

func (h *replyHandler) OnToken(partial string) {
	h.m.mu.Lock()
	current := h.epoch == h.m.epoch
	h.m.mu.Unlock()
	if current {
		h.m.notifyTyping(partial)
	}
}

func (h *replyHandler) OnComplete(msg api.ChatMessage) {
	m := h.m
	m.mu.Lock()
	if h.epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	m.transcript = append(m.transcript, msg)
	snapshot := make([]api.ChatMessage, len(m.transcript))
	copy(snapshot, m.transcript)
	m.mu.Unlock()

	m.notifyTyping("")
	m.notifyMessage(msg)

	// Persist with a fresh context: the stream context may be cancelled the
	// moment the reply finishes, but the finalized transcript should land.
	if err := m.history.Save(context.Background(), h.conversationID, snapshot); err != nil {
		m.logger.Warn("transcript persist failed", "error", err, "conversation_id", h.conversationID)
	}
}

func (m *Manager) notifyState(s State, errMsg string) {
	if m.listener != nil {
		m.listener.OnStateChange(s, errMsg)
	}
}

func (m *Manager) notifyTranscript(msgs []api.ChatMessage) {
	if m.listener != nil {
		out := make([]api.ChatMessage, len(msgs))
		copy(out, msgs)
		m.listener.OnTranscript(out)
	}
}

func (m *Manager) notifyTyping(partial string) {
	if m.listener != nil {
		m.listener.OnTyping(partial)
	}
}

func (m *Manager) notifyMessage(msg api.ChatMessage) {
	if m.listener != nil {
		m.listener.OnMessage(msg)
	}
}
