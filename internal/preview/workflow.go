// ABOUTME: Generate/preview/approve state machine for AI-authored drafts
// ABOUTME: Approve is safe under at-least-once invocation via the confirmed set

package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/parlorhq/parlor-go/internal/api"
)

// State is the workflow lifecycle position.
type State int

const (
	StateIdle State = iota
	StateGenerating
	StatePreviewReady
	StateApproving
	StateRegenerating
	StateCancelling
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StatePreviewReady:
		return "preview_ready"
	case StateApproving:
		return "approving"
	case StateRegenerating:
		return "regenerating"
	case StateCancelling:
		return "cancelling"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Workflow errors.
var (
	// ErrNoPreview means there is no preview in a confirmable position.
	ErrNoPreview = errors.New("no preview awaiting approval")

	// ErrSuperseded means a newer generate replaced this one while its
	// request was in flight; its result was discarded.
	ErrSuperseded = errors.New("generation superseded by a newer request")

	// ErrApproveInFlight means an approval is outstanding and the requested
	// operation cannot run until it settles.
	ErrApproveInFlight = errors.New("approval in progress")
)

// PreviewAPI is what the workflow needs from the backend.
type PreviewAPI interface {
	GeneratePreview(ctx context.Context, params api.GenerateParams) (*api.GenerationPreview, error)
	ConfirmPreview(ctx context.Context, previewID string, edits *api.PreviewEdits) error
	CancelPreview(ctx context.Context, previewID string) error
}

// Workflow drives one generate → preview → approve/regenerate/cancel cycle
// for AI-authored content. The confirmed set is shared process-wide so
// idempotency memory survives workflow instances.
//
// Confirm calls are deliberately not given a client-side deadline: content
// generation can take minutes server-side, and correctness rests on the
// in-flight guard rather than a timeout.
type Workflow struct {
	mu        sync.Mutex
	backend   PreviewAPI
	confirmed *ConfirmedSet
	logger    *slog.Logger

	state      State
	gen        uint64
	current    *api.GenerationPreview
	lastParams api.GenerateParams

	// approving is non-nil while a confirm call is outstanding. It is an
	// immediately-consistent guard, independent of the state field, so a
	// racing second approve joins the first instead of double-submitting.
	approving  chan struct{}
	approveErr error

	// OnApproved, when set, fires exactly once per confirmed preview.
	OnApproved func(preview api.GenerationPreview)
}

// NewWorkflow creates a workflow backed by the given API client and shared
// confirmed set.
func NewWorkflow(backend PreviewAPI, confirmed *ConfirmedSet, logger *slog.Logger) *Workflow {
	if confirmed == nil {
		confirmed = NewConfirmedSet(DefaultCapacity)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		backend:   backend,
		confirmed: confirmed,
		logger:    logger.With("component", "preview"),
		state:     StateIdle,
	}
}

// State returns the current lifecycle state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Current returns the preview awaiting a decision, if any.
func (w *Workflow) Current() *api.GenerationPreview {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil
	}
	p := *w.current
	return &p
}

// Generate requests a new preview. An overlapping Generate supersedes this
// one: the slower response is discarded and only the newest preview is ever
// confirmable.
func (w *Workflow) Generate(ctx context.Context, params api.GenerateParams) (*api.GenerationPreview, error) {
	w.mu.Lock()
	if w.approving != nil {
		w.mu.Unlock()
		return nil, ErrApproveInFlight
	}
	w.gen++
	gen := w.gen
	w.state = StateGenerating
	w.lastParams = params
	w.mu.Unlock()

	p, err := w.backend.GeneratePreview(ctx, params)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		// A newer generate started while this one was in flight. Its
		// preview is orphaned; the server expires it on its own.
		w.logger.Debug("discarding superseded preview", "gen", gen)
		return nil, ErrSuperseded
	}
	if err != nil {
		w.state = StateIdle
		return nil, err
	}
	w.current = p
	w.state = StatePreviewReady
	w.logger.Debug("preview ready", "preview_id", p.PreviewID)
	return p, nil
}

// Regenerate requests a refinement of the current preview, passing the
// user's feedback and the previous preview id so the server treats the new
// request as a replacement.
func (w *Workflow) Regenerate(ctx context.Context, feedback string) (*api.GenerationPreview, error) {
	w.mu.Lock()
	if w.current == nil {
		w.mu.Unlock()
		return nil, ErrNoPreview
	}
	params := w.lastParams
	params.Feedback = feedback
	params.PreviousPreviewID = w.current.PreviewID
	w.state = StateRegenerating
	w.mu.Unlock()

	return w.Generate(ctx, params)
}

// Approve confirms the current preview. It is safe under at-least-once
// invocation: ids already confirmed short-circuit to success without a
// network call, a concurrent second approve joins the outstanding one, and
// a not-found response is reclassified as success on the reading that a
// prior attempt already consumed the preview.
func (w *Workflow) Approve(ctx context.Context, edits *api.PreviewEdits) error {
	w.mu.Lock()
	if w.approving != nil {
		done := w.approving
		w.mu.Unlock()
		<-done
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.approveErr
	}
	if w.current == nil || (w.state != StatePreviewReady && w.state != StateDone) {
		w.mu.Unlock()
		return ErrNoPreview
	}
	preview := *w.current
	if w.confirmed.Contains(preview.PreviewID) {
		w.state = StateDone
		w.mu.Unlock()
		w.logger.Debug("preview already confirmed, skipping confirm call",
			"preview_id", preview.PreviewID)
		return nil
	}
	done := make(chan struct{})
	w.approving = done
	w.state = StateApproving
	w.mu.Unlock()

	err := w.backend.ConfirmPreview(ctx, preview.PreviewID, edits)
	if errors.Is(err, api.ErrPreviewGone) {
		// Most consistent with a prior attempt having consumed the preview.
		w.logger.Info("confirm returned not-found, treating as already confirmed",
			"preview_id", preview.PreviewID)
		err = nil
	}

	w.mu.Lock()
	w.approving = nil
	w.approveErr = err
	var notify bool
	if err != nil {
		w.state = StatePreviewReady
	} else {
		notify = w.confirmed.Add(preview.PreviewID)
		w.state = StateDone
	}
	onApproved := w.OnApproved
	w.mu.Unlock()
	close(done)

	if err == nil && notify && onApproved != nil {
		onApproved(preview)
	}
	return err
}

// Cancel releases the current preview, best effort. Remote failures are
// swallowed: previews expire server-side regardless of acknowledgment.
func (w *Workflow) Cancel(ctx context.Context) {
	w.mu.Lock()
	if w.current == nil || w.state != StatePreviewReady {
		w.mu.Unlock()
		return
	}
	id := w.current.PreviewID
	w.current = nil
	w.state = StateCancelling
	w.mu.Unlock()

	if err := w.backend.CancelPreview(ctx, id); err != nil {
		w.logger.Debug("preview cancel failed", "preview_id", id, "error", err)
	}

	w.mu.Lock()
	if w.state == StateCancelling {
		w.state = StateIdle
	}
	w.mu.Unlock()
}
