package voice

import (
	"context"
	"errors"
	"sync"

	"github.com/agriagents/voicebridge/internal/session"
)

// LLMDriver runs at most one LLM turn per call at a time: a new utterance
// that arrives while a turn is already in flight is dropped per spec;
// aborting the in-flight turn (on teardown) pops the partial user turn it
// was generating a reply for so no dangling user turn survives without a
// matching assistant turn.
type LLMDriver struct {
	adapter LLMAdapter
	sess    *session.Session
	onSegment func(text string)

	mu       sync.Mutex
	inFlight bool
	cancel   context.CancelFunc
}

// NewLLMDriver constructs a driver for one call's session. onSegment is
// invoked for every TTS-ready segment the incremental segmenter produces,
// in strict emission order.
func NewLLMDriver(adapter LLMAdapter, sess *session.Session, onSegment func(text string)) *LLMDriver {
	return &LLMDriver{adapter: adapter, sess: sess, onSegment: onSegment}
}

// HandleUtterance starts a new LLM turn for userText, unless one is
// already in flight, in which case the utterance is silently dropped.
func (d *LLMDriver) HandleUtterance(ctx context.Context, userText string) {
	d.mu.Lock()
	if d.inFlight {
		d.mu.Unlock()
		return
	}
	turnCtx, cancel := context.WithCancel(ctx)
	d.inFlight = true
	d.cancel = cancel
	d.mu.Unlock()

	priorHistory := d.sess.History()
	d.sess.AppendTurn(session.RoleUser, userText)

	go d.run(turnCtx, priorHistory, userText)
}

func (d *LLMDriver) run(ctx context.Context, priorHistory []session.Turn, userText string) {
	defer func() {
		d.mu.Lock()
		d.inFlight = false
		d.cancel = nil
		d.mu.Unlock()
	}()

	var seg Segmenter
	full, err := d.adapter.StreamResponse(ctx, LLMRequest{History: priorHistory, UserText: userText}, func(delta string) error {
		for _, s := range seg.Feed(delta) {
			d.onSegment(s)
		}
		return nil
	})
	if err != nil {
		// Covers both an explicit abort (context.Canceled) and any other
		// upstream failure: neither leaves an assistant turn behind, and
		// the partial user turn is popped so history never records a
		// question with no matching reply.
		_ = errors.Is(err, context.Canceled)
		d.sess.PopLastIf(session.RoleUser)
		return
	}

	if tail := seg.Finalize(); tail != "" {
		d.onSegment(tail)
	}
	d.sess.AppendTurn(session.RoleAssistant, full)
}

// Abort cancels the in-flight turn, if any. Idempotent and safe to call
// when no turn is running.
func (d *LLMDriver) Abort() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// InFlight reports whether a turn is currently running.
func (d *LLMDriver) InFlight() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}
