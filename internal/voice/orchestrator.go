package voice

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/agriagents/voicebridge/internal/codec"
	"github.com/agriagents/voicebridge/internal/observability"
	"github.com/agriagents/voicebridge/internal/protocol"
	"github.com/agriagents/voicebridge/internal/recording"
	"github.com/agriagents/voicebridge/internal/reliability"
	"github.com/agriagents/voicebridge/internal/session"
)

// WelcomeMessage is synthesized and paced to the caller immediately after
// the provider's `start` event, before any caller speech is processed.
const WelcomeMessage = "Welcome to Agri Agents. Please tell me your question."

// Orchestrator wires the per-call pipeline together: one call per
// RunConnection invocation, one Session, one STTManager, one
// UtteranceAssembler, one LLMDriver, and the process-wide TTSQueue.
type Orchestrator struct {
	stt          STTProvider
	llm          LLMAdapter
	tts          *TTSQueue
	recordingDir string
	metrics      *observability.Metrics
}

// NewOrchestrator constructs an Orchestrator. recordingDir may be empty,
// in which case recording.New degrades to a no-op per call. metrics may
// be nil in tests that don't care about observability.
func NewOrchestrator(stt STTProvider, llm LLMAdapter, tts *TTSQueue, recordingDir string, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{stt: stt, llm: llm, tts: tts, recordingDir: recordingDir, metrics: metrics}
}

// RunConnection drives one call end-to-end: it consumes inbound provider
// messages from inbound, emits outbound media frames on outbound, and
// returns once the call is torn down (by a `stop` event, by ctx
// cancellation, or once inbound is closed by the caller's WS read loop).
// It never returns an error for a clean caller hangup; only setup
// failures (e.g. the initial STT dial) are surfaced.
func (o *Orchestrator) RunConnection(ctx context.Context, inbound <-chan any, outbound chan<- protocol.OutboundMedia) error {
	sessCtx, cancel := context.WithCancel(ctx)
	sess := session.New(cancel)
	defer sess.Stop()

	var rec *recording.Recorder

	sttMgr := NewSTTManager(o.stt, sess.ID(), sess.Stopped)

	var latencyMu sync.Mutex
	var turnStartedAt time.Time
	var turnObserved bool

	observeFirstFrame := func() {
		if o.metrics == nil {
			return
		}
		latencyMu.Lock()
		defer latencyMu.Unlock()
		if turnObserved || turnStartedAt.IsZero() {
			return
		}
		turnObserved = true
		o.metrics.ObserveFirstAudioLatency(time.Since(turnStartedAt))
	}

	sendSegment := func(text string) {
		audio := o.tts.Synthesize(sessCtx, text, DefaultTTSLanguageCode)
		if audio == nil {
			return
		}
		if err := o.sendPaced(sess, audio, outbound, observeFirstFrame); err != nil {
			log.Printf("voice: send paced audio for session %s: %v", sess.ID(), err)
		}
	}

	llmDriver := NewLLMDriver(o.llm, sess, sendSegment)
	assembler := NewUtteranceAssembler(func(text string) {
		if !llmDriver.InFlight() {
			latencyMu.Lock()
			turnStartedAt = time.Now()
			turnObserved = false
			latencyMu.Unlock()
		}
		llmDriver.HandleUtterance(sessCtx, text)
	})

	teardown := func() {
		sess.Stop()
		llmDriver.Abort()
		assembler.Stop()
		sttMgr.FlushAndClose(context.Background())
		if rec != nil {
			rec.Finalize()
		}
	}

	sttEvents, err := sttMgr.Start(sessCtx)
	if err != nil {
		return fmt.Errorf("voice: start stt session: %w", err)
	}

	sttDegraded := false

	for {
		select {
		case <-ctx.Done():
			teardown()
			return nil

		case msg, ok := <-inbound:
			if !ok {
				teardown()
				return nil
			}
			switch m := msg.(type) {
			case protocol.Connected:
				// Nothing to do until `start` carries the stream SID.

			case protocol.Start:
				sess.SetStreamSid(m.StreamSid)
				rec = recording.New(o.recordingDir, sess.ID())
				sendSegment(WelcomeMessage)

			case protocol.Media:
				mulaw, err := base64.StdEncoding.DecodeString(m.Media.Payload)
				if err != nil {
					log.Printf("voice: decode inbound media payload: %v", err)
					continue
				}
				if rec != nil {
					rec.WriteMuLaw(mulaw)
				}
				if sttDegraded {
					continue
				}
				pcm := codec.MuLawToPCM16(mulaw)
				if err := sttMgr.SendPCM(sessCtx, pcm); err != nil {
					log.Printf("voice: send pcm to stt: %v", err)
				}

			case protocol.Stop:
				teardown()
				return nil

			default:
				log.Printf("voice: unexpected inbound message type %T", m)
			}

		case ev, ok := <-sttEvents:
			if !ok {
				sttDegraded = true
				continue
			}
			o.handleSTTEvent(ev, assembler, &sttDegraded)
		}
	}
}

func (o *Orchestrator) handleSTTEvent(ev STTEvent, assembler *UtteranceAssembler, sttDegraded *bool) {
	switch ev.Type {
	case STTEventTranscript:
		if ev.Text != "" {
			assembler.AddPartial(ev.Text)
		}
	case STTEventSpeechEnd:
		assembler.SpeechEnd()
	case STTEventSpeechStart:
		// A new speaker turn begins: any partial transcript still held from
		// before this point belongs to the turn that just ended and must
		// not survive into the next flush.
		assembler.ClearPartial()
	case STTEventError:
		if ev.Code == "connection_closed" && ev.CloseCode == 1000 {
			assembler.CloseFallback()
			return
		}
		if reliability.IsStickyUpstreamError(ev.Code) {
			log.Printf("voice: stt sticky error, degrading call (code=%s): %s", ev.Code, ev.Detail)
		} else {
			log.Printf("voice: stt error (code=%s retryable=%v): %s", ev.Code, ev.Retryable, ev.Detail)
		}
		*sttDegraded = true
	}
}

// sendPaced frames audio (PCM16LE at 8kHz) into 20ms mu-law chunks and
// writes them to outbound, gated on the session's stopped flag between
// frames. onFrameSent fires after every frame write; observeFirstFrame
// itself decides whether there's anything left to observe.
func (o *Orchestrator) sendPaced(sess *session.Session, audio []byte, outbound chan<- protocol.OutboundMedia, onFrameSent func()) error {
	return codec.PaceAndSend(audio, sess.Stopped, func(frame []byte) error {
		outbound <- protocol.NewOutboundMedia(sess.StreamSid(), base64.StdEncoding.EncodeToString(frame))
		onFrameSent()
		return nil
	})
}
