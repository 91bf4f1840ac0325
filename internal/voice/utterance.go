package voice

import (
	"strings"
	"sync"
	"time"
)

// SilenceTimeout is how long the assembler waits after the last partial
// transcript before flushing on its own, absent an explicit speech_end.
const SilenceTimeout = 1200 * time.Millisecond

// MinUtteranceChars is the minimum trimmed length an utterance must have
// to be forwarded to the LLM driver.
const MinUtteranceChars = 8

// fillerWords are short acknowledgement/backchannel words that never
// warrant a reply on their own.
var fillerWords = map[string]struct{}{
	"okay": {}, "ok": {}, "hm": {}, "hmm": {}, "haan": {}, "han": {},
	"yes": {}, "no": {}, "right": {}, "aha": {}, "uh": {}, "um": {},
	"oh": {}, "sure": {}, "alright": {}, "good": {}, "fine": {},
	"thanks": {}, "thank you": {},
}

// IsFiller reports whether text, once trimmed and lowercased, is a bare
// filler/backchannel word with nothing else in it.
func IsFiller(text string) bool {
	_, ok := fillerWords[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// AcceptUtterance applies the utterance filter: text must be at least
// MinUtteranceChars after trimming and must not be a bare filler word.
func AcceptUtterance(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < MinUtteranceChars {
		return false
	}
	if IsFiller(trimmed) {
		return false
	}
	return true
}

// UtteranceAssembler accumulates partial transcripts for one call and
// flushes the longest one seen on speech_end, on a fixed silence timeout,
// or on a close-code-1000 fallback. A mutex guarding both the transcript
// buffer and the stopped flag resolves the silence-timer-vs-speech_end
// race and the silence-timer-vs-teardown race the same way: whichever
// flush path acquires the lock first empties the buffer and wins: the
// other observes an empty buffer and is a no-op.
type UtteranceAssembler struct {
	mu          sync.Mutex
	transcripts []string
	timer       *time.Timer
	stopped     bool

	onUtterance func(text string)
}

// NewUtteranceAssembler constructs an assembler that calls onUtterance
// for every accepted utterance.
func NewUtteranceAssembler(onUtterance func(text string)) *UtteranceAssembler {
	return &UtteranceAssembler{onUtterance: onUtterance}
}

// AddPartial records a new partial transcript and (re)starts the silence
// timer.
func (a *UtteranceAssembler) AddPartial(text string) {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.transcripts = append(a.transcripts, text)
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(SilenceTimeout, a.flush)
	a.mu.Unlock()
}

// SpeechEnd flushes on an explicit upstream speech_end event.
func (a *UtteranceAssembler) SpeechEnd() {
	a.flush()
}

// CloseFallback flushes when the STT upstream closes with code 1000,
// whether or not the STT manager then reconnects, so any still-buffered
// partial is not silently dropped.
func (a *UtteranceAssembler) CloseFallback() {
	a.flush()
}

// Stop marks the assembler stopped; any in-flight or future flush is a
// no-op. Idempotent.
func (a *UtteranceAssembler) Stop() {
	a.mu.Lock()
	a.stopped = true
	if a.timer != nil {
		a.timer.Stop()
	}
	transcripts := a.transcripts
	a.transcripts = nil
	a.mu.Unlock()
	_ = transcripts
}

// ClearPartial discards any buffered partial transcript without
// dispatching it, for a speech_start that means the caller started a new
// turn: whatever was held from before belongs to a turn that's over and
// must not resurface in the next flush.
func (a *UtteranceAssembler) ClearPartial() {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.transcripts = nil
	a.mu.Unlock()
}

func (a *UtteranceAssembler) flush() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	transcripts := a.transcripts
	a.transcripts = nil
	a.mu.Unlock()

	if len(transcripts) == 0 {
		return
	}
	longest := pickLongest(transcripts)
	if !AcceptUtterance(longest) {
		return
	}
	a.onUtterance(longest)
}

func pickLongest(transcripts []string) string {
	longest := transcripts[0]
	for _, t := range transcripts[1:] {
		if len(strings.TrimSpace(t)) > len(strings.TrimSpace(longest)) {
			longest = t
		}
	}
	return longest
}
