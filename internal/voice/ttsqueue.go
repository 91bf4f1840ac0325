package voice

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/agriagents/voicebridge/internal/reliability"
)

// TTSMaxRetries is the number of retries (beyond the initial attempt)
// the TTS queue allows before giving up on a segment.
const TTSMaxRetries = 2

// TTSBackoffBase is the linear backoff base between retries.
const TTSBackoffBase = 500 * time.Millisecond

// TTSQueue is the process-wide sequential TTS worker: every call's
// segments funnel through the same mutex-guarded slot, because the
// upstream rate-limit constraint the retry policy defends against is
// global to the process, not per-call. A permanent failure after
// TTSMaxRetries never surfaces as an error — callers get a nil slice and
// silently skip the segment, matching the provider's failure contract.
type TTSQueue struct {
	provider TTSProvider

	mu sync.Mutex
}

// NewTTSQueue constructs a TTSQueue around provider.
func NewTTSQueue(provider TTSProvider) *TTSQueue {
	return &TTSQueue{provider: provider}
}

// Synthesize serializes one call's segment behind the process-wide
// queue, retrying transient provider failures up to TTSMaxRetries times
// with linear backoff. Segments under TTSSegmentMinWords words are
// rejected before ever reaching the provider.
func (q *TTSQueue) Synthesize(ctx context.Context, text, languageCode string) []byte {
	if wordCount(strings.TrimSpace(text)) < TTSSegmentMinWords {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for attempt := 0; attempt <= TTSMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(reliability.LinearBackoff(attempt, TTSBackoffBase)):
			}
		}
		audio, err := q.provider.Synthesize(ctx, text, languageCode)
		if err == nil {
			return audio
		}
		log.Printf("voice: tts attempt %d failed: %v", attempt, err)
	}
	return nil
}
