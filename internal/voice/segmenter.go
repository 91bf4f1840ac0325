package voice

import (
	"regexp"
	"strings"
)

// TTSSegmentMinWords is the minimum word count a segment needs before the
// TTS queue will actually call the provider. The segmenter does not look
// at this: it always emits on a sentence boundary regardless of length.
// TTSQueue.Synthesize alone enforces this floor, silently dropping
// segments that fall short rather than firing a doomed TTS call.
const TTSSegmentMinWords = 5

// WordChunkFallback is the word count at which the segmenter gives up
// waiting for sentence-terminal punctuation and emits what it has.
const WordChunkFallback = 15

// sentenceTerminalRe matches one sentence ending in ./!/? followed by
// whitespace, capturing the sentence (with its terminator) in group 1.
var sentenceTerminalRe = regexp.MustCompile(`^(.+?[.!?])\s+`)

// Segmenter incrementally splits a streaming LLM reply into TTS-ready
// segments: as soon as a sentence boundary appears, it is emitted,
// however short; absent a boundary, once WordChunkFallback words have
// accumulated the segmenter emits that chunk rather than waiting
// indefinitely. Whether an emitted segment is actually long enough to
// reach the TTS provider is a separate, downstream decision (see
// TTSSegmentMinWords) that the segmenter itself plays no part in. Any
// remainder at stream end is flushed by Finalize, which also covers the
// case where nothing was segmented mid-stream — the entire reply goes out
// as one final segment.
type Segmenter struct {
	buf string
}

// Feed appends delta text and returns any segments now ready for TTS, in
// emission order (there may be more than one per call).
func (s *Segmenter) Feed(delta string) []string {
	s.buf += delta
	var segments []string
	for {
		seg, ok := s.tryExtract()
		if !ok {
			break
		}
		segments = append(segments, seg)
	}
	return segments
}

func (s *Segmenter) tryExtract() (string, bool) {
	if m := sentenceTerminalRe.FindStringSubmatch(s.buf); m != nil {
		sentence := m[1]
		s.buf = strings.TrimPrefix(s.buf, m[0])
		return strings.TrimSpace(sentence), true
	}
	if wordCount(s.buf) >= WordChunkFallback {
		words := strings.Fields(s.buf)
		chunk := strings.Join(words[:WordChunkFallback], " ")
		rest := strings.Join(words[WordChunkFallback:], " ")
		s.buf = rest
		return chunk, true
	}
	return "", false
}

// Finalize returns the remaining buffered text as a last segment, or ""
// if nothing remains. Call exactly once, at stream end.
func (s *Segmenter) Finalize() string {
	tail := strings.TrimSpace(s.buf)
	s.buf = ""
	return tail
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
