package voice

import "github.com/agriagents/voicebridge/internal/codec"

// PCMFlushThresholdMs is the minimum buffered duration before the STT
// Session Manager flushes accumulated PCM upstream.
const PCMFlushThresholdMs = 200

// pcmBytesPerMs is the byte rate of PCM16LE audio at the bridge's fixed
// 8kHz mono format.
const pcmBytesPerMs = codec.WAVSampleRate * 2 / 1000 // 16

// PCMFlushThresholdBytes is PCMFlushThresholdMs worth of PCM16LE bytes.
const PCMFlushThresholdBytes = PCMFlushThresholdMs * pcmBytesPerMs

// PCMBuffer is a growable accumulator of PCM16LE bytes awaiting an
// upstream STT flush. It holds no knowledge of the session it belongs to;
// the caller decides when to flush (threshold reached, or session close).
type PCMBuffer struct {
	buf []byte
}

// Append adds pcm bytes to the buffer.
func (b *PCMBuffer) Append(pcm []byte) {
	b.buf = append(b.buf, pcm...)
}

// Ready reports whether the buffer holds at least PCMFlushThresholdMs of
// audio.
func (b *PCMBuffer) Ready() bool {
	return len(b.buf) >= PCMFlushThresholdBytes
}

// Len returns the number of buffered PCM bytes.
func (b *PCMBuffer) Len() int {
	return len(b.buf)
}

// Flush returns the buffered bytes and empties the buffer.
func (b *PCMBuffer) Flush() []byte {
	if len(b.buf) == 0 {
		return nil
	}
	out := b.buf
	b.buf = nil
	return out
}
