package codec

// FrameDurationMs is the outbound telephony frame duration.
const FrameDurationMs = 20

// MuLawBytesPerFrame is the number of mu-law bytes in one 20ms/8kHz frame.
const MuLawBytesPerFrame = WAVSampleRate * FrameDurationMs / 1000 // 160

// PCM16BytesPerFrame is the number of PCM16LE bytes one 20ms/8kHz frame
// encodes to before mu-law compression (320 bytes -> 160 mu-law bytes).
const PCM16BytesPerFrame = MuLawBytesPerFrame * 2 // 320

// ChunkMuLawFrames slices a mu-law byte stream into MuLawBytesPerFrame-sized
// frames. When the length is not an exact multiple of the frame size, the
// last frame is shorter and is still emitted so the caller always receives
// the full payload.
func ChunkMuLawFrames(mulaw []byte) [][]byte {
	if len(mulaw) == 0 {
		return nil
	}
	frames := make([][]byte, 0, (len(mulaw)+MuLawBytesPerFrame-1)/MuLawBytesPerFrame)
	for i := 0; i < len(mulaw); i += MuLawBytesPerFrame {
		end := i + MuLawBytesPerFrame
		if end > len(mulaw) {
			end = len(mulaw)
		}
		frames = append(frames, mulaw[i:end])
	}
	return frames
}

// PacePCM16ToMuLawFrames converts a PCM16LE byte buffer (8kHz mono) to a
// sequence of 20ms mu-law frames ready for outbound transmission.
func PacePCM16ToMuLawFrames(pcm []byte) [][]byte {
	mulaw := PCM16ToMuLaw(pcm)
	return ChunkMuLawFrames(mulaw)
}

// StoppedFunc reports whether the owning session has been torn down.
// The frame pacer checks this between frames and never checks it
// mid-frame, per the ownership rule that Codec/Frame Pacer hold no
// per-call state of their own.
type StoppedFunc func() bool

// SendFunc delivers one fully-framed outbound frame; emitted frames are
// sent fire-and-forget, with no artificial inter-frame delay (see
// DESIGN.md's Frame Pacer strategy decision), gated only by StoppedFunc.
type SendFunc func(frame []byte) error

// PaceAndSend emits each frame of pcm via send, stopping early — and not
// emitting any further frames — once stopped reports true.
func PaceAndSend(pcm []byte, stopped StoppedFunc, send SendFunc) error {
	for _, frame := range PacePCM16ToMuLawFrames(pcm) {
		if stopped() {
			return nil
		}
		if err := send(frame); err != nil {
			return err
		}
	}
	return nil
}
