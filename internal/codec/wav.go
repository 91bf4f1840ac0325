package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// WAVSampleRate, WAVChannels and WAVBitsPerSample are the fixed parameters
// the bridge archives recordings at: mono 16-bit PCM at 8kHz, matching the
// caller's native telephony sample rate.
const (
	WAVSampleRate    = 8000
	WAVChannels      = 1
	WAVBitsPerSample = 16
)

// EncodeWAVPCM16LE wraps raw PCM16LE samples in a canonical 44-byte WAV
// header at the bridge's fixed 8kHz mono format.
func EncodeWAVPCM16LE(pcm []byte) ([]byte, error) {
	buf := make([]byte, 0, 44+len(pcm))
	w := &sliceWriter{buf: buf}
	if err := WriteWAVPCM16LETo(w, pcm); err != nil {
		return nil, err
	}
	return w.buf, nil
}

// WriteWAVPCM16LEFile writes pcm as a WAV file at path.
func WriteWAVPCM16LEFile(path string, pcm []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}
	defer f.Close()
	return WriteWAVPCM16LETo(f, pcm)
}

// WriteWAVPCM16LETo writes the 44-byte header followed by pcm to out.
func WriteWAVPCM16LETo(out io.Writer, pcm []byte) error {
	bw := bufio.NewWriter(out)

	dataSize := uint32(len(pcm))
	byteRate := uint32(WAVSampleRate * WAVChannels * WAVBitsPerSample / 8)
	blockAlign := uint16(WAVChannels * WAVBitsPerSample / 8)
	fileSize := 36 + dataSize

	writes := []any{
		[]byte("RIFF"),
		fileSize,
		[]byte("WAVE"),
		[]byte("fmt "),
		uint32(16),
		uint16(1),
		uint16(WAVChannels),
		uint32(WAVSampleRate),
		byteRate,
		blockAlign,
		uint16(WAVBitsPerSample),
		[]byte("data"),
		dataSize,
	}
	for _, v := range writes {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write wav header: %w", err)
		}
	}
	if _, err := bw.Write(pcm); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return bw.Flush()
}

type sliceWriter struct{ buf []byte }

func (w *sliceWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}
