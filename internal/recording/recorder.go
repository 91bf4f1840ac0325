// Package recording streams a call's raw mu-law audio to disk and
// converts it to a WAV file at teardown, per spec's "Persisted state":
// best-effort — I/O failures are logged and never abort the call.
package recording

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/agriagents/voicebridge/internal/codec"
)

// Recorder streams one call's inbound mu-law frames to a scratch file
// and converts that file to WAV on Finalize, deleting the raw capture
// once the WAV has been written successfully.
type Recorder struct {
	rawPath string
	f       *os.File
}

// New opens a raw capture file for sessionID under dir. A failure to
// open the file is logged and Recorder degrades to a no-op for the rest
// of the call — recording is never allowed to fail the call itself.
func New(dir, sessionID string) *Recorder {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("recording: mkdir %s: %v", dir, err)
		return &Recorder{}
	}
	rawPath := filepath.Join(dir, sessionID+".raw")
	f, err := os.Create(rawPath)
	if err != nil {
		log.Printf("recording: create %s: %v", rawPath, err)
		return &Recorder{}
	}
	return &Recorder{rawPath: rawPath, f: f}
}

// WriteMuLaw appends one inbound mu-law chunk to the raw capture.
func (r *Recorder) WriteMuLaw(mulaw []byte) {
	if r.f == nil {
		return
	}
	if _, err := r.f.Write(mulaw); err != nil {
		log.Printf("recording: write %s: %v", r.rawPath, err)
	}
}

// Finalize converts the raw capture to WAV, writes it alongside the raw
// file, and deletes the raw file on success. Any failure along the way
// is logged and otherwise ignored.
func (r *Recorder) Finalize() {
	if r.f == nil {
		return
	}
	rawPath := r.rawPath
	if err := r.f.Close(); err != nil {
		log.Printf("recording: close %s: %v", rawPath, err)
		return
	}

	mulaw, err := os.ReadFile(rawPath)
	if err != nil {
		log.Printf("recording: read %s: %v", rawPath, err)
		return
	}

	pcm := codec.MuLawToPCM16(mulaw)
	wavPath := rawPath[:len(rawPath)-len(filepath.Ext(rawPath))] + ".wav"
	if err := codec.WriteWAVPCM16LEFile(wavPath, pcm); err != nil {
		log.Printf("recording: write wav %s: %v", wavPath, err)
		return
	}

	if err := os.Remove(rawPath); err != nil {
		log.Printf("recording: remove raw %s: %v", rawPath, err)
	}
}

// Err returns a descriptive error if the recorder never managed to open
// a file, purely for diagnostic logging at call setup.
func (r *Recorder) Err() error {
	if r.f == nil && r.rawPath == "" {
		return fmt.Errorf("recording: disabled for this call")
	}
	return nil
}
