// Package audio wraps the capture and playback subprocesses used by the
// practice screen.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MinTakeDuration is the shortest take worth uploading. Anything shorter is
// treated as an accidental tap and discarded.
const MinTakeDuration = time.Second

// Config describes how the microphone is captured.
type Config struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

func (cfg *Config) applyDefaults() {
	if cfg.RecorderCommand == "" {
		cfg.RecorderCommand = "ffmpeg"
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
}

// Take is a finalized local recording staged for review or upload.
type Take struct {
	ID       string
	Path     string
	Duration time.Duration
}

// ErrNotRecording is returned by Stop and Finalize when no capture is active
// or staged.
var ErrNotRecording = errors.New("no active recording")

// ErrAlreadyRecording is returned by Start when a capture is already running.
var ErrAlreadyRecording = errors.New("recording already in progress")

// Recorder captures microphone audio to a temp WAV file via ffmpeg.
// A Recorder is owned by a single screen; at most one capture runs at a time.
type Recorder struct {
	cfg Config

	mu      sync.Mutex
	proc    *os.Process
	waitErr <-chan error
	stderr  *bytes.Buffer
	path    string
}

// NewRecorder creates a Recorder with defaults filled in.
func NewRecorder(cfg Config) *Recorder {
	cfg.applyDefaults()
	return &Recorder{cfg: cfg}
}

// Probe verifies the capture toolchain is available. It is the desktop analog
// of requesting microphone permission: called once at screen mount, and on
// failure recording stays disabled while the rest of the screen still works.
func Probe(recorderCommand, playerCommand string) error {
	if _, err := exec.LookPath(recorderCommand); err != nil {
		return fmt.Errorf("recorder unavailable: %w", err)
	}
	if _, err := exec.LookPath(playerCommand); err != nil {
		return fmt.Errorf("player unavailable: %w", err)
	}
	return nil
}

// Recording reports whether a capture process is running.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.proc != nil
}

// Start begins a new capture. Each take gets its own temp file; a previous
// staged take that was never finalized is abandoned.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.proc != nil {
		return ErrAlreadyRecording
	}

	path := filepath.Join(os.TempDir(), "readback-"+uuid.NewString()+".wav")
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", r.cfg.InputFormat,
		"-i", r.cfg.InputDevice,
		"-ac", strconv.Itoa(r.cfg.Channels),
		"-ar", strconv.Itoa(r.cfg.SampleRate),
		"-y", path,
	}

	cmd := exec.CommandContext(ctx, r.cfg.RecorderCommand, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start recorder: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// Catch captures that die immediately (bad device, bad format).
	select {
	case err := <-waitErr:
		if err != nil {
			return fmt.Errorf("recorder exited before capture started: %w: %s",
				err, bytes.TrimSpace(stderr.Bytes()))
		}
		return errors.New("recorder exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	r.proc = cmd.Process
	r.waitErr = waitErr
	r.stderr = &stderr
	r.path = path
	return nil
}

// Stop interrupts the capture process and waits for it to flush and exit.
// The take stays staged until Finalize or Discard.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.proc == nil {
		return ErrNotRecording
	}

	_ = r.proc.Signal(os.Interrupt)

	var stopErr error
	select {
	case err, ok := <-r.waitErr:
		if ok {
			stopErr = normalizeStopErr(err)
		}
	case <-time.After(1200 * time.Millisecond):
		_ = r.proc.Kill()
		if err, ok := <-r.waitErr; ok {
			stopErr = normalizeStopErr(err)
		}
	}

	r.proc = nil
	r.waitErr = nil

	if stopErr != nil && r.stderr != nil && r.stderr.Len() > 0 {
		stopErr = fmt.Errorf("%w: %s", stopErr, bytes.TrimSpace(r.stderr.Bytes()))
	}
	r.stderr = nil
	return stopErr
}

// Finalize reads the flushed WAV file and returns the staged take. Callers
// wait a short grace period after Stop before finalizing so the file handle
// is fully flushed.
func (r *Recorder) Finalize() (Take, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.path == "" {
		return Take{}, ErrNotRecording
	}

	info, err := os.Stat(r.path)
	if err != nil {
		r.path = ""
		return Take{}, fmt.Errorf("stat take: %w", err)
	}

	take := Take{
		ID:       uuid.NewString(),
		Path:     r.path,
		Duration: wavDuration(info.Size(), r.cfg.SampleRate, r.cfg.Channels),
	}
	r.path = ""
	return take, nil
}

// Discard drops the staged capture file, if any. Safe to call repeatedly.
func (r *Recorder) Discard() {
	r.mu.Lock()
	path := r.path
	r.path = ""
	r.mu.Unlock()

	if path != "" {
		_ = os.Remove(path)
	}
}

// wavHeaderSize is the canonical RIFF/WAVE header ffmpeg writes for s16le.
const wavHeaderSize = 44

// wavDuration estimates clip length from the file size. s16le is two bytes
// per sample per channel.
func wavDuration(size int64, sampleRate, channels int) time.Duration {
	data := size - wavHeaderSize
	if data <= 0 {
		return 0
	}
	bytesPerSecond := int64(sampleRate * channels * 2)
	if bytesPerSecond <= 0 {
		return 0
	}
	return time.Duration(data) * time.Second / time.Duration(bytesPerSecond)
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	// ffmpeg exits non-zero when interrupted; that is a normal stop.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
