package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

// ErrNotPlaying is returned by Stop and Wait when no playback is active.
var ErrNotPlaying = errors.New("no active playback")

// ErrAlreadyPlaying is returned by Play when playback is already running.
var ErrAlreadyPlaying = errors.New("playback already in progress")

// Player plays local takes and remote reply clips through an ffplay
// subprocess. The same handle serves both; ffplay accepts file paths and
// http URLs alike.
type Player struct {
	command string

	mu      sync.Mutex
	proc    *os.Process
	waitErr <-chan error
	stderr  *bytes.Buffer
}

// NewPlayer creates a Player using the given command, defaulting to ffplay.
func NewPlayer(command string) *Player {
	if command == "" {
		command = "ffplay"
	}
	return &Player{command: command}
}

// Playing reports whether a playback process is running.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.proc != nil
}

// Play starts playback of the given URI at full volume.
func (p *Player) Play(ctx context.Context, uri string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.proc != nil {
		return ErrAlreadyPlaying
	}

	args := []string{
		"-nodisp",
		"-autoexit",
		"-hide_banner",
		"-loglevel", "error",
		"-volume", "100",
		uri,
	}
	cmd := exec.CommandContext(ctx, p.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start player: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	p.proc = cmd.Process
	p.waitErr = waitErr
	p.stderr = &stderr
	return nil
}

// Wait blocks until the current playback finishes and reports its outcome.
// This is the explicit completion event the screen keys its state off of.
func (p *Player) Wait() error {
	p.mu.Lock()
	waitErr := p.waitErr
	stderr := p.stderr
	p.mu.Unlock()

	if waitErr == nil {
		return ErrNotPlaying
	}

	err, ok := <-waitErr
	p.clear()
	if !ok || err == nil {
		return nil
	}
	// A non-zero exit after Stop is a normal early halt, not a failure.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if stderr != nil && stderr.Len() > 0 {
			return fmt.Errorf("playback failed: %s", bytes.TrimSpace(stderr.Bytes()))
		}
		return nil
	}
	return fmt.Errorf("playback failed: %w", err)
}

// Stop halts playback early. The pending Wait returns once the process exits.
func (p *Player) Stop() error {
	p.mu.Lock()
	proc := p.proc
	p.mu.Unlock()

	if proc == nil {
		return ErrNotPlaying
	}
	_ = proc.Signal(os.Interrupt)

	// Bounded wait so a wedged player cannot hang the screen.
	deadline := time.After(1200 * time.Millisecond)
	p.mu.Lock()
	waitErr := p.waitErr
	p.mu.Unlock()
	if waitErr != nil {
		select {
		case <-waitErr:
		case <-deadline:
			_ = proc.Kill()
		}
	}
	p.clear()
	return nil
}

func (p *Player) clear() {
	p.mu.Lock()
	p.proc = nil
	p.waitErr = nil
	p.stderr = nil
	p.mu.Unlock()
}
