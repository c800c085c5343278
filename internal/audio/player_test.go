package audio

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestPlayerPlayAndWait(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "play.sh", "#!/usr/bin/env bash\nsleep 0.1\n")
	p := NewPlayer(script)

	if err := p.Play(context.Background(), "clip.wav"); err != nil {
		t.Fatalf("play: %v", err)
	}
	if !p.Playing() {
		t.Fatal("should be playing")
	}
	if err := p.Wait(); err != nil {
		t.Errorf("wait: %v", err)
	}
	if p.Playing() {
		t.Error("should not be playing after wait")
	}
}

func TestPlayerFailureSurfacesStderr(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "broken.sh", "#!/usr/bin/env bash\necho 'cannot open clip' 1>&2\nexit 1\n")
	p := NewPlayer(script)

	if err := p.Play(context.Background(), "clip.wav"); err != nil {
		t.Fatalf("play: %v", err)
	}
	err := p.Wait()
	if err == nil {
		t.Fatal("expected playback error")
	}
	if !strings.Contains(err.Error(), "cannot open clip") {
		t.Errorf("error should carry stderr, got: %v", err)
	}
}

func TestPlayerStopHaltsEarly(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "long.sh", "#!/usr/bin/env bash\nexec sleep 5\n")
	p := NewPlayer(script)

	if err := p.Play(context.Background(), "clip.wav"); err != nil {
		t.Fatalf("play: %v", err)
	}

	start := time.Now()
	if err := p.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("stop took %v, should be bounded", elapsed)
	}
	if p.Playing() {
		t.Error("should not be playing after stop")
	}
}

func TestPlayerDoublePlayRejected(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "play2.sh", "#!/usr/bin/env bash\nexec sleep 2\n")
	p := NewPlayer(script)

	if err := p.Play(context.Background(), "a.wav"); err != nil {
		t.Fatalf("play: %v", err)
	}
	defer p.Stop()

	if err := p.Play(context.Background(), "b.wav"); err != ErrAlreadyPlaying {
		t.Errorf("second play err = %v, want ErrAlreadyPlaying", err)
	}
}

func TestPlayerStopWithoutPlay(t *testing.T) {
	p := NewPlayer("")
	if err := p.Stop(); err != ErrNotPlaying {
		t.Errorf("stop err = %v, want ErrNotPlaying", err)
	}
	if err := p.Wait(); err != ErrNotPlaying {
		t.Errorf("wait err = %v, want ErrNotPlaying", err)
	}
}
