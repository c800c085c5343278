package app

import (
	"github.com/nmoreno/readback/internal/api"
	"github.com/nmoreno/readback/internal/audio"
	"github.com/nmoreno/readback/internal/db"
)

// ProbeResultMsg reports whether the capture toolchain is usable.
type ProbeResultMsg struct {
	Err error
}

// RecordStartedMsg reports the outcome of starting a capture.
type RecordStartedMsg struct {
	Err error
}

// RecordStoppedMsg reports the outcome of stopping a capture.
type RecordStoppedMsg struct {
	Err error
}

// FlushTickMsg fires after the post-stop grace period; the take can now be
// finalized safely.
type FlushTickMsg struct{}

// TakeFinalizedMsg carries the finalized take, duration included.
type TakeFinalizedMsg struct {
	Take audio.Take
	Err  error
}

// SubmitResultMsg carries the backend's judgment of an uploaded take.
type SubmitResultMsg struct {
	Resp api.AnalyzeResponse
	Err  error
}

// PlaybackDoneMsg is sent when a playback process exits, local take review
// and remote controller replies alike.
type PlaybackDoneMsg struct {
	Remote bool
	Err    error
}

// PlaybackStoppedMsg is sent after an explicit pause of take review.
type PlaybackStoppedMsg struct{}

// TypingTickMsg advances the character-by-character reply reveal.
type TypingTickMsg struct{}

// TurnSavedMsg reports persistence of an analyzed turn.
type TurnSavedMsg struct {
	Err error
}

// ScoresLoadedMsg carries the session's turn history for the scores view.
type ScoresLoadedMsg struct {
	Turns []db.Turn
	Err   error
}

// HydratedMsg carries the last persisted turn of a resumed session.
type HydratedMsg struct {
	Turn *db.Turn
	Err  error
}
