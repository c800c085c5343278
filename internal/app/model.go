package app

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nmoreno/readback/internal/api"
	"github.com/nmoreno/readback/internal/atc"
	"github.com/nmoreno/readback/internal/audio"
	"github.com/nmoreno/readback/internal/db"
	"github.com/nmoreno/readback/internal/logging"

	tea "github.com/charmbracelet/bubbletea"
)

// Phase is the practice screen's workflow state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRecording
	PhaseReviewing
	PhasePlaying
	PhaseSubmitting
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRecording:
		return "recording"
	case PhaseReviewing:
		return "reviewing"
	case PhasePlaying:
		return "playing"
	case PhaseSubmitting:
		return "submitting"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Overlay is a local modal layered over the workflow; overlays never touch
// the recording pipeline.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayFrequencyEdit
	OverlayScores
)

// Timing constants for the workflow.
const (
	// flushGrace is how long to wait after stopping the recorder before
	// reading the take, so the file handle is fully flushed.
	flushGrace = 300 * time.Millisecond

	// typingInterval paces the character-by-character reply reveal.
	typingInterval = 30 * time.Millisecond
)

// User-facing status messages.
const (
	msgMicUnavailable = "Microphone unavailable. Recording is disabled."
	msgRecording      = "Recording... press Space to stop."
	msgRecordRetry    = "Could not record. Try again."
	msgTooShort       = "Recording too short. Hold the transmission for at least a second."
	msgReturnToConfig = "No active session. Return to configuration and start again."
	msgAuthRequired   = "Session expired. Sign in again to continue."
	msgInvalidAudio   = "Invalid audio format. Record and try again."
	msgServerRetry    = "The analysis service had a problem. Try again."
	msgNoConnection   = "Cannot reach the analysis service. Check your connection."
	msgGenericFail    = "Something went wrong sending your transmission. Try again."
	msgPaused         = "Playback paused."
	msgPlaybackFailed = "Could not play the recording."
)

// Analyzer uploads a take and returns the backend's judgment.
type Analyzer interface {
	Analyze(ctx context.Context, req api.AnalyzeRequest) (api.AnalyzeResponse, error)
}

// Recorder captures microphone takes.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() error
	Finalize() (audio.Take, error)
	Discard()
	Recording() bool
}

// Player plays local takes and remote reply clips.
type Player interface {
	Play(ctx context.Context, uri string) error
	Wait() error
	Stop() error
	Playing() bool
}

// TurnStore persists and recalls analyzed turns.
type TurnStore interface {
	SaveTurn(t db.Turn) error
	TurnsForSession(sessionID string) ([]db.Turn, error)
	LatestTurn(sessionID string) (*db.Turn, error)
}

// Deps are the collaborators injected into the screen at construction.
// Everything is explicit; the screen holds no package-level state.
type Deps struct {
	Client   Analyzer
	Recorder Recorder
	Player   Player
	Store    TurnStore // may be nil; history and resume are then disabled
	Probe    func() error
	Log      *logging.Logger
}

// Params is the session identity handed to the screen, the navigation
// parameters of the practice flow.
type Params struct {
	SessionID     string
	Frequency     float64
	Resume        bool
	ReviewEnabled bool
}

// Model is the root bubbletea model for the practice screen.
type Model struct {
	deps Deps

	// Session identity
	sessionID string
	frequency float64
	resume    bool

	// Workflow
	phase         Phase
	micReady      bool
	stopping      bool // between stop keypress and take finalization
	reviewEnabled bool
	take          *audio.Take

	// Turn text state
	feedback           string
	controllerText     string
	displayedLen       int // runes of controllerText revealed so far
	typing             bool
	prevControllerText string
	showPrev           bool

	// Completion gate, armed at most once per screen instance
	completionRaised bool

	// Overlays
	overlay              Overlay
	freqInput            string
	freqErr              string
	scores               []db.Turn
	scoresFromCompletion bool

	// UI
	width  int
	height int
}

// New creates the practice screen model.
func New(params Params, deps Deps) Model {
	if deps.Log == nil {
		deps.Log = logging.Discard()
	}
	freq := params.Frequency
	if freq < atc.FrequencyMin || freq > atc.FrequencyMax {
		freq = atc.FrequencyMin
	}
	return Model{
		deps:          deps,
		sessionID:     params.SessionID,
		frequency:     freq,
		resume:        params.Resume,
		reviewEnabled: params.ReviewEnabled,
	}
}

// Frequency returns the current session frequency.
func (m Model) Frequency() float64 { return m.frequency }

// Phase returns the current workflow phase.
func (m Model) Phase() Phase { return m.phase }

// Init requests the capture probe and, for resumed sessions, hydrates the
// last turn from local history.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{probeCmd(m.deps.Probe)}
	if m.resume && m.sessionID != "" && m.deps.Store != nil {
		cmds = append(cmds, hydrateCmd(m.deps.Store, m.sessionID))
	}
	return tea.Batch(cmds...)
}

// probeCmd checks the capture toolchain once at mount.
func probeCmd(probe func() error) tea.Cmd {
	return func() tea.Msg {
		if probe == nil {
			return ProbeResultMsg{}
		}
		return ProbeResultMsg{Err: probe()}
	}
}

func startRecordCmd(rec Recorder) tea.Cmd {
	return func() tea.Msg {
		return RecordStartedMsg{Err: rec.Start(context.Background())}
	}
}

func stopRecordCmd(rec Recorder) tea.Cmd {
	return func() tea.Msg {
		return RecordStoppedMsg{Err: rec.Stop()}
	}
}

// flushCmd waits out the post-stop grace period.
func flushCmd() tea.Cmd {
	return tea.Tick(flushGrace, func(time.Time) tea.Msg {
		return FlushTickMsg{}
	})
}

func finalizeCmd(rec Recorder) tea.Cmd {
	return func() tea.Msg {
		take, err := rec.Finalize()
		return TakeFinalizedMsg{Take: take, Err: err}
	}
}

// submitCmd uploads the take. The take file is consumed either way: on
// failure the student re-records, there is no resume-from-failure path.
func submitCmd(client Analyzer, sessionID string, frequency float64, take audio.Take) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.Analyze(context.Background(), api.AnalyzeRequest{
			SessionID: sessionID,
			Frequency: atc.FormatFrequency(frequency),
			AudioPath: take.Path,
		})
		_ = os.Remove(take.Path)
		return SubmitResultMsg{Resp: resp, Err: err}
	}
}

// playCmd starts playback and blocks until the process exits, delivering an
// explicit completion event rather than a duration-based timer.
func playCmd(p Player, uri string, remote bool) tea.Cmd {
	return func() tea.Msg {
		if err := p.Play(context.Background(), uri); err != nil {
			return PlaybackDoneMsg{Remote: remote, Err: err}
		}
		return PlaybackDoneMsg{Remote: remote, Err: p.Wait()}
	}
}

func stopPlaybackCmd(p Player) tea.Cmd {
	return func() tea.Msg {
		_ = p.Stop()
		return PlaybackStoppedMsg{}
	}
}

func typingTickCmd() tea.Cmd {
	return tea.Tick(typingInterval, func(time.Time) tea.Msg {
		return TypingTickMsg{}
	})
}

func saveTurnCmd(store TurnStore, turn db.Turn) tea.Cmd {
	return func() tea.Msg {
		return TurnSavedMsg{Err: store.SaveTurn(turn)}
	}
}

func loadScoresCmd(store TurnStore, sessionID string) tea.Cmd {
	return func() tea.Msg {
		turns, err := store.TurnsForSession(sessionID)
		return ScoresLoadedMsg{Turns: turns, Err: err}
	}
}

func hydrateCmd(store TurnStore, sessionID string) tea.Cmd {
	return func() tea.Msg {
		turn, err := store.LatestTurn(sessionID)
		return HydratedMsg{Turn: turn, Err: err}
	}
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ProbeResultMsg:
		if msg.Err != nil {
			m.micReady = false
			m.feedback = msgMicUnavailable
			m.deps.Log.Warn("capture probe failed", "err", msg.Err)
		} else {
			m.micReady = true
		}
		return m, nil

	case RecordStartedMsg:
		if msg.Err != nil {
			m.phase = PhaseIdle
			m.feedback = msgRecordRetry
			m.deps.Log.Error("start recording", "err", msg.Err)
		}
		return m, nil

	case RecordStoppedMsg:
		if msg.Err != nil {
			m.phase = PhaseIdle
			m.stopping = false
			m.feedback = msgRecordRetry
			m.deps.Recorder.Discard()
			m.deps.Log.Error("stop recording", "err", msg.Err)
			return m, nil
		}
		return m, flushCmd()

	case FlushTickMsg:
		if m.phase != PhaseRecording {
			return m, nil
		}
		return m, finalizeCmd(m.deps.Recorder)

	case TakeFinalizedMsg:
		return m.handleTakeFinalized(msg)

	case SubmitResultMsg:
		return m.handleSubmitResult(msg)

	case PlaybackDoneMsg:
		if msg.Remote {
			if msg.Err != nil {
				m.deps.Log.Warn("reply playback", "err", msg.Err)
			}
			return m, nil
		}
		if m.phase == PhasePlaying {
			m.phase = PhaseReviewing
			if msg.Err != nil {
				m.feedback = msgPlaybackFailed
				m.deps.Log.Error("take playback", "err", msg.Err)
			}
		}
		return m, nil

	case PlaybackStoppedMsg:
		return m, nil

	case TypingTickMsg:
		if !m.typing {
			return m, nil
		}
		runes := []rune(m.controllerText)
		if m.displayedLen < len(runes) {
			m.displayedLen++
		}
		if m.displayedLen >= len(runes) {
			m.typing = false
			return m, nil
		}
		return m, typingTickCmd()

	case TurnSavedMsg:
		if msg.Err != nil {
			m.deps.Log.Warn("save turn", "err", msg.Err)
		}
		return m, nil

	case ScoresLoadedMsg:
		if msg.Err != nil {
			m.deps.Log.Warn("load scores", "err", msg.Err)
			return m, nil
		}
		m.scores = msg.Turns
		m.overlay = OverlayScores
		return m, nil

	case HydratedMsg:
		if msg.Err != nil {
			m.deps.Log.Warn("hydrate session", "err", msg.Err)
			return m, nil
		}
		if msg.Turn == nil {
			return m, nil
		}
		var cmd tea.Cmd
		if msg.Turn.ControllerText != "" {
			m.controllerText = msg.Turn.ControllerText
			m.displayedLen = 0
			m.typing = true
			cmd = typingTickCmd()
		}
		if msg.Turn.Feedback != "" {
			m.feedback = msg.Turn.Feedback
		}
		return m, cmd
	}

	return m, nil
}

func (m Model) handleTakeFinalized(msg TakeFinalizedMsg) (tea.Model, tea.Cmd) {
	m.stopping = false
	if msg.Err != nil {
		m.phase = PhaseIdle
		m.feedback = msgRecordRetry
		m.deps.Log.Error("finalize take", "err", msg.Err)
		return m, nil
	}

	// Guard against accidental taps and empty uploads.
	if msg.Take.Duration < audio.MinTakeDuration {
		_ = os.Remove(msg.Take.Path)
		m.phase = PhaseIdle
		m.feedback = msgTooShort
		return m, nil
	}

	take := msg.Take
	m.take = &take
	if m.reviewEnabled {
		m.phase = PhaseReviewing
		m.feedback = ""
		return m, nil
	}
	return m.beginSubmit()
}

// beginSubmit runs the submission preamble: identity check, state blanking,
// snapshotting the previous reply, then the upload command.
func (m Model) beginSubmit() (tea.Model, tea.Cmd) {
	if m.sessionID == "" {
		m.discardTake()
		m.phase = PhaseIdle
		m.feedback = msgReturnToConfig
		return m, nil
	}

	take := *m.take
	m.take = nil
	m.phase = PhaseSubmitting
	m.feedback = ""
	if m.controllerText != "" {
		m.prevControllerText = m.controllerText
	}
	m.showPrev = false
	m.controllerText = ""
	m.displayedLen = 0
	m.typing = false

	return m, submitCmd(m.deps.Client, m.sessionID, m.frequency, take)
}

func (m Model) handleSubmitResult(msg SubmitResultMsg) (tea.Model, tea.Cmd) {
	if m.phase != PhaseSubmitting {
		return m, nil
	}
	m.phase = PhaseIdle

	if msg.Err != nil {
		m.feedback = submitErrorMessage(msg.Err)
		m.deps.Log.Error("analyze transmission", "err", msg.Err)
		return m, nil
	}

	var cmds []tea.Cmd
	resp := msg.Resp

	// Optional fields are applied only when present.
	if resp.Feedback != nil {
		m.feedback = *resp.Feedback
	}
	if resp.ControllerText != nil {
		m.controllerText = *resp.ControllerText
		m.displayedLen = 0
		m.typing = m.controllerText != ""
		if m.typing {
			cmds = append(cmds, typingTickCmd())
		}
	}
	if resp.AudioURL != nil && *resp.AudioURL != "" && !m.deps.Player.Playing() {
		// Inbound controller audio plays without a user gesture.
		cmds = append(cmds, playCmd(m.deps.Player, *resp.AudioURL, true))
	}

	if m.deps.Store != nil {
		turn := db.Turn{
			ID:        uuid.NewString(),
			SessionID: m.sessionID,
			Frequency: m.frequency,
			Completed: resp.Completed(),
			CreatedAt: time.Now(),
		}
		if resp.Feedback != nil {
			turn.Feedback = *resp.Feedback
		}
		if resp.ControllerText != nil {
			turn.ControllerText = *resp.ControllerText
		}
		if resp.AudioURL != nil {
			turn.AudioURL = *resp.AudioURL
		}
		cmds = append(cmds, saveTurnCmd(m.deps.Store, turn))
	}

	if resp.Completed() && !m.completionRaised {
		m.completionRaised = true
		m.phase = PhaseCompleted
	}

	return m, tea.Batch(cmds...)
}

// submitErrorMessage maps a submission failure to its user-facing message.
func submitErrorMessage(err error) string {
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == 401:
			return msgAuthRequired
		case statusErr.StatusCode == 400:
			if statusErr.Detail != "" {
				return statusErr.Detail
			}
			return msgInvalidAudio
		case statusErr.StatusCode >= 500:
			return msgServerRetry
		}
		return msgGenericFail
	}
	if api.IsNetworkError(err) {
		return msgNoConnection
	}
	return msgGenericFail
}

// handleKey processes key presses, routing through any open overlay first.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch m.overlay {
	case OverlayFrequencyEdit:
		return m.handleFrequencyKey(msg)
	case OverlayScores:
		return m.handleScoresKey(key)
	}

	if m.phase == PhaseCompleted {
		return m.handleCompletionKey(key)
	}

	switch key {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		return m, tea.Quit

	case KeySpace:
		return m.handlePushToTalk()

	case KeyPlay:
		switch m.phase {
		case PhaseReviewing:
			if m.take == nil {
				return m, nil
			}
			m.phase = PhasePlaying
			m.feedback = ""
			return m, playCmd(m.deps.Player, m.take.Path, false)
		case PhasePlaying:
			m.phase = PhaseReviewing
			m.feedback = msgPaused
			return m, stopPlaybackCmd(m.deps.Player)
		}
		return m, nil

	case KeyDiscard:
		if m.phase == PhaseReviewing {
			// The previous controller text stays readable after a discard.
			m.discardTake()
			m.phase = PhaseIdle
			m.feedback = ""
		}
		return m, nil

	case KeySend, KeySendAlt:
		if m.phase == PhaseReviewing && m.take != nil {
			return m.beginSubmit()
		}
		return m, nil

	case KeyToggleReview:
		if m.phase == PhaseIdle {
			m.reviewEnabled = !m.reviewEnabled
		}
		return m, nil

	case KeyRecallPrev:
		if m.prevControllerText != "" {
			m.showPrev = !m.showPrev
		}
		return m, nil

	case KeyEditFreq:
		if m.phase == PhaseIdle {
			m.overlay = OverlayFrequencyEdit
			m.freqInput = atc.FormatFrequency(m.frequency)
			m.freqErr = ""
		}
		return m, nil

	case KeyScores:
		if m.phase == PhaseIdle && m.deps.Store != nil && m.sessionID != "" {
			return m, loadScoresCmd(m.deps.Store, m.sessionID)
		}
		return m, nil
	}

	return m, nil
}

// handlePushToTalk starts or stops a capture. Only one recording and one
// submission can exist at a time; conflicting presses are ignored.
func (m Model) handlePushToTalk() (tea.Model, tea.Cmd) {
	switch m.phase {
	case PhaseIdle:
		if !m.micReady {
			return m, nil
		}
		m.phase = PhaseRecording
		m.feedback = msgRecording
		return m, startRecordCmd(m.deps.Recorder)

	case PhaseRecording:
		if m.stopping {
			return m, nil
		}
		m.stopping = true
		return m, stopRecordCmd(m.deps.Recorder)
	}
	return m, nil
}

func (m Model) handleFrequencyKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEsc:
		m.overlay = OverlayNone
		m.freqErr = ""
		return m, nil

	case KeySend:
		f, err := atc.ParseFrequency(m.freqInput)
		if err != nil {
			// The stored frequency is untouched until the input is valid.
			m.freqErr = err.Error()
			return m, nil
		}
		m.frequency = f
		m.overlay = OverlayNone
		m.freqErr = ""
		return m, nil

	case KeyBackspace:
		if len(m.freqInput) > 0 {
			m.freqInput = m.freqInput[:len(m.freqInput)-1]
		}
		return m, nil
	}

	if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
		r := msg.Runes[0]
		if (r >= '0' && r <= '9') || r == '.' {
			if len(m.freqInput) < 8 {
				m.freqInput += string(r)
			}
		}
	}
	return m, nil
}

func (m Model) handleScoresKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		return m, tea.Quit
	case KeyEsc:
		if m.scoresFromCompletion {
			// The completion gate is terminal; there is no way back into
			// the finished practice flow.
			return m, tea.Quit
		}
		m.overlay = OverlayNone
		return m, nil
	}
	return m, nil
}

func (m Model) handleCompletionKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case KeyGoScores:
		if m.deps.Store != nil && m.sessionID != "" {
			m.scoresFromCompletion = true
			return m, loadScoresCmd(m.deps.Store, m.sessionID)
		}
		return m, tea.Quit
	case KeyNewSession, KeyQuit, KeyQuitUpper, KeyCtrlC:
		return m, tea.Quit
	}
	return m, nil
}

// discardTake drops the staged take, if any. Calling it with nothing staged
// is a no-op.
func (m *Model) discardTake() {
	if m.take != nil {
		_ = os.Remove(m.take.Path)
		m.take = nil
	}
	m.deps.Recorder.Discard()
}

// displayedReply is the portion of the controller reply revealed so far.
func (m Model) displayedReply() string {
	runes := []rune(m.controllerText)
	if m.displayedLen >= len(runes) {
		return m.controllerText
	}
	return string(runes[:m.displayedLen])
}

