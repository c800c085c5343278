package app

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nmoreno/readback/internal/api"
	"github.com/nmoreno/readback/internal/audio"
	"github.com/nmoreno/readback/internal/db"
)

type fakeAnalyzer struct {
	resp    api.AnalyzeResponse
	err     error
	calls   int
	lastReq api.AnalyzeRequest
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req api.AnalyzeRequest) (api.AnalyzeResponse, error) {
	f.calls++
	f.lastReq = req
	return f.resp, f.err
}

type fakeRecorder struct {
	started     int
	stopped     int
	discards    int
	startErr    error
	stopErr     error
	finalizeErr error
	take        audio.Take
	recording   bool
}

func (f *fakeRecorder) Start(context.Context) error {
	f.started++
	if f.startErr == nil {
		f.recording = true
	}
	return f.startErr
}

func (f *fakeRecorder) Stop() error {
	f.stopped++
	f.recording = false
	return f.stopErr
}

func (f *fakeRecorder) Finalize() (audio.Take, error) {
	return f.take, f.finalizeErr
}

func (f *fakeRecorder) Discard()        { f.discards++ }
func (f *fakeRecorder) Recording() bool { return f.recording }

type fakePlayer struct {
	playing bool
	playErr error
	waitErr error
	played  []string
	stops   int
}

func (f *fakePlayer) Play(_ context.Context, uri string) error {
	if f.playErr != nil {
		return f.playErr
	}
	f.playing = true
	f.played = append(f.played, uri)
	return nil
}

func (f *fakePlayer) Wait() error {
	f.playing = false
	return f.waitErr
}

func (f *fakePlayer) Stop() error {
	f.stops++
	f.playing = false
	return nil
}

func (f *fakePlayer) Playing() bool { return f.playing }

type fakeStore struct {
	saved   []db.Turn
	turns   []db.Turn
	latest  *db.Turn
	saveErr error
}

func (f *fakeStore) SaveTurn(t db.Turn) error {
	f.saved = append(f.saved, t)
	return f.saveErr
}

func (f *fakeStore) TurnsForSession(string) ([]db.Turn, error) { return f.turns, nil }
func (f *fakeStore) LatestTurn(string) (*db.Turn, error)       { return f.latest, nil }

type testDeps struct {
	analyzer *fakeAnalyzer
	recorder *fakeRecorder
	player   *fakePlayer
	store    *fakeStore
}

func newTestModel(t *testing.T) (Model, *testDeps) {
	t.Helper()
	d := &testDeps{
		analyzer: &fakeAnalyzer{},
		recorder: &fakeRecorder{},
		player:   &fakePlayer{},
		store:    &fakeStore{},
	}
	m := New(Params{SessionID: "sess-1", Frequency: 121.5}, Deps{
		Client:   d.analyzer,
		Recorder: d.recorder,
		Player:   d.player,
		Store:    d.store,
	})
	m.micReady = true
	m.width = 80
	m.height = 24
	return m, d
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestNewModel(t *testing.T) {
	m, _ := newTestModel(t)
	if m.phase != PhaseIdle {
		t.Errorf("phase = %v, want idle", m.phase)
	}
	if m.frequency != 121.5 {
		t.Errorf("frequency = %v", m.frequency)
	}
	if m.reviewEnabled {
		t.Error("review should default to off")
	}
}

func TestNewModelRejectsOutOfBandFrequency(t *testing.T) {
	m := New(Params{SessionID: "s", Frequency: 500.0}, Deps{})
	if m.frequency != 118.0 {
		t.Errorf("frequency = %v, want band floor", m.frequency)
	}
}

func TestProbeFailureDisablesRecording(t *testing.T) {
	m, d := newTestModel(t)
	m.micReady = false

	updated, _ := m.Update(ProbeResultMsg{Err: errors.New("no ffmpeg")})
	model := updated.(Model)

	if model.micReady {
		t.Error("mic should not be ready")
	}
	if model.feedback != msgMicUnavailable {
		t.Errorf("feedback = %q", model.feedback)
	}

	// Push-to-talk stays non-functional; the rest of the screen still works.
	updated, cmd := model.Update(keyMsg(" "))
	model = updated.(Model)
	if model.phase != PhaseIdle || cmd != nil {
		t.Error("space should be ignored without the mic")
	}
	if d.recorder.started != 0 {
		t.Error("recorder should not have started")
	}
}

func TestPushToTalkStartsRecording(t *testing.T) {
	m, _ := newTestModel(t)

	updated, cmd := m.Update(keyMsg(" "))
	model := updated.(Model)

	if model.phase != PhaseRecording {
		t.Errorf("phase = %v, want recording", model.phase)
	}
	if model.feedback != msgRecording {
		t.Errorf("feedback = %q", model.feedback)
	}
	if cmd == nil {
		t.Fatal("expected a start command")
	}
}

func TestRecordStartFailureReturnsToIdle(t *testing.T) {
	m, _ := newTestModel(t)
	m.phase = PhaseRecording

	updated, _ := m.Update(RecordStartedMsg{Err: errors.New("device busy")})
	model := updated.(Model)

	if model.phase != PhaseIdle {
		t.Errorf("phase = %v, want idle", model.phase)
	}
	if model.feedback != msgRecordRetry {
		t.Errorf("feedback = %q", model.feedback)
	}
}

func TestStopFlowRejectsShortTake(t *testing.T) {
	m, _ := newTestModel(t)
	m.phase = PhaseRecording

	// Stop keypress, recorder stops, grace period elapses.
	updated, cmd := m.Update(keyMsg(" "))
	model := updated.(Model)
	if !model.stopping {
		t.Fatal("should be stopping after stop keypress")
	}
	if cmd == nil {
		t.Fatal("expected stop command")
	}

	updated, cmd = model.Update(RecordStoppedMsg{})
	model = updated.(Model)
	if cmd == nil {
		t.Fatal("expected flush tick command")
	}

	updated, cmd = model.Update(FlushTickMsg{})
	model = updated.(Model)
	if cmd == nil {
		t.Fatal("expected finalize command")
	}

	updated, _ = model.Update(TakeFinalizedMsg{Take: audio.Take{
		ID: "t", Path: "/nonexistent/take.wav", Duration: 500 * time.Millisecond,
	}})
	model = updated.(Model)

	if model.phase != PhaseIdle {
		t.Errorf("phase = %v, want idle", model.phase)
	}
	if model.feedback != msgTooShort {
		t.Errorf("feedback = %q", model.feedback)
	}
	if model.take != nil {
		t.Error("short take should not be staged")
	}
}

func TestFinalizeStagesTakeWhenReviewEnabled(t *testing.T) {
	m, _ := newTestModel(t)
	m.phase = PhaseRecording
	m.reviewEnabled = true

	updated, cmd := m.Update(TakeFinalizedMsg{Take: audio.Take{
		ID: "t", Path: "/tmp/take.wav", Duration: 2 * time.Second,
	}})
	model := updated.(Model)

	if model.phase != PhaseReviewing {
		t.Errorf("phase = %v, want reviewing", model.phase)
	}
	if model.take == nil || model.take.ID != "t" {
		t.Error("take should be staged for review")
	}
	if cmd != nil {
		t.Error("staging for review should not submit")
	}
}

func TestFinalizeAutoSubmitsWhenReviewDisabled(t *testing.T) {
	m, _ := newTestModel(t)
	m.phase = PhaseRecording
	m.controllerText = "Previous reply"

	updated, cmd := m.Update(TakeFinalizedMsg{Take: audio.Take{
		ID: "t", Path: "/tmp/take.wav", Duration: 2 * time.Second,
	}})
	model := updated.(Model)

	if model.phase != PhaseSubmitting {
		t.Errorf("phase = %v, want submitting", model.phase)
	}
	if cmd == nil {
		t.Fatal("expected submit command")
	}
	if model.controllerText != "" {
		t.Error("controller text should be blanked during submission")
	}
	if model.prevControllerText != "Previous reply" {
		t.Errorf("prev = %q, want snapshot of last reply", model.prevControllerText)
	}
	if model.feedback != "" {
		t.Errorf("feedback = %q, want cleared", model.feedback)
	}
}

func TestSubmitWithoutSessionAbortsBeforeNetwork(t *testing.T) {
	d := &testDeps{analyzer: &fakeAnalyzer{}, recorder: &fakeRecorder{}, player: &fakePlayer{}}
	m := New(Params{SessionID: ""}, Deps{
		Client: d.analyzer, Recorder: d.recorder, Player: d.player,
	})
	m.micReady = true
	m.phase = PhaseRecording

	updated, cmd := m.Update(TakeFinalizedMsg{Take: audio.Take{
		ID: "t", Path: "/nonexistent/take.wav", Duration: 2 * time.Second,
	}})
	model := updated.(Model)

	if model.phase != PhaseIdle {
		t.Errorf("phase = %v, want idle", model.phase)
	}
	if model.feedback != msgReturnToConfig {
		t.Errorf("feedback = %q", model.feedback)
	}
	if model.take != nil {
		t.Error("take should be discarded")
	}
	if cmd != nil {
		t.Error("no command should run")
	}
	if d.analyzer.calls != 0 {
		t.Error("no network call should be attempted")
	}
}

func TestSubmitSuccessAppliesResponse(t *testing.T) {
	m, _ := newTestModel(t)
	m.phase = PhaseSubmitting

	updated, cmd := m.Update(SubmitResultMsg{Resp: api.AnalyzeResponse{
		Feedback:         api.StrPtr("Good readback"),
		ControllerText:   api.StrPtr("Cessna 123, cleared to land"),
		SessionCompleted: api.BoolPtr(false),
	}})
	model := updated.(Model)

	if model.phase != PhaseIdle {
		t.Errorf("phase = %v, want idle", model.phase)
	}
	if model.feedback != "Good readback" {
		t.Errorf("feedback = %q", model.feedback)
	}
	if model.controllerText != "Cessna 123, cleared to land" {
		t.Errorf("controllerText = %q", model.controllerText)
	}
	if !model.typing || model.displayedLen != 0 {
		t.Error("typing reveal should restart from zero")
	}
	if cmd == nil {
		t.Error("expected typing tick and save commands")
	}
}

func TestSubmitAppliesOnlyPresentFields(t *testing.T) {
	m, _ := newTestModel(t)
	m.phase = PhaseSubmitting
	m.feedback = ""

	updated, _ := m.Update(SubmitResultMsg{Resp: api.AnalyzeResponse{
		ControllerText: api.StrPtr("Say again"),
	}})
	model := updated.(Model)

	if model.feedback != "" {
		t.Errorf("feedback = %q, want untouched", model.feedback)
	}
	if model.controllerText != "Say again" {
		t.Errorf("controllerText = %q", model.controllerText)
	}
}

func TestSubmitResponseAutoPlaysReplyAudio(t *testing.T) {
	m, d := newTestModel(t)
	m.phase = PhaseSubmitting

	updated, cmd := m.Update(SubmitResultMsg{Resp: api.AnalyzeResponse{
		AudioURL: api.StrPtr("https://cdn.example.com/reply.mp3"),
	}})
	if cmd == nil {
		t.Fatal("expected playback command")
	}

	// Drain the batch so the play command actually runs.
	drainCmds(t, cmd)

	if len(d.player.played) != 1 || d.player.played[0] != "https://cdn.example.com/reply.mp3" {
		t.Errorf("played = %v", d.player.played)
	}
	_ = updated
}

func TestSubmitCompletionOpensModalOnce(t *testing.T) {
	m, _ := newTestModel(t)
	m.phase = PhaseSubmitting

	updated, _ := m.Update(SubmitResultMsg{Resp: api.AnalyzeResponse{
		SessionCompleted: api.BoolPtr(true),
	}})
	model := updated.(Model)

	if model.phase != PhaseCompleted {
		t.Errorf("phase = %v, want completed", model.phase)
	}
	if !model.completionRaised {
		t.Error("completion gate should be armed")
	}

	// The gate never re-arms within a screen instance.
	model.phase = PhaseSubmitting
	updated, _ = model.Update(SubmitResultMsg{Resp: api.AnalyzeResponse{
		SessionCompleted: api.BoolPtr(true),
	}})
	model = updated.(Model)
	if model.phase != PhaseIdle {
		t.Errorf("phase = %v, modal must not reopen", model.phase)
	}
}

func TestSubmitNetworkErrorShowsConnectivityMessage(t *testing.T) {
	m, _ := newTestModel(t)
	m.phase = PhaseSubmitting

	netErr := &url.Error{Op: "Post", URL: "http://x", Err: errors.New("connection refused")}
	updated, _ := m.Update(SubmitResultMsg{Err: netErr})
	model := updated.(Model)

	if model.phase != PhaseIdle {
		t.Errorf("phase = %v, want idle", model.phase)
	}
	if model.feedback != msgNoConnection {
		t.Errorf("feedback = %q", model.feedback)
	}
	if model.take != nil {
		t.Error("take should be cleared")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "deadline exceeded" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestSubmitErrorMessages(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"unauthorized", &api.StatusError{StatusCode: 401}, msgAuthRequired},
		{"bad request with detail", &api.StatusError{StatusCode: 400, Detail: "unsupported codec"}, "unsupported codec"},
		{"bad request without detail", &api.StatusError{StatusCode: 400}, msgInvalidAudio},
		{"server error", &api.StatusError{StatusCode: 502}, msgServerRetry},
		{"network unreachable", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("refused")}, msgNoConnection},
		{"timeout is generic", &url.Error{Op: "Post", URL: "http://x", Err: timeoutErr{}}, msgGenericFail},
		{"anything else", errors.New("boom"), msgGenericFail},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := submitErrorMessage(c.err); got != c.want {
				t.Errorf("submitErrorMessage = %q, want %q", got, c.want)
			}
		})
	}
}

func TestDiscardPreservesLastReply(t *testing.T) {
	m, _ := newTestModel(t)
	m.phase = PhaseReviewing
	m.take = &audio.Take{ID: "t", Path: "/nonexistent/take.wav", Duration: 2 * time.Second}
	m.controllerText = "Cessna 123, cleared to land"

	updated, _ := m.Update(keyMsg("d"))
	model := updated.(Model)

	if model.phase != PhaseIdle {
		t.Errorf("phase = %v, want idle", model.phase)
	}
	if model.take != nil {
		t.Error("take should be cleared")
	}
	if model.controllerText != "Cessna 123, cleared to land" {
		t.Error("last reply must stay readable after a discard")
	}
}

func TestDiscardTwiceIsNoop(t *testing.T) {
	m, d := newTestModel(t)
	m.phase = PhaseReviewing
	m.take = &audio.Take{ID: "t", Path: "/nonexistent/take.wav"}

	updated, _ := m.Update(keyMsg("d"))
	model := updated.(Model)
	updated, _ = model.Update(keyMsg("d"))
	model = updated.(Model)

	if model.phase != PhaseIdle || model.take != nil {
		t.Error("second discard should leave state unchanged")
	}
	if d.recorder.discards != 1 {
		t.Errorf("recorder discards = %d, want 1 (second key ignored outside review)", d.recorder.discards)
	}
}

func TestPlayToggle(t *testing.T) {
	m, d := newTestModel(t)
	m.phase = PhaseReviewing
	m.take = &audio.Take{ID: "t", Path: "/tmp/take.wav", Duration: 2 * time.Second}

	updated, cmd := m.Update(keyMsg("p"))
	model := updated.(Model)
	if model.phase != PhasePlaying {
		t.Errorf("phase = %v, want playing", model.phase)
	}
	if cmd == nil {
		t.Fatal("expected play command")
	}

	// Toggle pauses.
	updated, cmd = model.Update(keyMsg("p"))
	model = updated.(Model)
	if model.phase != PhaseReviewing {
		t.Errorf("phase = %v, want reviewing", model.phase)
	}
	if model.feedback != msgPaused {
		t.Errorf("feedback = %q", model.feedback)
	}
	if cmd == nil {
		t.Fatal("expected stop command")
	}
	drainCmds(t, cmd)
	if d.player.stops != 1 {
		t.Errorf("stops = %d, want 1", d.player.stops)
	}

	// The pending completion event from the halted playback is ignored.
	updated, _ = model.Update(PlaybackDoneMsg{})
	model = updated.(Model)
	if model.feedback != msgPaused {
		t.Error("late playback-done must not clobber the paused message")
	}
}

func TestPlaybackDoneReturnsToReview(t *testing.T) {
	m, _ := newTestModel(t)
	m.phase = PhasePlaying
	m.take = &audio.Take{ID: "t", Path: "/tmp/take.wav"}

	updated, _ := m.Update(PlaybackDoneMsg{})
	model := updated.(Model)
	if model.phase != PhaseReviewing {
		t.Errorf("phase = %v, want reviewing", model.phase)
	}
}

func TestSendFromReviewSubmits(t *testing.T) {
	m, _ := newTestModel(t)
	m.phase = PhaseReviewing
	m.take = &audio.Take{ID: "t", Path: "/tmp/take.wav", Duration: 2 * time.Second}

	updated, cmd := m.Update(keyMsg("enter"))
	model := updated.(Model)

	if model.phase != PhaseSubmitting {
		t.Errorf("phase = %v, want submitting", model.phase)
	}
	if cmd == nil {
		t.Fatal("expected submit command")
	}
}

func TestConflictingKeysIgnoredWhileSubmitting(t *testing.T) {
	m, d := newTestModel(t)
	m.phase = PhaseSubmitting

	for _, k := range []string{" ", "p", "d", "enter", "f", "c"} {
		updated, cmd := m.Update(keyMsg(k))
		model := updated.(Model)
		if model.phase != PhaseSubmitting {
			t.Errorf("key %q changed phase to %v", k, model.phase)
		}
		if cmd != nil {
			t.Errorf("key %q produced a command", k)
		}
	}
	if d.recorder.started != 0 {
		t.Error("recorder must not start during submission")
	}
}

func TestRecallPreviousReplyToggle(t *testing.T) {
	m, _ := newTestModel(t)
	m.prevControllerText = "Previous reply"

	updated, _ := m.Update(keyMsg("r"))
	model := updated.(Model)
	if !model.showPrev {
		t.Error("recall should toggle on")
	}
	updated, _ = model.Update(keyMsg("r"))
	model = updated.(Model)
	if model.showPrev {
		t.Error("recall should toggle off")
	}

	// Without a previous reply the toggle is inert.
	m2, _ := newTestModel(t)
	updated, _ = m2.Update(keyMsg("r"))
	model = updated.(Model)
	if model.showPrev {
		t.Error("recall should not enable without a previous reply")
	}
}

func TestCompletionKeysAreTerminal(t *testing.T) {
	m, _ := newTestModel(t)
	m.phase = PhaseCompleted
	m.completionRaised = true

	updated, cmd := m.Update(keyMsg("g"))
	model := updated.(Model)
	if cmd == nil {
		t.Fatal("g should load scores")
	}
	if !model.scoresFromCompletion {
		t.Error("scores entered from completion must be terminal")
	}

	_, cmd = m.Update(keyMsg("n"))
	if cmd == nil {
		t.Error("n should quit to a new configuration")
	}
}

func TestScoresOverlay(t *testing.T) {
	m, _ := newTestModel(t)

	updated, _ := m.Update(ScoresLoadedMsg{Turns: []db.Turn{{ID: "t-1"}}})
	model := updated.(Model)
	if model.overlay != OverlayScores {
		t.Errorf("overlay = %v, want scores", model.overlay)
	}
	if len(model.scores) != 1 {
		t.Errorf("scores = %d, want 1", len(model.scores))
	}

	updated, _ = model.Update(keyMsg("esc"))
	model = updated.(Model)
	if model.overlay != OverlayNone {
		t.Error("esc should close the scores overlay")
	}
}

func TestScoresFromCompletionQuitOnEsc(t *testing.T) {
	m, _ := newTestModel(t)
	m.phase = PhaseCompleted
	m.scoresFromCompletion = true
	m.overlay = OverlayScores

	_, cmd := m.Update(keyMsg("esc"))
	if cmd == nil {
		t.Error("esc from completion scores should quit")
	}
}

func TestHydrationRestoresLastTurn(t *testing.T) {
	m, _ := newTestModel(t)

	updated, cmd := m.Update(HydratedMsg{Turn: &db.Turn{
		ControllerText: "Continue approach",
		Feedback:       "Watch your phraseology",
	}})
	model := updated.(Model)

	if model.controllerText != "Continue approach" {
		t.Errorf("controllerText = %q", model.controllerText)
	}
	if model.feedback != "Watch your phraseology" {
		t.Errorf("feedback = %q", model.feedback)
	}
	if !model.typing {
		t.Error("typing reveal should start")
	}
	if cmd == nil {
		t.Error("expected typing tick command")
	}
}

func TestSaveTurnCmdPersists(t *testing.T) {
	store := &fakeStore{}
	turn := db.Turn{ID: "t-1", SessionID: "sess-1", Feedback: "Good"}

	msg := saveTurnCmd(store, turn)()
	if saved, ok := msg.(TurnSavedMsg); !ok || saved.Err != nil {
		t.Fatalf("msg = %#v", msg)
	}
	if len(store.saved) != 1 || store.saved[0].ID != "t-1" {
		t.Errorf("saved = %v", store.saved)
	}
}

func TestSubmitCmdFormatsFrequency(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	take := audio.Take{ID: "t", Path: "/nonexistent/take.wav"}

	submitCmd(analyzer, "sess-1", 121.5, take)()

	if analyzer.calls != 1 {
		t.Fatalf("calls = %d", analyzer.calls)
	}
	if analyzer.lastReq.Frequency != "121.500" {
		t.Errorf("frequency = %q, want three decimals", analyzer.lastReq.Frequency)
	}
	if analyzer.lastReq.SessionID != "sess-1" {
		t.Errorf("session = %q", analyzer.lastReq.SessionID)
	}
}

func TestViewRendersWithSize(t *testing.T) {
	m, _ := newTestModel(t)
	if m.View() == "" || m.View() == "Initializing..." {
		t.Error("view should render with a size set")
	}
}

func TestViewWithoutSize(t *testing.T) {
	m := New(Params{}, Deps{})
	if m.View() != "Initializing..." {
		t.Errorf("view = %q", m.View())
	}
}

// drainCmds executes a command tree, following batches, discarding messages.
func drainCmds(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			drainCmds(t, c)
		}
	}
}
