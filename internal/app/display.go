package app

// DisplayState selects what the main content area shows. Exactly one of
// these is rendered at a time, by strict precedence:
// loading > feedback > previous-reply recall > current reply > empty prompt.
type DisplayState int

const (
	DisplayLoading DisplayState = iota
	DisplayFeedback
	DisplayPreviousReply
	DisplayReply
	DisplayEmpty
)

func (d DisplayState) String() string {
	switch d {
	case DisplayLoading:
		return "loading"
	case DisplayFeedback:
		return "feedback"
	case DisplayPreviousReply:
		return "previous_reply"
	case DisplayReply:
		return "reply"
	case DisplayEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// displayState applies the precedence order to the current screen state.
func (m Model) displayState() DisplayState {
	switch {
	case m.phase == PhaseSubmitting:
		return DisplayLoading
	case m.feedback != "":
		return DisplayFeedback
	case m.showPrev && m.prevControllerText != "":
		return DisplayPreviousReply
	case m.controllerText != "":
		return DisplayReply
	default:
		return DisplayEmpty
	}
}
