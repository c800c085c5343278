package app

// Key binding constants used in handleKey.
const (
	KeyQuit         = "q"
	KeyQuitUpper    = "Q"
	KeyCtrlC        = "ctrl+c"
	KeySpace        = " "
	KeyPlay         = "p"
	KeyDiscard      = "d"
	KeySend         = "enter"
	KeySendAlt      = "s"
	KeyToggleReview = "v"
	KeyRecallPrev   = "r"
	KeyEditFreq     = "f"
	KeyScores       = "c"
	KeyEsc          = "esc"
	KeyBackspace    = "backspace"
	KeyGoScores     = "g"
	KeyNewSession   = "n"
)
