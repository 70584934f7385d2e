package tui

const (
	keyQuit    = "q"
	keyCtrlC   = "ctrl+c"
	keySpace   = " "
	keyEnter   = "enter"
	keyReview  = "r"
	keySpeak   = "s"
	keyPlay    = "p"
	keyBack    = "esc"
	keyLeft    = "left"
	keyRight   = "right"
	keyPrevVim = "h"
	keyNextVim = "l"
)
