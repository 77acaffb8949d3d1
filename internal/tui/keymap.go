package tui

// Key bindings handled in handleKey.
const (
	keyQuit      = "q"
	keyCtrlC     = "ctrl+c"
	keyNext      = "n"
	keyNextAlt   = "right"
	keyPrev      = "b"
	keyPrevAlt   = "left"
	keyRecord    = "r"
	keyPlay      = "p"
	keyPause     = " "
	keyStop      = "s"
	keyGoTo      = "g"
	keyEnter     = "enter"
	keyEsc       = "esc"
	keyBackspace = "backspace"
)
