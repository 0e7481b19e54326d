package tui

// Keybinding constants
const (
	KeyTab      = "tab"
	KeyShiftTab = "shift+tab"
	KeyEnter    = "enter"
	KeyEsc      = "esc"
	KeyQuit     = "q"
	KeyCtrlC    = "ctrl+c"
	KeySettings = "ctrl+s"
	KeyPane1    = "1"
	KeyPane2    = "2"
	KeyPane3    = "3"
	KeyUp       = "up"
	KeyDown     = "down"
	KeyJ        = "j"
	KeyK        = "k"
)

// HelpView returns a one-line help bar with common keybindings.
func HelpView(busy bool) string {
	if busy {
		return StyleHelp.Render("Esc: stop | Tab: cycle focus | j/k: select agent | ctrl+s: settings | ctrl+c: quit")
	}
	return StyleHelp.Render("Enter: send | Tab: cycle focus | 1/2/3: jump to pane | j/k: select agent | ctrl+s: settings | q: quit")
}
