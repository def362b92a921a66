package monitor

import "github.com/gdamore/tcell/v2"

// Action represents what a key press asks the monitor to do
type Action int

const (
	ActionStep Action = iota
	ActionRunToggle
	ActionNMI
	ActionReset
	ActionLogLevelIncrease
	ActionLogLevelDecrease
	ActionQuit
)

var actionNames = map[Action]string{
	ActionStep:             "step",
	ActionRunToggle:        "run/pause",
	ActionNMI:              "nmi",
	ActionReset:            "reset",
	ActionLogLevelIncrease: "more logs",
	ActionLogLevelDecrease: "fewer logs",
	ActionQuit:             "quit",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

var keyMapping = map[tcell.Key]Action{
	tcell.KeyEscape: ActionQuit,
	tcell.KeyCtrlC:  ActionQuit,
	tcell.KeyF5:     ActionRunToggle,
	tcell.KeyF10:    ActionStep,
}

var runeMapping = map[rune]Action{
	's': ActionStep,
	'r': ActionRunToggle,
	' ': ActionRunToggle,
	'n': ActionNMI,
	'x': ActionReset,
	'+': ActionLogLevelIncrease,
	'-': ActionLogLevelDecrease,
	'q': ActionQuit,
}

// actionFor maps a key event to its action
func actionFor(ev *tcell.EventKey) (Action, bool) {
	if ev.Key() == tcell.KeyRune {
		act, ok := runeMapping[ev.Rune()]
		return act, ok
	}
	act, ok := keyMapping[ev.Key()]
	return act, ok
}
