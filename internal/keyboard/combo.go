package keyboard

// Key names understood by keyboard agents.
const (
	KeyCtrl   = "ctrl"
	KeyAlt    = "alt"
	KeyShift  = "shift"
	KeyGUI    = "gui"
	KeyDelete = "delete"
)

// Step is a set of keys pressed together. The agent holds them for HoldMs,
// releases them, then waits PauseMs before the next step.
type Step struct {
	Keys    []string `json:"keys"`
	HoldMs  uint32   `json:"hold_ms,omitempty"`
	PauseMs uint32   `json:"pause_ms,omitempty"`
}

// Combo is a named sequence of key steps executed by the agent.
type Combo struct {
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// CtrlAltDel holds Ctrl+Alt+Delete for 100 ms.
var CtrlAltDel = Combo{
	Name: "ctrl_alt_del",
	Steps: []Step{
		{Keys: []string{KeyCtrl, KeyAlt, KeyDelete}, HoldMs: 100},
	},
}

// SleepCombo opens the Windows power-user menu and picks Shut down > Sleep.
var SleepCombo = Combo{
	Name: "sleep",
	Steps: []Step{
		{Keys: []string{KeyGUI, "x"}, PauseMs: 500},
		{Keys: []string{"u"}, PauseMs: 500},
		{Keys: []string{"s"}},
	},
}
