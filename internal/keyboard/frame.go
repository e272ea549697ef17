package keyboard

// Frame types on the agent wire.
const (
	FrameHello      = "hello"
	FrameText       = "text"
	FrameReleaseAll = "release_all"
	FrameCombo      = "combo"
)

// Frame is one JSON message sent to an agent.
type Frame struct {
	Type   string `json:"type"`
	Data   string `json:"data,omitempty"`
	Device string `json:"device,omitempty"`
	Name   string `json:"name,omitempty"`
	Steps  []Step `json:"steps,omitempty"`
}

func textFrame(chunk []byte) Frame {
	return Frame{Type: FrameText, Data: string(chunk)}
}

func comboFrame(c Combo) Frame {
	return Frame{Type: FrameCombo, Name: c.Name, Steps: c.Steps}
}
