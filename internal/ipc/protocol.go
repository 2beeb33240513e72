package ipc

// Commands understood by the owner process.
const (
	CommandStatus = "status"
	CommandStart  = "start"
	CommandToggle = "toggle"
	CommandStop   = "stop"
	CommandCancel = "cancel"
)

type Request struct {
	Command    string `json:"command"`
	Device     *int   `json:"device,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Session string `json:"session,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
