// Package ipc carries commands to the process that owns the open session as
// newline-delimited JSON over a unix socket.
package ipc

// Commands understood by the session owner.
const (
	CommandStatus   = "status"
	CommandNext     = "next"
	CommandPrevious = "prev"
	CommandGoTo     = "goto"
	CommandRecord   = "record"
	CommandPause    = "pause"
	CommandResume   = "resume"
	CommandStop     = "stop"
	CommandPlay     = "play"
	CommandSet      = "set"
)

// Error codes carried in Response.Code.
const (
	CodeOutOfRange         = "out_of_range"
	CodeTransportBusy      = "transport_busy"
	CodeNotRecording       = "not_recording"
	CodeNotPlaying         = "not_playing"
	CodeNoReading          = "no_reading"
	CodeDeviceUnavailable  = "device_unavailable"
	CodePersistenceFailure = "persistence_failure"
	CodeMalformedEncoding  = "malformed_encoding"
	CodeInvalidArgument    = "invalid_argument"
	CodeUnknownCommand     = "unknown_command"
)

type Request struct {
	Command string `json:"command"`
	// Index is the 0-based paragraph for goto.
	Index *int `json:"index,omitempty"`
	// OffsetMS is the playback start offset for play.
	OffsetMS *int64            `json:"offset_ms,omitempty"`
	Settings map[string]string `json:"settings,omitempty"`
}

type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`

	SessionID string `json:"session_id,omitempty"`
	Document  string `json:"document,omitempty"`
	// Paragraph is the 0-based cursor, or -1 for an empty document.
	Paragraph  int    `json:"paragraph"`
	Count      int    `json:"count"`
	Text       string `json:"text,omitempty"`
	HasReading bool   `json:"has_reading"`
	ElapsedMS  int64  `json:"elapsed_ms"`
	PositionMS int64  `json:"position_ms"`
	DurationMS int64  `json:"duration_ms"`
	// Warning reports a degraded but running session, such as lost persistence.
	Warning string `json:"warning,omitempty"`
}
