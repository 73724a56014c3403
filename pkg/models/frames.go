package models

import "encoding/json"

// FrameTypeCommandReply discriminates reply frames from event frames on the
// SDK socket. Event frames carry "eventType"; reply frames carry
// "type":"command_reply".
const FrameTypeCommandReply = "command_reply"

// Commands the server may issue down an SDK socket. The SDK implements the
// receiving side.
const (
	CommandCaptureDOMSnapshot   = "capture_dom_snapshot"
	CommandReconScan            = "recon_scan"
	CommandReconElementSnapshot = "recon_element_snapshot"
)

// CommandFrame is an outbound server → SDK command.
type CommandFrame struct {
	Command   string `json:"command"`
	RequestID string `json:"requestId"`
	Params    any    `json:"params,omitempty"`
}

// CommandReply is an inbound SDK → server reply correlated by requestId.
// Exactly one of Data or Error is set.
type CommandReply struct {
	Type      string          `json:"type"` // always "command_reply"
	RequestID string          `json:"requestId"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// framePeek extracts only the discriminator fields from an inbound frame.
type framePeek struct {
	Type      string `json:"type"`
	EventType string `json:"eventType"`
}

// PeekFrameType reports whether the frame is a command reply, without fully
// decoding it. Returns false for event frames and undecodable input (the
// caller will surface the decode error through DecodeEvent).
func PeekFrameType(data []byte) (isReply bool) {
	var p framePeek
	if err := json.Unmarshal(data, &p); err != nil {
		return false
	}
	return p.Type == FrameTypeCommandReply
}

// CaptureDOMSnapshotParams are the params for capture_dom_snapshot.
type CaptureDOMSnapshotParams struct {
	MaxSize int `json:"maxSize,omitempty"`
}

// ReconScanParams are the params for recon_scan.
type ReconScanParams struct {
	Categories []string `json:"categories,omitempty"`
}

// ReconElementSnapshotParams are the params for recon_element_snapshot.
type ReconElementSnapshotParams struct {
	Selector string `json:"selector"`
	Depth    int    `json:"depth,omitempty"`
}
