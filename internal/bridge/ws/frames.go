package ws

import (
	"github.com/acme/direct-calling/internal/bridge"
	"github.com/acme/direct-calling/internal/dialer"
	"github.com/acme/direct-calling/internal/session"
)

// Frame types.
const (
	FrameInvoke           = "invoke"
	FrameReply            = "reply"
	FramePermissionResult = "permissionResult"
	FramePermissionPrompt = "permissionPrompt"
	FramePermissionAck    = "permissionAck"
	FrameError            = "error"
)

// inboundFrame is anything a front-end sends.
type inboundFrame struct {
	Type        string         `json:"type"`
	ID          string         `json:"id,omitempty"`
	Method      string         `json:"method,omitempty"`
	Arguments   map[string]any `json:"arguments,omitempty"`
	RequestCode int            `json:"requestCode,omitempty"`
	Granted     bool           `json:"granted,omitempty"`
}

type replyFrame struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	bridge.Reply
}

type promptFrame struct {
	Type string `json:"type"`
	dialer.PromptRequest
}

type ackFrame struct {
	Type string `json:"type"`
	session.PermissionAck
}

type errorFrame struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}
