package bridge

import (
	"github.com/acme/direct-calling/internal/dialer"
	"github.com/acme/direct-calling/internal/domain"
)

// Reply statuses.
const (
	StatusSuccess        = "success"
	StatusError          = "error"
	StatusNotImplemented = "notImplemented"
)

// Error codes sent to the front-end.
const (
	CodeInvalidNumber  = "INVALID_NUMBER"
	CodeNoActivity     = "NO_ACTIVITY"
	CodeCallFailed     = "CALL_FAILED"
	CodeNotSupported   = "NOT_SUPPORTED"
	CodeCallSuperseded = "CALL_SUPERSEDED"
)

// Reply is the envelope answering one method call.
type Reply struct {
	Status  string `json:"status"`
	Result  *bool  `json:"result,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// NotImplemented answers an unknown method.
func NotImplemented() Reply {
	return Reply{Status: StatusNotImplemented}
}

// ReplyFor builds the reply of a resolved ticket; ok is false while it is pending.
func ReplyFor(t *dialer.Ticket) (Reply, bool) {
	out, ok := t.Outcome()
	if !ok {
		return Reply{}, false
	}
	return replyForOutcome(out), true
}

func replyForOutcome(out dialer.Outcome) Reply {
	if out.Err == nil {
		value := out.Value
		return Reply{Status: StatusSuccess, Result: &value}
	}
	return Reply{Status: StatusError, Code: ErrorCode(out.Status()), Message: out.Err.Error()}
}

// ErrorCode maps an outcome status to its wire code.
func ErrorCode(status domain.OutcomeStatus) string {
	switch status {
	case domain.OutcomeInvalidInput:
		return CodeInvalidNumber
	case domain.OutcomeNoContext, domain.OutcomeDetached:
		return CodeNoActivity
	case domain.OutcomeNotSupported:
		return CodeNotSupported
	case domain.OutcomeOverwritten:
		return CodeCallSuperseded
	default:
		return CodeCallFailed
	}
}
