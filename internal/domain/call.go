package domain

import (
	"time"

	"github.com/google/uuid"
)

// Permission names an OS-level grant gating a privileged action.
type Permission string

const (
	PermissionCallPhone Permission = "CALL_PHONE"
)

// Bridge method names exposed on the direct_calling channel.
const (
	MethodMakeCall          = "makeCall"
	MethodCheckPermission   = "checkPermission"
	MethodRequestPermission = "requestPermission"
)

// OutcomeStatus classifies how a ticket was resolved.
type OutcomeStatus string

const (
	OutcomeCompleted    OutcomeStatus = "completed"
	OutcomeDenied       OutcomeStatus = "denied"
	OutcomeInvalidInput OutcomeStatus = "invalid_input"
	OutcomeNoContext    OutcomeStatus = "no_context"
	OutcomeActionFailed OutcomeStatus = "action_failed"
	OutcomeNotSupported OutcomeStatus = "not_supported"
	OutcomeOverwritten  OutcomeStatus = "overwritten"
	OutcomeDetached     OutcomeStatus = "detached"
)

// LaunchStatus enumerates what the telephony provider reported for an intent.
type LaunchStatus string

const (
	LaunchStatusLaunched LaunchStatus = "launched"
	LaunchStatusFailed   LaunchStatus = "failed"
)

// Grant is the durable answer of the permission subsystem for one device.
type Grant struct {
	DeviceID   string
	Permission Permission
	Granted    bool
	UpdatedAt  time.Time
}

// Outcome is the journaled resolution of one bridge request.
type Outcome struct {
	TicketID    uuid.UUID
	DeviceID    string
	Method      string
	PhoneNumber string
	Status      OutcomeStatus
	Value       bool
	Error       string
	RequestedAt time.Time
	ResolvedAt  time.Time
}

// Launch records what happened when a call intent reached the telephony provider.
type Launch struct {
	IntentID    uuid.UUID
	DeviceID    string
	PhoneNumber string
	Status      LaunchStatus
	Error       string
	Duration    time.Duration
	LaunchedAt  time.Time
}
