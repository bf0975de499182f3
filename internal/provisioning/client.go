package provisioning

import (
	"context"
	"errors"
)

// Client defines the provider-agnostic contract the dispatch engine uses to
// place a call: create a media session carrying agent context, then dial the
// phone number into it.
//
// Rules:
// - No provider SDK calls outside provisioning adapters.
// - Keep request/response types provider-agnostic; the dial is an external
//   side effect with no rollback, so callers must treat a returned error as
//   "dial may or may not have happened".
type Client interface {
	Name() string
	HealthCheck(ctx context.Context) error

	CreateSession(ctx context.Context, req CreateSessionRequest) (Session, error)
	DialOut(ctx context.Context, req DialOutRequest) (DialOutResult, error)
}

var ErrNotConfigured = errors.New("provisioning: not configured")

// CreateSessionRequest provisions a named media session. Metadata is the
// JSON handed to the voice agent when it joins.
type CreateSessionRequest struct {
	Name     string `json:"name"`
	Metadata string `json:"metadata,omitempty"`

	// EmptyTimeoutSeconds closes the session if nobody joins.
	EmptyTimeoutSeconds uint32 `json:"empty_timeout_seconds,omitempty"`
}

type Session struct {
	Name string `json:"name"`
	SID  string `json:"sid,omitempty"`
}

// DialOutRequest asks the provider's outbound trunk to dial a phone number
// into an existing session.
type DialOutRequest struct {
	TrunkID     string `json:"trunk_id"`
	PhoneNumber string `json:"phone_number"`
	SessionName string `json:"session_name"`

	ParticipantIdentity string `json:"participant_identity"`
	ParticipantName     string `json:"participant_name,omitempty"`
}

type DialOutResult struct {
	// ExternalCallRef is the provider's identifier for the placed call.
	ExternalCallRef string `json:"external_call_ref"`
	ParticipantID   string `json:"participant_id,omitempty"`
}
