package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dialer-platform/internal/audit"
	"dialer-platform/internal/calls"
	"dialer-platform/internal/campaigns"
	"dialer-platform/internal/provisioning"
	"dialer-platform/internal/settings"
	"dialer-platform/pkg/logger"

	"github.com/google/uuid"
)

const (
	// DefaultBatchSize bounds one dispatch invocation when the caller does
	// not specify a size.
	DefaultBatchSize = 10

	// sessionEmptyTimeoutSeconds closes a provisioned session nobody joined.
	sessionEmptyTimeoutSeconds = 60
)

var (
	ErrInvalidArgument = errors.New("dispatch: invalid argument")

	// ErrTrunkNotConfigured means the outbound trunk id is missing. This is a
	// precondition failure for the whole batch, not a per-contact error.
	ErrTrunkNotConfigured = errors.New("dispatch: sip trunk not configured")

	// ErrInProgress means another dispatch run holds the campaign lock.
	ErrInProgress = errors.New("dispatch: campaign dispatch already in progress")
)

// CampaignSource is the single read the engine performs per batch.
type CampaignSource interface {
	GetCampaignDetail(ctx context.Context, id string) (campaigns.Detail, error)
}

// SettingsSource resolves runtime configuration (trunk id, default prompt).
type SettingsSource interface {
	Get(ctx context.Context, key, fallback string) (string, error)
}

// Locker serializes dispatch runs per campaign. Acquire returns ok=false
// when another run holds the lock; release is only valid when ok is true.
type Locker interface {
	Acquire(ctx context.Context, campaignID string) (release func(), ok bool, err error)
}

// Engine selects undialed contacts for a campaign and places calls for them.
//
// Contacts are processed sequentially: each create-record/provision/dial
// sequence completes before the next begins. That throttles the provisioning
// service naturally and avoids concurrent writes to one contact's history.
type Engine struct {
	campaigns CampaignSource
	calls     calls.Repository
	prov      provisioning.Client
	settings  SettingsSource

	// Locks guards against concurrent dispatch runs for one campaign;
	// nil disables locking (single-process deployments, tests).
	Locks Locker
	// Audit receives best-effort batch events; nil disables auditing.
	Audit *audit.Service

	clock     func() time.Time
	bulkPause time.Duration
}

func NewEngine(campaignSrc CampaignSource, callRepo calls.Repository, prov provisioning.Client, settingsSrc SettingsSource) *Engine {
	return &Engine{
		campaigns: campaignSrc,
		calls:     callRepo,
		prov:      prov,
		settings:  settingsSrc,
		clock:     time.Now,
		bulkPause: bulkDialPause,
	}
}

// DialSuccess is one successfully dispatched contact.
type DialSuccess struct {
	ContactID string           `json:"contact_id"`
	CallID    string           `json:"call_id"`
	Phone     string           `json:"phone"`
	Status    calls.CallStatus `json:"status"`
}

// DialFailure is one contact whose dispatch failed. The call row (when the
// write-ahead insert succeeded) is moved to FAILED, keeping the contact
// eligible for a later retry.
type DialFailure struct {
	Phone string `json:"phone"`
	Error string `json:"error"`
}

// Result aggregates one batch. Partial failures never surface as an error;
// they are itemized in Errors.
type Result struct {
	CampaignID string        `json:"campaign_id"`
	Dispatched int           `json:"dispatched"`
	Completed  bool          `json:"completed"`
	Results    []DialSuccess `json:"results"`
	Errors     []DialFailure `json:"errors"`
}

// sessionMetadata is the contract handed to the voice agent through the
// session. Field names must match what the agent parses.
type sessionMetadata struct {
	CallID      string         `json:"call_id"`
	PhoneNumber string         `json:"phone_number"`
	CampaignID  string         `json:"campaign_id"`
	UserPrompt  string         `json:"user_prompt"`
	UserData    map[string]any `json:"user_data,omitempty"`
}

// DispatchBatch provisions calls for up to batchSize contacts of the
// campaign that have no dispatched, active or completed call yet. Repeated
// invocations are idempotent: a contact is never double-dialed, but contacts
// whose only calls failed are retried.
func (e *Engine) DispatchBatch(ctx context.Context, campaignID string, batchSize int) (Result, error) {
	log := logger.From(ctx)

	if campaignID == "" {
		return Result{}, fmt.Errorf("%w: campaign id required", ErrInvalidArgument)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	trunkID, err := e.settings.Get(ctx, settings.KeySIPTrunkID, "")
	if err != nil {
		return Result{}, err
	}
	if trunkID == "" {
		return Result{}, ErrTrunkNotConfigured
	}

	if e.Locks != nil {
		release, ok, err := e.Locks.Acquire(ctx, campaignID)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return Result{}, ErrInProgress
		}
		defer release()
	}

	detail, err := e.campaigns.GetCampaignDetail(ctx, campaignID)
	if err != nil {
		return Result{}, err
	}

	// Eligibility: no call in a progressed state. Contact order is ingestion
	// order, so truncation is stable across retries.
	pending := make([]campaigns.ContactWithCalls, 0, batchSize)
	for _, ct := range detail.Contacts {
		if calls.AnyProgressed(ct.Calls) {
			continue
		}
		pending = append(pending, ct)
		if len(pending) == batchSize {
			break
		}
	}

	out := Result{CampaignID: campaignID}
	if len(pending) == 0 {
		out.Completed = true
		return out, nil
	}

	prompt := detail.PromptTemplate
	if prompt == "" {
		if prompt, err = e.settings.Get(ctx, settings.KeySystemPrompt, ""); err != nil {
			return Result{}, err
		}
	}

	for _, ct := range pending {
		success, failure := e.dispatchContact(ctx, detail.Campaign, ct, trunkID, prompt)
		if failure != nil {
			log.Warn("contact dispatch failed", "campaign_id", campaignID, "phone", failure.Phone, "err", failure.Error)
			out.Errors = append(out.Errors, *failure)
			continue
		}
		out.Results = append(out.Results, *success)
	}
	out.Dispatched = len(out.Results)

	if err := e.Audit.LogDispatchBatch(ctx, campaignID,
		fmt.Sprintf("dispatched %d of %d pending contacts (%d failed)", out.Dispatched, len(pending), len(out.Errors))); err != nil {
		log.Warn("audit append failed", "err", err)
	}
	return out, nil
}

// dispatchContact runs the write-ahead create / provision / dial sequence for
// one contact. Failures are isolated: the returned DialFailure is reported in
// the batch result and never aborts sibling contacts.
func (e *Engine) dispatchContact(ctx context.Context, camp campaigns.Campaign, ct campaigns.ContactWithCalls, trunkID, prompt string) (*DialSuccess, *DialFailure) {
	now := e.clock().UTC()
	call := calls.Call{
		ID:         uuid.NewString(),
		ContactID:  ct.ID,
		CampaignID: camp.ID,
		Direction:  calls.DirectionOutbound,
		Status:     calls.CallStatusDispatched,
		CreatedAt:  now,
	}

	// Write-ahead: the record exists before the external dial so a
	// provisioning failure still leaves an auditable trace.
	if err := e.calls.Create(ctx, call); err != nil {
		return nil, &DialFailure{Phone: ct.Phone, Error: err.Error()}
	}

	md, err := json.Marshal(sessionMetadata{
		CallID:      call.ID,
		PhoneNumber: ct.Phone,
		CampaignID:  camp.ID,
		UserPrompt:  prompt,
		UserData:    ct.Attributes,
	})
	if err != nil {
		e.markFailed(ctx, call.ID)
		return nil, &DialFailure{Phone: ct.Phone, Error: err.Error()}
	}

	session := SessionName(camp.ID, call.ID)
	if _, err := e.prov.CreateSession(ctx, provisioning.CreateSessionRequest{
		Name:                session,
		Metadata:            string(md),
		EmptyTimeoutSeconds: sessionEmptyTimeoutSeconds,
	}); err != nil {
		e.markFailed(ctx, call.ID)
		return nil, &DialFailure{Phone: ct.Phone, Error: err.Error()}
	}

	name := ct.Name
	if name == "" {
		name = "Customer"
	}
	if _, err := e.prov.DialOut(ctx, provisioning.DialOutRequest{
		TrunkID:             trunkID,
		PhoneNumber:         ct.Phone,
		SessionName:         session,
		ParticipantIdentity: "sip_" + ct.Phone,
		ParticipantName:     name,
	}); err != nil {
		e.markFailed(ctx, call.ID)
		return nil, &DialFailure{Phone: ct.Phone, Error: err.Error()}
	}

	return &DialSuccess{ContactID: ct.ID, CallID: call.ID, Phone: ct.Phone, Status: call.Status}, nil
}

// markFailed moves a write-ahead record to FAILED after a dispatch step
// failed, restoring the contact's batch eligibility. Best-effort: the row is
// never rolled back and a status-update failure only logs.
func (e *Engine) markFailed(ctx context.Context, callID string) {
	if err := e.calls.UpdateStatus(ctx, callID, calls.CallStatusFailed); err != nil {
		logger.From(ctx).Error("failed to mark call failed", "call_id", callID, "err", err)
	}
}

// SessionName derives the deterministic session identifier for a call, built
// from the campaign and call ids to aid log correlation.
func SessionName(campaignID, callID string) string {
	suffix := campaignID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return "camp-" + suffix + "-" + callID
}
