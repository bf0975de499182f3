package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dialer-platform/internal/provisioning"
	"dialer-platform/internal/settings"

	"github.com/google/uuid"
)

const (
	// adHocEmptyTimeoutSeconds keeps one-off sessions alive a bit longer than
	// campaign sessions; there is no batch loop coming back for them.
	adHocEmptyTimeoutSeconds = 300

	// bulkDialPause paces sequential one-off dials so a long list does not
	// flood the provisioning API.
	bulkDialPause = 200 * time.Millisecond
)

// AdHocRequest places a single call outside any campaign. No call record is
// created: one-off dials are untracked by design and reconciliation will
// synthesize a record if an outcome event ever arrives for the number.
type AdHocRequest struct {
	PhoneNumber string `json:"phone_number"`
	Prompt      string `json:"prompt,omitempty"`
}

type AdHocResult struct {
	SessionName     string `json:"session_name"`
	ExternalCallRef string `json:"external_call_ref,omitempty"`
}

func (e *Engine) AdHocDial(ctx context.Context, req AdHocRequest) (AdHocResult, error) {
	if req.PhoneNumber == "" {
		return AdHocResult{}, fmt.Errorf("%w: phone number required", ErrInvalidArgument)
	}
	trunkID, prompt, err := e.adHocPreconditions(ctx, req.Prompt)
	if err != nil {
		return AdHocResult{}, err
	}
	return e.adHocDialOne(ctx, trunkID, req.PhoneNumber, prompt)
}

// BulkDialRequest dials a list of numbers outside any campaign, one by one.
type BulkDialRequest struct {
	PhoneNumbers []string `json:"numbers"`
	Prompt       string   `json:"prompt,omitempty"`
}

// BulkDialEntry is the outcome for one number in a bulk dial.
type BulkDialEntry struct {
	Phone           string `json:"phone"`
	SessionName     string `json:"session_name,omitempty"`
	ExternalCallRef string `json:"external_call_ref,omitempty"`
	Error           string `json:"error,omitempty"`
}

type BulkDialResult struct {
	Processed  int             `json:"processed"`
	Dispatched int             `json:"dispatched"`
	Entries    []BulkDialEntry `json:"entries"`
}

// AdHocDialMany places one call per number sequentially, pausing between
// dials. Numbers are isolated like batch contacts: a failed dial is reported
// in its entry and never aborts the rest of the list.
func (e *Engine) AdHocDialMany(ctx context.Context, req BulkDialRequest) (BulkDialResult, error) {
	if len(req.PhoneNumbers) == 0 {
		return BulkDialResult{}, fmt.Errorf("%w: phone number list required", ErrInvalidArgument)
	}
	trunkID, prompt, err := e.adHocPreconditions(ctx, req.Prompt)
	if err != nil {
		return BulkDialResult{}, err
	}

	out := BulkDialResult{Entries: make([]BulkDialEntry, 0, len(req.PhoneNumbers))}
	for i, phone := range req.PhoneNumbers {
		entry := BulkDialEntry{Phone: phone}
		if phone == "" {
			entry.Error = "phone number required"
		} else if res, err := e.adHocDialOne(ctx, trunkID, phone, prompt); err != nil {
			entry.Error = err.Error()
		} else {
			entry.SessionName = res.SessionName
			entry.ExternalCallRef = res.ExternalCallRef
			out.Dispatched++
		}
		out.Entries = append(out.Entries, entry)
		out.Processed++

		if i == len(req.PhoneNumbers)-1 || e.bulkPause <= 0 {
			continue
		}
		select {
		case <-time.After(e.bulkPause):
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
	return out, nil
}

// adHocPreconditions resolves the trunk and the effective prompt once per
// request.
func (e *Engine) adHocPreconditions(ctx context.Context, prompt string) (string, string, error) {
	trunkID, err := e.settings.Get(ctx, settings.KeySIPTrunkID, "")
	if err != nil {
		return "", "", err
	}
	if trunkID == "" {
		return "", "", ErrTrunkNotConfigured
	}
	if prompt == "" {
		if prompt, err = e.settings.Get(ctx, settings.KeySystemPrompt, ""); err != nil {
			return "", "", err
		}
	}
	return trunkID, prompt, nil
}

func (e *Engine) adHocDialOne(ctx context.Context, trunkID, phone, prompt string) (AdHocResult, error) {
	session := "call-" + strings.ReplaceAll(phone, "+", "") + "-" + uuid.NewString()[:8]
	md, err := json.Marshal(map[string]string{
		"phone_number": phone,
		"user_prompt":  prompt,
	})
	if err != nil {
		return AdHocResult{}, err
	}

	if _, err := e.prov.CreateSession(ctx, provisioning.CreateSessionRequest{
		Name:                session,
		Metadata:            string(md),
		EmptyTimeoutSeconds: adHocEmptyTimeoutSeconds,
	}); err != nil {
		return AdHocResult{}, err
	}

	res, err := e.prov.DialOut(ctx, provisioning.DialOutRequest{
		TrunkID:             trunkID,
		PhoneNumber:         phone,
		SessionName:         session,
		ParticipantIdentity: "sip_" + phone,
		ParticipantName:     "Customer",
	})
	if err != nil {
		return AdHocResult{}, err
	}
	return AdHocResult{SessionName: session, ExternalCallRef: res.ExternalCallRef}, nil
}
