package campaigns

import (
	"context"
	"errors"
	"testing"
	"time"

	"dialer-platform/internal/audit"
	"dialer-platform/internal/calls"
)

func newTestService() (*Service, *MemoryRepo, *calls.MemoryRepo) {
	repo := NewMemoryRepo()
	callRepo := calls.NewMemoryRepo()
	svc := NewService(repo, callRepo)
	svc.clock = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return svc, repo, callRepo
}

func TestCreate_SkipsContactsWithoutPhone(t *testing.T) {
	svc, repo, _ := newTestService()

	camp, n, err := svc.Create(context.Background(), CreateRequest{
		Name: "spring promo",
		Contacts: []ContactInput{
			{Phone: "+15550001", Name: "A"},
			{Name: "no phone"},
			{Phone: "+15550002", Name: "B", Attributes: map[string]any{"city": "Pune"}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 ingested contacts, got %d", n)
	}
	if camp.Status != CampaignStatusDraft {
		t.Fatalf("expected DRAFT, got %s", camp.Status)
	}
	if len(repo.Contacts) != 2 {
		t.Fatalf("expected 2 stored contacts, got %d", len(repo.Contacts))
	}
	for _, ct := range repo.Contacts {
		if ct.CampaignID != camp.ID {
			t.Fatalf("contact not linked to campaign: %+v", ct)
		}
	}
}

func TestCreate_AppendsAuditEvent(t *testing.T) {
	svc, _, _ := newTestService()
	events := audit.NewMemoryRepo()
	svc.Audit = audit.NewService(events)

	camp, _, err := svc.Create(context.Background(), CreateRequest{
		Contacts: []ContactInput{{Phone: "+15550001"}},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(events.Events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(events.Events))
	}
	ev := events.Events[0]
	if ev.Type != audit.EventTypeCampaignCreated || ev.CampaignID != camp.ID {
		t.Fatalf("unexpected audit event: %+v", ev)
	}
}

func TestCreate_RejectsAllPhoneless(t *testing.T) {
	svc, _, _ := newTestService()

	_, _, err := svc.Create(context.Background(), CreateRequest{Contacts: []ContactInput{{Name: "x"}}})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	_, _, err = svc.Create(context.Background(), CreateRequest{})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty contacts, got %v", err)
	}
}

// failingRepo rejects the combined write, standing in for a storage outage
// mid-ingestion.
type failingRepo struct {
	*MemoryRepo
}

func (r *failingRepo) CreateCampaignWithContacts(ctx context.Context, c Campaign, contacts []Contact) error {
	return errors.New("storage down")
}

func TestCreate_LeavesNothingBehindOnStorageFailure(t *testing.T) {
	repo := &failingRepo{MemoryRepo: NewMemoryRepo()}
	svc := NewService(repo, calls.NewMemoryRepo())

	_, _, err := svc.Create(context.Background(), CreateRequest{
		Contacts: []ContactInput{{Phone: "+15550001"}},
	})
	if err == nil {
		t.Fatal("expected storage error")
	}
	if len(repo.Campaigns) != 0 || len(repo.Contacts) != 0 {
		t.Fatalf("orphan rows after failed create: %d campaigns, %d contacts",
			len(repo.Campaigns), len(repo.Contacts))
	}
}

func TestGet_ComputesStats(t *testing.T) {
	svc, repo, callRepo := newTestService()
	now := time.Unix(1700000000, 0).UTC()

	repo.Campaigns = []Campaign{{ID: "camp", Name: "c", Status: CampaignStatusRunning, CreatedAt: now}}
	repo.Contacts = []Contact{
		{ID: "ct1", CampaignID: "camp", Phone: "+1111", CreatedAt: now},
		{ID: "ct2", CampaignID: "camp", Phone: "+2222", CreatedAt: now},
		{ID: "ct3", CampaignID: "camp", Phone: "+3333", CreatedAt: now},
	}
	repo.CallsByContact["ct1"] = []calls.Call{{ID: "c1", ContactID: "ct1", CampaignID: "camp", Status: calls.CallStatusCompleted, CreatedAt: now}}
	repo.CallsByContact["ct2"] = []calls.Call{{ID: "c2", ContactID: "ct2", CampaignID: "camp", Status: calls.CallStatusDispatched, CreatedAt: now}}
	callRepo.Calls = []calls.Call{
		{ID: "c1", ContactID: "ct1", CampaignID: "camp", Status: calls.CallStatusCompleted, CreatedAt: now},
		{ID: "c2", ContactID: "ct2", CampaignID: "camp", Status: calls.CallStatusDispatched, CreatedAt: now},
	}

	out, err := svc.Get(context.Background(), "camp")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Stats.TotalContacts != 3 || out.Stats.Completed != 1 || out.Stats.Active != 1 || out.Stats.Pending != 1 {
		t.Fatalf("unexpected stats: %+v", out.Stats)
	}
	if len(out.RecentCalls) != 2 {
		t.Fatalf("expected 2 recent calls, got %d", len(out.RecentCalls))
	}
}

func TestGet_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
