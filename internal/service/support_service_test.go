package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/spec-kit/marketplace-service/internal/domain"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

func openTicket(t *testing.T, env *testEnv, creator *domain.User) *domain.SupportTicket {
	t.Helper()
	ticket, err := env.support.CreateTicket(context.Background(), creator, TicketCreateInput{
		Subject:     "Refund missing",
		Description: "I was charged twice",
	})
	if err != nil {
		t.Fatalf("CreateTicket() error = %v", err)
	}
	return ticket
}

func TestCreateTicket_Defaults(t *testing.T) {
	env := newTestEnv()
	alice := seedUser(t, env.store, "alice", domain.RoleUser)
	ticket := openTicket(t, env, alice)

	if ticket.Status != domain.TicketStatusOpen {
		t.Errorf("Status = %s, want OPEN", ticket.Status)
	}
	if ticket.AssignedTo != nil {
		t.Errorf("AssignedTo = %v, want nil", *ticket.AssignedTo)
	}
	if ticket.Priority != domain.TicketPriorityMedium || ticket.Category != "general" {
		t.Errorf("Priority/Category = %s/%s, want MEDIUM/general", ticket.Priority, ticket.Category)
	}

	_, err := env.support.CreateTicket(context.Background(), alice, TicketCreateInput{Subject: " ", Description: "x"})
	if !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Errorf("CreateTicket(blank subject) error = %v, want validation", err)
	}
}

func TestClaimTicket_ConcurrentClaimsHaveSingleWinner(t *testing.T) {
	env := newTestEnv()
	creator := seedUser(t, env.store, "creator", domain.RoleUser)
	ticket := openTicket(t, env, creator)

	const claimers = 25
	staff := make([]*domain.User, claimers)
	for i := range staff {
		staff[i] = seedUser(t, env.store, fmt.Sprintf("agent%d", i), domain.RoleSupport)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []string
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for _, agent := range staff {
		wg.Add(1)
		go func(agent *domain.User) {
			defer wg.Done()
			<-start
			_, err := env.support.ClaimTicket(context.Background(), agent, ticket.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, agent.ID)
			case apperrors.IsCode(err, "CONFLICT"):
				conflicts++
			default:
				others = append(others, err)
			}
		}(agent)
	}
	close(start)
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if len(winners) != 1 || conflicts != claimers-1 {
		t.Fatalf("winners = %d, conflicts = %d, want 1 and %d", len(winners), conflicts, claimers-1)
	}
	stored, err := env.store.Tickets().GetByID(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.AssignedTo == nil || *stored.AssignedTo != winners[0] {
		t.Errorf("AssignedTo = %v, want %s", stored.AssignedTo, winners[0])
	}
	if stored.Status != domain.TicketStatusAssigned {
		t.Errorf("Status = %s, want ASSIGNED", stored.Status)
	}
}

func TestClaimTicket_SecondClaimConflictsAndKeepsFirst(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	creator := seedUser(t, env.store, "creator", domain.RoleUser)
	b := seedUser(t, env.store, "bella", domain.RoleSupport)
	c := seedUser(t, env.store, "carl", domain.RoleAdmin)
	ticket := openTicket(t, env, creator)

	claimed, err := env.support.ClaimTicket(ctx, b, ticket.ID)
	if err != nil {
		t.Fatalf("ClaimTicket(B) error = %v", err)
	}
	if claimed.Status != domain.TicketStatusAssigned || claimed.AssignedTo == nil || *claimed.AssignedTo != b.ID {
		t.Fatalf("after B claim: status %s assignee %v, want ASSIGNED to B", claimed.Status, claimed.AssignedTo)
	}

	if _, err := env.support.ClaimTicket(ctx, c, ticket.ID); !apperrors.IsCode(err, "CONFLICT") {
		t.Fatalf("ClaimTicket(C) error = %v, want conflict", err)
	}
	stored, _ := env.store.Tickets().GetByID(ctx, ticket.ID)
	if stored.AssignedTo == nil || *stored.AssignedTo != b.ID {
		t.Errorf("AssignedTo = %v, want B", stored.AssignedTo)
	}

	notes := env.notificationsFor(t, creator.ID)
	if len(notes) != 1 || notes[0].Type != domain.NotificationTicketUpdate {
		t.Errorf("creator notifications = %+v, want one ticket_update", notes)
	}
	entries := env.store.AuditEntries()
	if len(entries) != 1 || entries[0].Action != domain.AuditTicketClaimed {
		t.Errorf("audit entries = %+v, want one TICKET_CLAIMED", entries)
	}
}

func TestClaimTicket_Errors(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	user := seedUser(t, env.store, "plain", domain.RoleUser)
	agent := seedUser(t, env.store, "agent", domain.RoleSupport)
	ticket := openTicket(t, env, user)

	tests := []struct {
		name     string
		actor    *domain.User
		ticketID string
		wantCode string
	}{
		{"regular user", user, ticket.ID, "FORBIDDEN"},
		{"missing ticket", agent, "00000000-0000-0000-0000-000000000000", "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.support.ClaimTicket(ctx, tt.actor, tt.ticketID)
			if !apperrors.IsCode(err, tt.wantCode) {
				t.Errorf("ClaimTicket() error = %v, want %s", err, tt.wantCode)
			}
		})
	}
}

func TestForceAssign(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	creator := seedUser(t, env.store, "creator", domain.RoleUser)
	agent := seedUser(t, env.store, "agent", domain.RoleSupport)
	other := seedUser(t, env.store, "other", domain.RoleSupport)
	admin := seedUser(t, env.store, "boss", domain.RoleAdmin)
	ticket := openTicket(t, env, creator)

	if _, err := env.support.ClaimTicket(ctx, agent, ticket.ID); err != nil {
		t.Fatalf("ClaimTicket() error = %v", err)
	}
	forced, err := env.support.ForceAssign(ctx, admin, ticket.ID, other.ID)
	if err != nil {
		t.Fatalf("ForceAssign() error = %v", err)
	}
	if forced.AssignedTo == nil || *forced.AssignedTo != other.ID {
		t.Errorf("AssignedTo = %v, want %s", forced.AssignedTo, other.ID)
	}

	// a second forced assignment still overwrites
	forced, err = env.support.ForceAssign(ctx, admin, ticket.ID, admin.ID)
	if err != nil {
		t.Fatalf("ForceAssign(admin) error = %v", err)
	}
	if *forced.AssignedTo != admin.ID {
		t.Errorf("AssignedTo = %s, want %s", *forced.AssignedTo, admin.ID)
	}

	tests := []struct {
		name       string
		actor      *domain.User
		assigneeID string
		wantCode   string
	}{
		{"support cannot force", agent, other.ID, "FORBIDDEN"},
		{"assignee without staff role", admin, creator.ID, "VALIDATION_FAILED"},
		{"unknown assignee", admin, "00000000-0000-0000-0000-000000000000", "VALIDATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.support.ForceAssign(ctx, tt.actor, ticket.ID, tt.assigneeID)
			if !apperrors.IsCode(err, tt.wantCode) {
				t.Errorf("ForceAssign() error = %v, want %s", err, tt.wantCode)
			}
		})
	}
}

func TestUpdateTicket_StatusTransitions(t *testing.T) {
	status := func(s domain.TicketStatus) *domain.TicketStatus { return &s }
	ctx := context.Background()

	tests := []struct {
		name       string
		claim      bool
		steps      []domain.TicketStatus
		next       domain.TicketStatus
		wantCode   string
		wantStatus domain.TicketStatus
	}{
		{name: "open to closed", next: domain.TicketStatusClosed, wantStatus: domain.TicketStatusClosed},
		{name: "open to assigned is claim only", next: domain.TicketStatusAssigned, wantCode: "VALIDATION_FAILED"},
		{name: "open to resolved", next: domain.TicketStatusResolved, wantCode: "VALIDATION_FAILED"},
		{name: "assigned to resolved", claim: true, next: domain.TicketStatusResolved, wantStatus: domain.TicketStatusResolved},
		{name: "assigned back to open", claim: true, next: domain.TicketStatusOpen, wantStatus: domain.TicketStatusOpen},
		{name: "resolved reopened", claim: true, steps: []domain.TicketStatus{domain.TicketStatusResolved}, next: domain.TicketStatusAssigned, wantStatus: domain.TicketStatusAssigned},
		{name: "closed is final", claim: true, steps: []domain.TicketStatus{domain.TicketStatusClosed}, next: domain.TicketStatusOpen, wantCode: "CONFLICT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			creator := seedUser(t, env.store, "creator", domain.RoleUser)
			agent := seedUser(t, env.store, "agent", domain.RoleSupport)
			ticket := openTicket(t, env, creator)
			if tt.claim {
				if _, err := env.support.ClaimTicket(ctx, agent, ticket.ID); err != nil {
					t.Fatalf("ClaimTicket() error = %v", err)
				}
			}
			for _, step := range tt.steps {
				if _, err := env.support.UpdateTicket(ctx, agent, ticket.ID, TicketUpdate{Status: status(step)}); err != nil {
					t.Fatalf("step to %s error = %v", step, err)
				}
			}

			got, err := env.support.UpdateTicket(ctx, agent, ticket.ID, TicketUpdate{Status: status(tt.next)})
			if tt.wantCode != "" {
				if !apperrors.IsCode(err, tt.wantCode) {
					t.Fatalf("UpdateTicket() error = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateTicket() error = %v", err)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", got.Status, tt.wantStatus)
			}
			if tt.wantStatus == domain.TicketStatusOpen && got.AssignedTo != nil {
				t.Errorf("AssignedTo = %v, want cleared on reopen", *got.AssignedTo)
			}
		})
	}
}

func TestUpdateTicket_Permissions(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	creator := seedUser(t, env.store, "creator", domain.RoleUser)
	stranger := seedUser(t, env.store, "stranger", domain.RoleUser)
	agent := seedUser(t, env.store, "agent", domain.RoleSupport)
	ticket := openTicket(t, env, creator)

	subject := "Refund still missing"
	updated, err := env.support.UpdateTicket(ctx, creator, ticket.ID, TicketUpdate{Subject: &subject})
	if err != nil {
		t.Fatalf("creator edit error = %v", err)
	}
	if updated.Subject != subject {
		t.Errorf("Subject = %q, want %q", updated.Subject, subject)
	}

	closed := domain.TicketStatusClosed
	if _, err := env.support.UpdateTicket(ctx, creator, ticket.ID, TicketUpdate{Status: &closed}); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Errorf("creator status edit error = %v, want forbidden", err)
	}
	if _, err := env.support.UpdateTicket(ctx, stranger, ticket.ID, TicketUpdate{Subject: &subject}); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Errorf("stranger edit error = %v, want forbidden", err)
	}
	if _, err := env.support.UpdateTicket(ctx, agent, ticket.ID, TicketUpdate{Subject: &subject}); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Errorf("staff content edit error = %v, want forbidden", err)
	}
	high := domain.TicketPriorityHigh
	if got, err := env.support.UpdateTicket(ctx, agent, ticket.ID, TicketUpdate{Priority: &high}); err != nil || got.Priority != high {
		t.Errorf("staff priority edit = %v, %v; want HIGH", got, err)
	}
}

func TestGetTicket_Visibility(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	creator := seedUser(t, env.store, "creator", domain.RoleUser)
	stranger := seedUser(t, env.store, "stranger", domain.RoleUser)
	agent := seedUser(t, env.store, "agent", domain.RoleSupport)
	private := openTicket(t, env, creator)
	public, err := env.support.CreateTicket(ctx, creator, TicketCreateInput{Subject: "FAQ", Description: "shared", Public: true})
	if err != nil {
		t.Fatalf("CreateTicket(public) error = %v", err)
	}

	tests := []struct {
		name   string
		viewer *domain.User
		ticket string
		wantOK bool
	}{
		{"creator sees private", creator, private.ID, true},
		{"staff sees private", agent, private.ID, true},
		{"stranger denied private", stranger, private.ID, false},
		{"stranger sees public", stranger, public.ID, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.support.GetTicket(ctx, tt.viewer, tt.ticket)
			if (err == nil) != tt.wantOK {
				t.Errorf("GetTicket() error = %v, want ok=%v", err, tt.wantOK)
			}
		})
	}
}

func TestAddComment_NotifiesOtherSide(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	creator := seedUser(t, env.store, "creator", domain.RoleUser)
	agent := seedUser(t, env.store, "agent", domain.RoleSupport)
	ticket := openTicket(t, env, creator)
	if _, err := env.support.ClaimTicket(ctx, agent, ticket.ID); err != nil {
		t.Fatalf("ClaimTicket() error = %v", err)
	}

	if _, err := env.support.AddComment(ctx, creator, ticket.ID, "any news?"); err != nil {
		t.Fatalf("AddComment(creator) error = %v", err)
	}
	if _, err := env.support.AddComment(ctx, agent, ticket.ID, "looking into it"); err != nil {
		t.Fatalf("AddComment(agent) error = %v", err)
	}

	agentNotes := env.notificationsFor(t, agent.ID)
	if len(agentNotes) != 1 || agentNotes[0].Type != domain.NotificationTicketComment {
		t.Errorf("agent notifications = %+v, want one ticket_comment", agentNotes)
	}
	var comments int
	for _, n := range env.notificationsFor(t, creator.ID) {
		if n.Type == domain.NotificationTicketComment {
			comments++
		}
	}
	if comments != 1 {
		t.Errorf("creator comment notifications = %d, want 1", comments)
	}

	detail, err := env.support.GetTicket(ctx, creator, ticket.ID)
	if err != nil {
		t.Fatalf("GetTicket() error = %v", err)
	}
	if len(detail.Comments) != 2 || detail.Comments[0].Message != "any news?" {
		t.Errorf("comments = %+v, want two in order", detail.Comments)
	}
}

func TestListTickets_Scopes(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	creator := seedUser(t, env.store, "creator", domain.RoleUser)
	agent := seedUser(t, env.store, "agent", domain.RoleSupport)
	first := openTicket(t, env, creator)
	openTicket(t, env, creator)
	if _, err := env.support.ClaimTicket(ctx, agent, first.ID); err != nil {
		t.Fatalf("ClaimTicket() error = %v", err)
	}

	tests := []struct {
		name   string
		viewer *domain.User
		scope  TicketScope
		want   int
		code   string
	}{
		{"mine", creator, ScopeMine, 2, ""},
		{"assigned", agent, ScopeAssigned, 1, ""},
		{"queue", agent, ScopeQueue, 1, ""},
		{"queue needs staff", creator, ScopeQueue, 0, "FORBIDDEN"},
		{"all", agent, ScopeAll, 2, ""},
		{"public", creator, ScopePublic, 0, ""},
		{"bogus", creator, TicketScope("bogus"), 0, "VALIDATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.support.ListTickets(ctx, tt.viewer, tt.scope, TicketListFilter{})
			if tt.code != "" {
				if !apperrors.IsCode(err, tt.code) {
					t.Errorf("ListTickets() error = %v, want %s", err, tt.code)
				}
				return
			}
			if err != nil {
				t.Fatalf("ListTickets() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}
