package repository_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/persistence"
	"github.com/spec-kit/marketplace-service/internal/repository"
	"github.com/spec-kit/marketplace-service/migrations"
)

// testPool connects to TEST_POSTGRES_DSN and applies the schema. Tests that
// need it are skipped when the variable is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New() error = %v", err)
	}
	t.Cleanup(pool.Close)
	if err := persistence.RunMigrations(ctx, pool, migrations.FS, zap.NewNop()); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	return pool
}

func createUser(t *testing.T, pool *pgxpool.Pool, role domain.Role) *domain.User {
	t.Helper()
	suffix := uuid.NewString()[:12]
	user := &domain.User{
		Username:     "u_" + suffix,
		Email:        suffix + "@example.test",
		PasswordHash: "x",
		Role:         role,
	}
	if err := repository.NewUserRepository(pool).Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM users WHERE id=$1`, user.ID)
	})
	return user
}

func TestTicketRepository_ClaimRacePostgres(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	tickets := repository.NewTicketRepository(pool)

	creator := createUser(t, pool, domain.RoleUser)
	ticket := &domain.SupportTicket{
		Subject:     "Refund",
		Description: "Item never arrived",
		Category:    "general",
		Priority:    domain.TicketPriorityMedium,
		Status:      domain.TicketStatusOpen,
		CreatedBy:   creator.ID,
	}
	if err := tickets.Create(ctx, ticket); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	const agents = 12
	claimers := make([]*domain.User, agents)
	for i := range claimers {
		claimers[i] = createUser(t, pool, domain.RoleSupport)
	}

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		mu      sync.Mutex
		winners []string
		lost    int
	)
	for _, agent := range claimers {
		wg.Add(1)
		go func(agentID string) {
			defer wg.Done()
			<-start
			claimed, err := tickets.Claim(ctx, ticket.ID, agentID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, *claimed.AssignedTo)
			case errors.Is(err, pgx.ErrNoRows):
				lost++
			default:
				t.Errorf("Claim() unexpected error = %v", err)
			}
		}(agent.ID)
	}
	close(start)
	wg.Wait()

	if len(winners) != 1 || lost != agents-1 {
		t.Fatalf("winners = %d, conflicts = %d, want 1 and %d", len(winners), lost, agents-1)
	}
	stored, err := tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.AssignedTo == nil || *stored.AssignedTo != winners[0] {
		t.Errorf("assigned_to = %v, want %s", stored.AssignedTo, winners[0])
	}
	if stored.Status != domain.TicketStatusAssigned {
		t.Errorf("status = %s, want %s", stored.Status, domain.TicketStatusAssigned)
	}

	override := claimers[0]
	if override.ID == winners[0] {
		override = claimers[1]
	}
	forced, err := tickets.ForceAssign(ctx, ticket.ID, override.ID)
	if err != nil {
		t.Fatalf("ForceAssign() error = %v", err)
	}
	if forced.AssignedTo == nil || *forced.AssignedTo != override.ID {
		t.Errorf("ForceAssign assigned_to = %v, want %s", forced.AssignedTo, override.ID)
	}

	missing := uuid.NewString()
	if _, err := tickets.Claim(ctx, missing, override.ID); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("Claim(missing) error = %v, want pgx.ErrNoRows", err)
	}
	if exists, err := tickets.Exists(ctx, missing); err != nil || exists {
		t.Errorf("Exists(missing) = %v, %v, want false, nil", exists, err)
	}
}
