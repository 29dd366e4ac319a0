package bounty

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/bounty-board/internal/events"
	"github.com/terra-clan/bounty-board/internal/models"
	"github.com/terra-clan/bounty-board/internal/storage"
	"github.com/terra-clan/bounty-board/internal/timewindow"
)

// adminSet is a static allow-list
type adminSet map[string]bool

func (a adminSet) IsAuthorizedAdmin(ctx context.Context, wallet string) (bool, error) {
	return a[wallet], nil
}

// fakeClock is a settable clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// recorder collects published events
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

type testEnv struct {
	repo     *storage.MemoryRepository
	clock    *fakeClock
	service  *Service
	events   *recorder
	admin    string
	category *models.Category
	faker    *gofakeit.Faker
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	faker := gofakeit.New(42)
	repo := storage.NewMemoryRepository()
	clock := &fakeClock{now: time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)}
	rec := &recorder{}
	admin := newWallet(faker)

	category := &models.Category{ID: faker.UUID(), Name: "Content"}
	require.NoError(t, repo.UpsertCategory(context.Background(), category))

	opts = append([]Option{WithPublisher(rec)}, opts...)
	svc := NewService(repo, timewindow.New(clock, time.UTC), adminSet{admin: true}, opts...)

	return &testEnv{
		repo:     repo,
		clock:    clock,
		service:  svc,
		events:   rec,
		admin:    admin,
		category: category,
		faker:    faker,
	}
}

// createBounty publishes a bounty ending on endDate
func (e *testEnv) createBounty(t *testing.T, endDate string, prizeList ...models.Prize) *models.Bounty {
	t.Helper()

	if len(prizeList) == 0 {
		prizeList = []models.Prize{{Place: "1st", Prize: "100"}, {Place: "2nd", Prize: "50"}}
	}

	b, err := e.service.CreateBounty(context.Background(), e.admin, models.CreateBountyRequest{
		Title:        e.faker.Sentence(4),
		Description:  e.faker.Paragraph(1, 2, 8, " "),
		Requirements: "Post a thread",
		CategoryID:   e.category.ID,
		EndDate:      endDate,
		Prizes:       prizeList,
	})
	require.NoError(t, err)
	return b
}

// submit enters wallet into a bounty with handle
func (e *testEnv) submit(t *testing.T, bountyID, wallet, handle string) *models.Submission {
	t.Helper()

	s, _, err := e.service.SubmitOrUpdateEntry(context.Background(), wallet, models.SubmitEntryRequest{
		BountyID:         bountyID,
		SubmissionFields: models.SubmissionFields{TwitterHandle: handle},
	})
	require.NoError(t, err)
	return s
}

func newWallet(f *gofakeit.Faker) string {
	return "terra1" + strings.ToLower(f.Lexify("??????????????????????????????????????"))
}
