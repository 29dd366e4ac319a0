package bounty

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/bounty-board/internal/events"
	"github.com/terra-clan/bounty-board/internal/models"
	"github.com/terra-clan/bounty-board/internal/storage"
)

func TestService_BountyLifecycleScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	b := env.createBounty(t, "2025-01-10")

	env.clock.Set(time.Date(2025, 1, 10, 20, 0, 0, 0, time.UTC))
	view, err := env.service.GetBountyWithStatus(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, view.Status)
	assert.True(t, decimal.NewFromInt(150).Equal(view.TotalPrize))
	assert.Nil(t, view.Winners)

	first, created, err := env.service.SubmitOrUpdateEntry(ctx, "W1", models.SubmitEntryRequest{
		BountyID:         b.ID,
		SubmissionFields: models.SubmissionFields{TwitterHandle: "@a"},
	})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := env.service.SubmitOrUpdateEntry(ctx, "W1", models.SubmitEntryRequest{
		BountyID:         b.ID,
		SubmissionFields: models.SubmissionFields{TwitterHandle: "@b"},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	rows, err := env.repo.ListSubmissionsByBounty(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "@b", rows[0].TwitterHandle)

	env.clock.Set(time.Date(2025, 1, 11, 0, 1, 0, 0, time.UTC))
	view, err = env.service.GetBountyWithStatus(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEnded, view.Status)
	assert.Equal(t, 1, view.SubmissionsTotal)

	first1 := models.WinnerAssignment{first.ID: "1st"}
	view, err = env.service.AnnounceWinners(ctx, env.admin, b.ID, first1)
	require.NoError(t, err)
	require.Len(t, view.Winners, 1)
	assert.Equal(t, "1st", view.Winners[0].Position)
	assert.Equal(t, 1, view.Winners[0].PositionRank)
	assert.Equal(t, "@b", view.Winners[0].Submission.TwitterHandle)

	_, err = env.service.AnnounceWinners(ctx, env.admin, b.ID, models.WinnerAssignment{first.ID: "2nd"})
	assert.ErrorIs(t, err, ErrAlreadyAnnounced)
	assert.Equal(t, KindAlreadyAnnounced, KindOf(err))

	stored, err := env.repo.GetBounty(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, first1, stored.Assignment)

	assert.Equal(t, []string{
		events.TypeBountyCreated,
		events.TypeSubmissionCreated,
		events.TypeSubmissionUpdated,
		events.TypeWinnersAnnounced,
	}, env.events.Types())
}

func TestService_SubmitOrUpdateEntry(t *testing.T) {
	t.Run("rejects after the deadline", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBounty(t, "2025-01-10")
		env.submit(t, b.ID, "W1", "@a")

		env.clock.Set(time.Date(2025, 1, 11, 0, 0, 0, 1e6, time.UTC))

		_, _, err := env.service.SubmitOrUpdateEntry(context.Background(), "W1", models.SubmitEntryRequest{
			BountyID:         b.ID,
			SubmissionFields: models.SubmissionFields{TwitterHandle: "@late"},
		})
		assert.ErrorIs(t, err, ErrValidation)

		_, _, err = env.service.SubmitOrUpdateEntry(context.Background(), "W2", models.SubmitEntryRequest{
			BountyID:         b.ID,
			SubmissionFields: models.SubmissionFields{TwitterHandle: "@new"},
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("accepts on the last instant of the deadline day", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBounty(t, "2025-01-10")

		env.clock.Set(time.Date(2025, 1, 10, 23, 59, 59, 999e6, time.UTC))
		env.submit(t, b.ID, "W1", "@a")
	})

	t.Run("stamps updates with the window clock", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBounty(t, "2025-01-10")
		first := env.submit(t, b.ID, "W1", "@a")

		edited := time.Date(2025, 1, 7, 9, 30, 0, 0, time.UTC)
		env.clock.Set(edited)
		updated := env.submit(t, b.ID, "W1", "@b")

		assert.Equal(t, first.ID, updated.ID)
		assert.True(t, updated.UpdatedAt.Equal(edited), "updated_at %v", updated.UpdatedAt)
		assert.True(t, updated.CreatedAt.Equal(first.CreatedAt))
	})

	t.Run("requires a handle", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBounty(t, "2025-01-10")

		_, _, err := env.service.SubmitOrUpdateEntry(context.Background(), "W1", models.SubmitEntryRequest{
			BountyID:         b.ID,
			SubmissionFields: models.SubmissionFields{TwitterHandle: "   "},
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("requires an identity", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBounty(t, "2025-01-10")

		_, _, err := env.service.SubmitOrUpdateEntry(context.Background(), "", models.SubmitEntryRequest{
			BountyID:         b.ID,
			SubmissionFields: models.SubmissionFields{TwitterHandle: "@a"},
		})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("unknown bounty", func(t *testing.T) {
		env := newTestEnv(t)

		_, _, err := env.service.SubmitOrUpdateEntry(context.Background(), "W1", models.SubmitEntryRequest{
			BountyID:         "missing",
			SubmissionFields: models.SubmissionFields{TwitterHandle: "@a"},
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("wallets are independent", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBounty(t, "2025-01-10")

		a := env.submit(t, b.ID, "W1", "@a")
		other := env.submit(t, b.ID, "W2", "@b")
		assert.NotEqual(t, a.ID, other.ID)

		own, err := env.service.ListSubmissionForWallet(context.Background(), b.ID, "W2")
		require.NoError(t, err)
		assert.Equal(t, "@b", own.TwitterHandle)

		none, err := env.service.ListSubmissionForWallet(context.Background(), b.ID, "W3")
		require.NoError(t, err)
		assert.Nil(t, none)
	})
}

// racyRepository hides existing submissions from the first lookups, the way a
// concurrent first entry from the same wallet would look
type racyRepository struct {
	*storage.MemoryRepository
	misses int
}

func (r *racyRepository) GetSubmission(ctx context.Context, bountyID, wallet string) (*models.Submission, error) {
	if r.misses > 0 {
		r.misses--
		return nil, storage.ErrNotFound
	}
	return r.MemoryRepository.GetSubmission(ctx, bountyID, wallet)
}

func TestService_DuplicateEntryFallsBackToUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createBounty(t, "2025-01-10")
	original := env.submit(t, b.ID, "W1", "@a")

	racy := &racyRepository{MemoryRepository: env.repo, misses: 1}
	svc := NewService(racy, env.service.Window(), adminSet{env.admin: true})

	sub, created, err := svc.SubmitOrUpdateEntry(ctx, "W1", models.SubmitEntryRequest{
		BountyID:         b.ID,
		SubmissionFields: models.SubmissionFields{TwitterHandle: "@b"},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, original.ID, sub.ID)
	assert.Equal(t, "@b", sub.TwitterHandle)

	rows, err := env.repo.ListSubmissionsByBounty(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestService_SubmissionEventsCarryNoParticipantDetails(t *testing.T) {
	env := newTestEnv(t)
	b := env.createBounty(t, "2025-01-10")

	first := env.submit(t, b.ID, "W1", "@a")
	_, _, err := env.service.SubmitOrUpdateEntry(context.Background(), "W2", models.SubmitEntryRequest{
		BountyID:         b.ID,
		SubmissionFields: models.SubmissionFields{TwitterHandle: "@secret", ExtraInfo: "private note"},
	})
	require.NoError(t, err)
	env.submit(t, b.ID, "W1", "@a2")

	env.events.mu.Lock()
	published := append([]events.Event(nil), env.events.events...)
	env.events.mu.Unlock()

	var notices []models.SubmissionNotice
	for _, e := range published {
		if e.Type != events.TypeSubmissionCreated && e.Type != events.TypeSubmissionUpdated {
			continue
		}
		n, ok := e.Data.(models.SubmissionNotice)
		require.True(t, ok, "event %s carries %T", e.Type, e.Data)
		notices = append(notices, n)
	}

	require.Len(t, notices, 3)
	assert.Equal(t, models.SubmissionNotice{SubmissionID: first.ID, Created: true, SubmissionsTotal: 1}, notices[0])
	assert.True(t, notices[1].Created)
	assert.Equal(t, 2, notices[1].SubmissionsTotal)
	assert.Equal(t, models.SubmissionNotice{SubmissionID: first.ID, Created: false, SubmissionsTotal: 2}, notices[2])
}

func TestService_AnnounceWinners(t *testing.T) {
	ended := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)

	t.Run("requires the bounty to have ended", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBounty(t, "2025-01-10")
		s := env.submit(t, b.ID, "W1", "@a")

		_, err := env.service.AnnounceWinners(context.Background(), env.admin, b.ID, models.WinnerAssignment{s.ID: "1st"})
		assert.ErrorIs(t, err, ErrValidation)

		stored, err := env.repo.GetBounty(context.Background(), b.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsAnnounced())
	})

	t.Run("admin only", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBounty(t, "2025-01-10")
		s := env.submit(t, b.ID, "W1", "@a")
		env.clock.Set(ended)

		_, err := env.service.AnnounceWinners(context.Background(), "W1", b.ID, models.WinnerAssignment{s.ID: "1st"})
		assert.ErrorIs(t, err, ErrUnauthorized)

		_, err = env.service.AnnounceWinners(context.Background(), "", b.ID, models.WinnerAssignment{s.ID: "1st"})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("rejects malformed assignments", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBounty(t, "2025-01-10")
		env.clock.Set(ended)

		for name, assignment := range map[string]models.WinnerAssignment{
			"empty":       {},
			"blank id":    {" ": "1st"},
			"blank label": {"s1": ""},
		} {
			_, err := env.service.AnnounceWinners(context.Background(), env.admin, b.ID, assignment)
			assert.ErrorIs(t, err, ErrValidation, name)
		}
	})

	t.Run("unknown bounty", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.service.AnnounceWinners(context.Background(), env.admin, "missing", models.WinnerAssignment{"s": "1st"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("labels outside the prize structure are accepted by default", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBounty(t, "2025-01-10")
		s := env.submit(t, b.ID, "W1", "@a")
		env.clock.Set(ended)

		view, err := env.service.AnnounceWinners(context.Background(), env.admin, b.ID, models.WinnerAssignment{s.ID: "3rd"})
		require.NoError(t, err)
		require.Len(t, view.Winners, 1)
		assert.Equal(t, 3, view.Winners[0].PositionRank)
	})

	t.Run("strict labels reject unknown positions", func(t *testing.T) {
		env := newTestEnv(t, WithStrictLabels(true))
		b := env.createBounty(t, "2025-01-10")
		s := env.submit(t, b.ID, "W1", "@a")
		env.clock.Set(ended)

		_, err := env.service.AnnounceWinners(context.Background(), env.admin, b.ID, models.WinnerAssignment{s.ID: "3rd"})
		assert.ErrorIs(t, err, ErrValidation)

		_, err = env.service.AnnounceWinners(context.Background(), env.admin, b.ID, models.WinnerAssignment{s.ID: "1ST"})
		assert.NoError(t, err)
	})

	t.Run("concurrent announcements commit once", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBounty(t, "2025-01-10")
		s := env.submit(t, b.ID, "W1", "@a")
		env.clock.Set(ended)

		const callers = 10
		var wg sync.WaitGroup
		errs := make(chan error, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.service.AnnounceWinners(context.Background(), env.admin, b.ID, models.WinnerAssignment{s.ID: "1st"})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		succeeded := 0
		for err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, ErrAlreadyAnnounced)
		}
		assert.Equal(t, 1, succeeded)
	})
}

func TestService_ResolvedWinnersAreRanked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createBounty(t, "2025-01-10",
		models.Prize{Place: "1st", Prize: "100"},
		models.Prize{Place: "2nd", Prize: "50"},
		models.Prize{Place: "3rd", Prize: "25"},
		models.Prize{Place: "10th", Prize: "5"},
	)

	s1 := env.submit(t, b.ID, "W1", "@one")
	s2 := env.submit(t, b.ID, "W2", "@two")
	s3 := env.submit(t, b.ID, "W3", "@three")
	s4 := env.submit(t, b.ID, "W4", "@ten")
	s5 := env.submit(t, b.ID, "W5", "@honorable")
	env.clock.Set(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))

	assignment := models.WinnerAssignment{
		s4.ID: "10th",
		s5.ID: "Honorable mention",
		s3.ID: "3rd",
		s1.ID: "1st",
		s2.ID: "2nd",
	}
	assignment["deleted-elsewhere"] = "2nd"

	view, err := env.service.AnnounceWinners(ctx, env.admin, b.ID, assignment)
	require.NoError(t, err)

	type row struct {
		Position string
		Rank     int
		Handle   string
	}
	var got []row
	for _, w := range view.Winners {
		got = append(got, row{w.Position, w.PositionRank, w.Submission.TwitterHandle})
	}

	want := []row{
		{"1st", 1, "@one"},
		{"2nd", 2, "@two"},
		{"3rd", 3, "@three"},
		{"10th", 10, "@ten"},
		{"Honorable mention", 0, "@honorable"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("resolved winners mismatch (-want +got):\n%s", diff)
	}

	// reading again yields the same order
	again, err := env.service.GetBountyWithStatus(ctx, b.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(view.Winners, again.Winners, cmpopts.EquateApproxTime(time.Second)); diff != "" {
		t.Errorf("winners changed between reads (-first +second):\n%s", diff)
	}
}

func TestService_CreateBounty(t *testing.T) {
	valid := func() models.CreateBountyRequest {
		return models.CreateBountyRequest{
			Title:        "Thread contest",
			Description:  "Write a thread",
			Requirements: "Tag the project",
			EndDate:      "2025-01-10",
			Prizes:       []models.Prize{{Place: "1st", Prize: "100"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(r *models.CreateBountyRequest)
		wantErr error
	}{
		{name: "valid"},
		{name: "timestamp deadline", mutate: func(r *models.CreateBountyRequest) { r.EndDate = "2025-01-10T18:00:00Z" }},
		{name: "missing title", mutate: func(r *models.CreateBountyRequest) { r.Title = " " }, wantErr: ErrValidation},
		{name: "missing description", mutate: func(r *models.CreateBountyRequest) { r.Description = "" }, wantErr: ErrValidation},
		{name: "missing requirements", mutate: func(r *models.CreateBountyRequest) { r.Requirements = "" }, wantErr: ErrValidation},
		{name: "missing category", mutate: func(r *models.CreateBountyRequest) { r.CategoryID = "" }, wantErr: ErrValidation},
		{name: "unknown category", mutate: func(r *models.CreateBountyRequest) { r.CategoryID = "nope" }, wantErr: ErrValidation},
		{name: "missing end date", mutate: func(r *models.CreateBountyRequest) { r.EndDate = "" }, wantErr: ErrValidation},
		{name: "malformed end date", mutate: func(r *models.CreateBountyRequest) { r.EndDate = "next friday" }, wantErr: ErrValidation},
		{name: "no prizes", mutate: func(r *models.CreateBountyRequest) { r.Prizes = nil }, wantErr: ErrValidation},
		{name: "duplicate places", mutate: func(r *models.CreateBountyRequest) {
			r.Prizes = []models.Prize{{Place: "1st", Prize: "1"}, {Place: "1ST", Prize: "2"}}
		}, wantErr: ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			req := valid()
			req.CategoryID = env.category.ID
			if tt.mutate != nil {
				tt.mutate(&req)
			}

			b, err := env.service.CreateBounty(context.Background(), env.admin, req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, b.ID)
			assert.False(t, b.IsAnnounced())
		})
	}

	t.Run("non admin", func(t *testing.T) {
		env := newTestEnv(t)
		req := valid()
		req.CategoryID = env.category.ID

		_, err := env.service.CreateBounty(context.Background(), "W1", req)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestService_ListBounties(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	early := env.createBounty(t, "2025-01-06")
	env.clock.Set(env.clock.Now().Add(time.Minute))
	late := env.createBounty(t, "2025-03-01")
	env.submit(t, late.ID, "W1", "@a")
	env.submit(t, late.ID, "W2", "@b")

	env.clock.Set(time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC))

	all, err := env.service.ListBounties(ctx, models.BountyFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, late.ID, all[0].ID, "newest first")
	assert.Equal(t, 2, all[0].SubmissionsTotal)
	assert.Equal(t, env.category.Name, all[0].Category.Name)

	active, err := env.service.ListBounties(ctx, models.BountyFilter{Status: models.StatusActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, late.ID, active[0].ID)

	endedList, err := env.service.ListBounties(ctx, models.BountyFilter{Status: models.StatusEnded})
	require.NoError(t, err)
	require.Len(t, endedList, 1)
	assert.Equal(t, early.ID, endedList[0].ID)

	page, err := env.service.ListBounties(ctx, models.BountyFilter{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, early.ID, page[0].ID)

	_, err = env.service.ListBounties(ctx, models.BountyFilter{Status: "draft"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestService_DeleteBounty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createBounty(t, "2025-01-10")
	env.submit(t, b.ID, "W1", "@a")

	assert.ErrorIs(t, env.service.DeleteBounty(ctx, "W1", b.ID), ErrUnauthorized)
	require.NoError(t, env.service.DeleteBounty(ctx, env.admin, b.ID))

	_, err := env.service.GetBountyWithStatus(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, env.service.DeleteBounty(ctx, env.admin, b.ID), ErrNotFound)
}

func TestService_AdminReads(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createBounty(t, "2025-01-10")
	env.submit(t, b.ID, "W1", "@a")

	subs, err := env.service.ListSubmissions(ctx, env.admin, b.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	_, err = env.service.ListSubmissions(ctx, "W1", b.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.service.ListSubmissions(ctx, env.admin, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	isAdmin, err := env.service.IsAdmin(ctx, env.admin)
	require.NoError(t, err)
	assert.True(t, isAdmin)

	isAdmin, err = env.service.IsAdmin(ctx, "W1")
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

type failingAuthorizer struct{}

func (failingAuthorizer) IsAuthorizedAdmin(ctx context.Context, wallet string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestService_AdminLookupFailureIsTransport(t *testing.T) {
	env := newTestEnv(t)
	svc := NewService(env.repo, env.service.Window(), failingAuthorizer{})

	_, err := svc.ListSubmissions(context.Background(), env.admin, "any")
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, KindTransport, KindOf(err))
}
