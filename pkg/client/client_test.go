package client

import (
	"bytes"
	"context"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/terra-clan/bounty-board/internal/api"
	"github.com/terra-clan/bounty-board/internal/auth"
	"github.com/terra-clan/bounty-board/internal/bounty"
	"github.com/terra-clan/bounty-board/internal/config"
	"github.com/terra-clan/bounty-board/internal/events"
	"github.com/terra-clan/bounty-board/internal/export"
	"github.com/terra-clan/bounty-board/internal/models"
	"github.com/terra-clan/bounty-board/internal/storage"
	"github.com/terra-clan/bounty-board/internal/timewindow"
)

const (
	adminWallet = "terra1adminxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"
	userWallet  = "terra1userxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"
)

type staticAdmins map[string]bool

func (a staticAdmins) IsAuthorizedAdmin(ctx context.Context, wallet string) (bool, error) {
	return a[wallet], nil
}

func setupServer(t *testing.T, now *atomic.Int64) (*httptest.Server, *auth.TokenVerifier) {
	t.Helper()

	repo := storage.NewMemoryRepository()
	require.NoError(t, repo.UpsertCategory(context.Background(), &models.Category{ID: "memes", Name: "Memes"}))
	require.NoError(t, repo.UpsertAdminWallet(context.Background(), &models.AdminWallet{WalletAddress: adminWallet}))

	window := timewindow.New(timewindow.ClockFunc(func() time.Time { return time.Unix(0, now.Load()).UTC() }), time.UTC)
	hub := events.NewHub(8)
	t.Cleanup(hub.Close)

	svc := bounty.NewService(repo, window, staticAdmins{adminWallet: true}, bounty.WithPublisher(hub))
	verifier := auth.NewTokenVerifier("sdk-secret", "bounty-board")
	srv := api.NewServer(config.ServerConfig{}, svc, hub, repo, api.Options{Verifier: verifier})

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, verifier
}

func issue(t *testing.T, v *auth.TokenVerifier, wallet string) string {
	t.Helper()
	token, err := v.Issue(wallet, time.Hour)
	require.NoError(t, err)
	return token
}

func TestClient_EndToEnd(t *testing.T) {
	ctx := context.Background()
	var now atomic.Int64
	now.Store(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC).UnixNano())
	ts, verifier := setupServer(t, &now)

	public := NewClient(ts.URL, "")
	admin := NewClient(ts.URL, issue(t, verifier, adminWallet))
	user := NewClient(ts.URL, issue(t, verifier, userWallet), WithTimeout(5*time.Second))

	require.NoError(t, public.Health(ctx))

	categories, err := public.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)

	me, err := admin.Me(ctx)
	require.NoError(t, err)
	assert.True(t, me.IsAdmin)

	created, err := admin.CreateBounty(ctx, models.CreateBountyRequest{
		Title:        "Best meme",
		Description:  "Make us laugh",
		Requirements: "Original work",
		CategoryID:   "memes",
		EndDate:      "2025-03-02",
		Prizes:       []models.Prize{{Place: "1st", Prize: "25"}},
	})
	require.NoError(t, err)

	_, err = user.CreateBounty(ctx, models.CreateBountyRequest{Title: "nope"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.StatusCode)

	mine, err := user.GetMySubmission(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, mine)

	sub, isNew, err := user.Submit(ctx, created.ID, models.SubmissionFields{TwitterHandle: "@memer"})
	require.NoError(t, err)
	assert.True(t, isNew)

	again, isNew, err := user.Submit(ctx, created.ID, models.SubmissionFields{TwitterHandle: "@memer", TweetLink: "https://x.com/memer/9"})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, sub.ID, again.ID)

	subs, err := admin.ListSubmissions(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)

	now.Store(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC).UnixNano())

	view, err := admin.AnnounceWinners(ctx, created.ID, models.WinnerAssignment{sub.ID: "1st"})
	require.NoError(t, err)
	require.Len(t, view.Winners, 1)
	assert.Equal(t, 1, view.Winners[0].PositionRank)

	_, err = admin.AnnounceWinners(ctx, created.ID, models.WinnerAssignment{sub.ID: "1st"})
	assert.True(t, IsAlreadyAnnounced(err))

	ended, err := public.ListBounties(ctx, ListOptions{Status: "ended"})
	require.NoError(t, err)
	require.Len(t, ended, 1)
	assert.Equal(t, models.StatusEnded, ended[0].Status)

	wallets, err := admin.ListAdminWallets(ctx)
	require.NoError(t, err)
	assert.Len(t, wallets, 1)

	var buf bytes.Buffer
	require.NoError(t, admin.ExportBounty(ctx, created.ID, &buf))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.WinnersSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	require.NoError(t, admin.DeleteBounty(ctx, created.ID))
	_, err = public.GetBounty(ctx, created.ID)
	assert.True(t, IsNotFound(err))
}
