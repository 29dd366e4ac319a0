package storage

import (
	"context"
	"errors"
	"time"

	"github.com/terra-clan/bounty-board/internal/models"
)

// Storage errors
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	ErrConflict  = errors.New("conditional update rejected")
)

// Repository defines the interface for bounty board persistence
type Repository interface {
	// Categories
	ListCategories(ctx context.Context) ([]*models.Category, error)
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	UpsertCategory(ctx context.Context, c *models.Category) error

	// Bounties
	GetBounty(ctx context.Context, id string) (*models.Bounty, error)
	ListBounties(ctx context.Context, categoryID string) ([]*models.Bounty, error)
	InsertBounty(ctx context.Context, b *models.Bounty) error
	DeleteBounty(ctx context.Context, id string) error
	CountSubmissions(ctx context.Context, bountyIDs []string) (map[string]int, error)

	// UpdateBountyWinners stores the assignment only while none is committed.
	// Returns ErrConflict when one already is and ErrNotFound when the bounty is missing.
	UpdateBountyWinners(ctx context.Context, id string, assignment models.WinnerAssignment) error

	// Submissions
	GetSubmission(ctx context.Context, bountyID, wallet string) (*models.Submission, error)
	InsertSubmission(ctx context.Context, s *models.Submission) error
	UpdateSubmission(ctx context.Context, id, bountyID, wallet string, fields models.SubmissionFields, updatedAt time.Time) (*models.Submission, error)
	ListSubmissionsByBounty(ctx context.Context, bountyID string) ([]*models.Submission, error)
	GetSubmissionsByIDs(ctx context.Context, ids []string) ([]*models.Submission, error)

	// Admin allow-list
	ListAdminWallets(ctx context.Context) ([]*models.AdminWallet, error)
	UpsertAdminWallet(ctx context.Context, w *models.AdminWallet) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
