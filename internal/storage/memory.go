package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/terra-clan/bounty-board/internal/models"
)

// MemoryRepository implements Repository in process memory. It keeps the
// same uniqueness and conditional-update guarantees as the Postgres schema
// and is used for local runs and tests.
type MemoryRepository struct {
	mu          sync.RWMutex
	categories  map[string]*models.Category
	bounties    map[string]*models.Bounty
	submissions map[string]*models.Submission
	admins      map[string]*models.AdminWallet
	now         func() time.Time
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		categories:  make(map[string]*models.Category),
		bounties:    make(map[string]*models.Bounty),
		submissions: make(map[string]*models.Submission),
		admins:      make(map[string]*models.AdminWallet),
		now:         time.Now,
	}
}

// Ping always succeeds
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}

// --- Categories ---

func (r *MemoryRepository) ListCategories(ctx context.Context) ([]*models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	categories := make([]*models.Category, 0, len(r.categories))
	for _, c := range r.categories {
		cp := *c
		categories = append(categories, &cp)
	}
	sort.Slice(categories, func(i, j int) bool {
		return categories[i].Name < categories[j].Name
	})
	return categories, nil
}

func (r *MemoryRepository) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.categories[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryRepository) UpsertCategory(ctx context.Context, c *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, existing := range r.categories {
		if id != c.ID && existing.Name == c.Name {
			return ErrDuplicate
		}
	}

	if existing, ok := r.categories[c.ID]; ok {
		existing.Name = c.Name
		return nil
	}

	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
	}
	cp := *c
	r.categories[c.ID] = &cp
	return nil
}

// --- Bounties ---

func (r *MemoryRepository) GetBounty(ctx context.Context, id string) (*models.Bounty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bounties[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBounty(b), nil
}

func (r *MemoryRepository) ListBounties(ctx context.Context, categoryID string) ([]*models.Bounty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var bounties []*models.Bounty
	for _, b := range r.bounties {
		if categoryID != "" && b.CategoryID != categoryID {
			continue
		}
		bounties = append(bounties, copyBounty(b))
	}

	sort.Slice(bounties, func(i, j int) bool {
		if !bounties[i].CreatedAt.Equal(bounties[j].CreatedAt) {
			return bounties[i].CreatedAt.After(bounties[j].CreatedAt)
		}
		return bounties[i].ID > bounties[j].ID
	})
	return bounties, nil
}

func (r *MemoryRepository) InsertBounty(ctx context.Context, b *models.Bounty) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bounties[b.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := r.categories[b.CategoryID]; !ok {
		return fmt.Errorf("category %s: %w", b.CategoryID, ErrNotFound)
	}

	r.bounties[b.ID] = copyBounty(b)
	return nil
}

func (r *MemoryRepository) DeleteBounty(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bounties[id]; !ok {
		return ErrNotFound
	}
	delete(r.bounties, id)

	for sid, s := range r.submissions {
		if s.BountyID == id {
			delete(r.submissions, sid)
		}
	}
	return nil
}

func (r *MemoryRepository) UpdateBountyWinners(ctx context.Context, id string, assignment models.WinnerAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bounties[id]
	if !ok {
		return ErrNotFound
	}
	if len(b.Assignment) > 0 {
		return ErrConflict
	}

	b.Assignment = make(models.WinnerAssignment, len(assignment))
	for k, v := range assignment {
		b.Assignment[k] = v
	}
	return nil
}

func (r *MemoryRepository) CountSubmissions(ctx context.Context, bountyIDs []string) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]struct{}, len(bountyIDs))
	for _, id := range bountyIDs {
		wanted[id] = struct{}{}
	}

	counts := make(map[string]int, len(bountyIDs))
	for _, s := range r.submissions {
		if _, ok := wanted[s.BountyID]; ok {
			counts[s.BountyID]++
		}
	}
	return counts, nil
}

// --- Submissions ---

func (r *MemoryRepository) GetSubmission(ctx context.Context, bountyID, wallet string) (*models.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var newest *models.Submission
	for _, s := range r.submissions {
		if s.BountyID != bountyID || s.WalletAddress != wallet {
			continue
		}
		if newest == nil || s.CreatedAt.After(newest.CreatedAt) ||
			(s.CreatedAt.Equal(newest.CreatedAt) && s.ID > newest.ID) {
			newest = s
		}
	}

	if newest == nil {
		return nil, ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

func (r *MemoryRepository) InsertSubmission(ctx context.Context, s *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bounties[s.BountyID]; !ok {
		return fmt.Errorf("bounty %s: %w", s.BountyID, ErrNotFound)
	}
	if _, ok := r.submissions[s.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range r.submissions {
		if existing.BountyID == s.BountyID && existing.WalletAddress == s.WalletAddress {
			return ErrDuplicate
		}
	}

	cp := *s
	r.submissions[s.ID] = &cp
	return nil
}

func (r *MemoryRepository) UpdateSubmission(ctx context.Context, id, bountyID, wallet string, fields models.SubmissionFields, updatedAt time.Time) (*models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.submissions[id]
	if !ok || s.BountyID != bountyID || s.WalletAddress != wallet {
		return nil, ErrNotFound
	}

	s.TwitterHandle = fields.TwitterHandle
	s.TweetLink = fields.TweetLink
	s.ExtraInfo = fields.ExtraInfo
	s.UpdatedAt = updatedAt

	cp := *s
	return &cp, nil
}

func (r *MemoryRepository) ListSubmissionsByBounty(ctx context.Context, bountyID string) ([]*models.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var submissions []*models.Submission
	for _, s := range r.submissions {
		if s.BountyID == bountyID {
			cp := *s
			submissions = append(submissions, &cp)
		}
	}

	sort.Slice(submissions, func(i, j int) bool {
		if !submissions[i].CreatedAt.Equal(submissions[j].CreatedAt) {
			return submissions[i].CreatedAt.Before(submissions[j].CreatedAt)
		}
		return submissions[i].ID < submissions[j].ID
	})
	return submissions, nil
}

func (r *MemoryRepository) GetSubmissionsByIDs(ctx context.Context, ids []string) ([]*models.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var submissions []*models.Submission
	for _, id := range ids {
		if s, ok := r.submissions[id]; ok {
			cp := *s
			submissions = append(submissions, &cp)
		}
	}
	return submissions, nil
}

// --- Admin wallets ---

func (r *MemoryRepository) ListAdminWallets(ctx context.Context) ([]*models.AdminWallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wallets := make([]*models.AdminWallet, 0, len(r.admins))
	for _, w := range r.admins {
		cp := *w
		wallets = append(wallets, &cp)
	}
	sort.Slice(wallets, func(i, j int) bool {
		return wallets[i].WalletAddress < wallets[j].WalletAddress
	})
	return wallets, nil
}

func (r *MemoryRepository) UpsertAdminWallet(ctx context.Context, w *models.AdminWallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.admins[w.WalletAddress]; ok {
		existing.Label = w.Label
		return nil
	}

	if w.CreatedAt.IsZero() {
		w.CreatedAt = r.now()
	}
	cp := *w
	r.admins[w.WalletAddress] = &cp
	return nil
}

func copyBounty(b *models.Bounty) *models.Bounty {
	cp := *b
	cp.Prizes = append([]models.Prize(nil), b.Prizes...)
	if b.Assignment != nil {
		cp.Assignment = make(models.WinnerAssignment, len(b.Assignment))
		for k, v := range b.Assignment {
			cp.Assignment[k] = v
		}
	}
	return &cp
}
