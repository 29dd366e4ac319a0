// Package bounty implements the bounty board: the submission ledger, the
// one-time winner selection, and the read model composed from them.
package bounty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/terra-clan/bounty-board/internal/events"
	"github.com/terra-clan/bounty-board/internal/metrics"
	"github.com/terra-clan/bounty-board/internal/models"
	"github.com/terra-clan/bounty-board/internal/prizes"
	"github.com/terra-clan/bounty-board/internal/storage"
	"github.com/terra-clan/bounty-board/internal/timewindow"
)

const tracerName = "github.com/terra-clan/bounty-board/internal/bounty"

// AdminAuthorizer decides whether a wallet may run admin operations
type AdminAuthorizer interface {
	IsAuthorizedAdmin(ctx context.Context, wallet string) (bool, error)
}

// Publisher receives lifecycle events
type Publisher interface {
	Publish(e events.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Event) {}

// Service exposes the bounty board operations
type Service struct {
	repo   storage.Repository
	window *timewindow.Window
	ledger *Ledger
	engine *WinnerEngine
	admins AdminAuthorizer
	events Publisher
	tracer trace.Tracer
	strict bool
}

// Option configures a Service
type Option func(*Service)

// WithPublisher sets the event sink
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithTracer sets the tracer used for spans
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithStrictLabels rejects winner positions absent from the prize structure
func WithStrictLabels(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

// NewService creates a new bounty service
func NewService(repo storage.Repository, window *timewindow.Window, admins AdminAuthorizer, opts ...Option) *Service {
	if window == nil {
		window = timewindow.New(nil, nil)
	}

	s := &Service{
		repo:   repo,
		window: window,
		admins: admins,
		events: nopPublisher{},
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.ledger = NewLedger(repo, window)
	s.engine = NewWinnerEngine(repo, s.strict)
	return s
}

// Window returns the deadline calculator the service uses
func (s *Service) Window() *timewindow.Window {
	return s.window
}

// --- Reads ---

// GetBountyWithStatus returns a bounty with its live status, prize total and,
// once announced, its resolved winners
func (s *Service) GetBountyWithStatus(ctx context.Context, id string) (*models.BountyView, error) {
	b, err := s.repo.GetBounty(ctx, id)
	if err != nil {
		return nil, storageError("get bounty", err)
	}

	counts, err := s.repo.CountSubmissions(ctx, []string{b.ID})
	if err != nil {
		return nil, storageError("count submissions", err)
	}

	var category *models.Category
	if c, err := s.repo.GetCategory(ctx, b.CategoryID); err == nil {
		category = c
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, storageError("get category", err)
	}

	return s.view(ctx, b, category, counts[b.ID])
}

// ListBounties returns bounties newest first with derived state
func (s *Service) ListBounties(ctx context.Context, filter models.BountyFilter) ([]*models.BountyView, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, validationError("unknown status %q", filter.Status)
	}

	bounties, err := s.repo.ListBounties(ctx, filter.CategoryID)
	if err != nil {
		return nil, storageError("list bounties", err)
	}

	categories, err := s.categoryIndex(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(bounties))
	for _, b := range bounties {
		ids = append(ids, b.ID)
	}
	counts, err := s.repo.CountSubmissions(ctx, ids)
	if err != nil {
		return nil, storageError("count submissions", err)
	}

	views := make([]*models.BountyView, 0, len(bounties))
	for _, b := range bounties {
		if filter.Status != "" && s.window.Status(b.EndDate) != filter.Status {
			continue
		}
		v, err := s.view(ctx, b, categories[b.CategoryID], counts[b.ID])
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}

	return paginate(views, filter.Offset, filter.Limit), nil
}

// ListCategories returns all categories
func (s *Service) ListCategories(ctx context.Context) ([]*models.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, storageError("list categories", err)
	}
	return categories, nil
}

// ListSubmissionForWallet returns the caller's own entry, or nil when the
// wallet has not entered yet
func (s *Service) ListSubmissionForWallet(ctx context.Context, bountyID, wallet string) (*models.Submission, error) {
	if wallet == "" {
		return nil, fmt.Errorf("%w: wallet identity required", ErrUnauthorized)
	}
	if _, err := s.repo.GetBounty(ctx, bountyID); err != nil {
		return nil, storageError("get bounty", err)
	}
	return s.ledger.Find(ctx, bountyID, wallet)
}

// ListSubmissions returns every entry of a bounty. Admin only.
func (s *Service) ListSubmissions(ctx context.Context, admin, bountyID string) ([]*models.Submission, error) {
	if err := s.requireAdmin(ctx, admin); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetBounty(ctx, bountyID); err != nil {
		return nil, storageError("get bounty", err)
	}

	submissions, err := s.repo.ListSubmissionsByBounty(ctx, bountyID)
	if err != nil {
		return nil, storageError("list submissions", err)
	}
	return submissions, nil
}

// IsAdmin reports whether wallet is on the admin allow-list
func (s *Service) IsAdmin(ctx context.Context, wallet string) (bool, error) {
	if wallet == "" {
		return false, nil
	}
	ok, err := s.admins.IsAuthorizedAdmin(ctx, wallet)
	if err != nil {
		return false, fmt.Errorf("%w: admin lookup: %w", ErrTransport, err)
	}
	return ok, nil
}

// ListAdminWallets returns the allow-list. Admin only.
func (s *Service) ListAdminWallets(ctx context.Context, admin string) ([]*models.AdminWallet, error) {
	if err := s.requireAdmin(ctx, admin); err != nil {
		return nil, err
	}
	wallets, err := s.repo.ListAdminWallets(ctx)
	if err != nil {
		return nil, storageError("list admin wallets", err)
	}
	return wallets, nil
}

// --- Writes ---

// CreateBounty publishes a new bounty. Admin only.
func (s *Service) CreateBounty(ctx context.Context, admin string, req models.CreateBountyRequest) (*models.Bounty, error) {
	if err := s.requireAdmin(ctx, admin); err != nil {
		return nil, err
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Requirements = strings.TrimSpace(req.Requirements)
	req.CategoryID = strings.TrimSpace(req.CategoryID)
	req.EndDate = strings.TrimSpace(req.EndDate)

	switch {
	case req.Title == "":
		return nil, validationError("title is required")
	case req.Description == "":
		return nil, validationError("description is required")
	case req.Requirements == "":
		return nil, validationError("requirements are required")
	case req.CategoryID == "":
		return nil, validationError("category_id is required")
	}

	if err := s.window.Validate(req.EndDate); err != nil {
		return nil, validationError("%s", err.Error())
	}

	for i := range req.Prizes {
		req.Prizes[i].Place = strings.TrimSpace(req.Prizes[i].Place)
	}
	if err := prizes.Validate(req.Prizes); err != nil {
		return nil, validationError("%s", err.Error())
	}

	if _, err := s.repo.GetCategory(ctx, req.CategoryID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, validationError("unknown category %s", req.CategoryID)
		}
		return nil, storageError("get category", err)
	}

	b := &models.Bounty{
		ID:           uuid.New().String(),
		Title:        req.Title,
		Description:  req.Description,
		Requirements: req.Requirements,
		CategoryID:   req.CategoryID,
		EndDate:      req.EndDate,
		Prizes:       req.Prizes,
		CreatedAt:    s.window.Now().UTC(),
	}

	if err := s.repo.InsertBounty(ctx, b); err != nil {
		return nil, storageError("create bounty", err)
	}

	slog.Info("bounty created",
		"bounty_id", b.ID,
		"title", b.Title,
		"end_date", b.EndDate,
		"admin", models.MaskWallet(admin),
	)
	s.events.Publish(events.Event{Type: events.TypeBountyCreated, BountyID: b.ID, Data: b})

	return b, nil
}

// DeleteBounty removes a bounty and its submissions. Admin only.
func (s *Service) DeleteBounty(ctx context.Context, admin, id string) error {
	if err := s.requireAdmin(ctx, admin); err != nil {
		return err
	}

	if err := s.repo.DeleteBounty(ctx, id); err != nil {
		return storageError("delete bounty", err)
	}

	slog.Info("bounty deleted", "bounty_id", id, "admin", models.MaskWallet(admin))
	s.events.Publish(events.Event{Type: events.TypeBountyDeleted, BountyID: id})
	return nil
}

// SubmitOrUpdateEntry creates the wallet's entry or updates it if one
// exists. created reports which happened. Entries close when the bounty ends.
func (s *Service) SubmitOrUpdateEntry(ctx context.Context, wallet string, req models.SubmitEntryRequest) (sub *models.Submission, created bool, err error) {
	ctx, span := s.tracer.Start(ctx, "bounty.SubmitOrUpdateEntry", trace.WithAttributes(
		attribute.String("bounty_id", req.BountyID),
	))
	start := time.Now()
	defer func() {
		s.finish(span, "submit", start, err)
		switch {
		case err != nil:
			metrics.RecordSubmission("rejected")
		case created:
			metrics.RecordSubmission("created")
		default:
			metrics.RecordSubmission("updated")
		}
	}()

	if wallet == "" {
		return nil, false, fmt.Errorf("%w: wallet identity required", ErrUnauthorized)
	}

	b, err := s.repo.GetBounty(ctx, req.BountyID)
	if err != nil {
		return nil, false, storageError("get bounty", err)
	}

	if s.window.IsEnded(b.EndDate) {
		return nil, false, validationError("bounty has ended")
	}

	existing, err := s.ledger.Find(ctx, b.ID, wallet)
	if err != nil {
		return nil, false, err
	}

	if existing == nil {
		sub, err = s.ledger.Create(ctx, b.ID, wallet, req.SubmissionFields)
		switch {
		case err == nil:
			created = true
		case errors.Is(err, errDuplicateEntry):
			// lost a race with another first entry from the same wallet
			existing, err = s.ledger.Find(ctx, b.ID, wallet)
			if err != nil {
				return nil, false, err
			}
			if existing == nil {
				return nil, false, fmt.Errorf("%w: submission vanished after conflict", ErrTransport)
			}
		default:
			return nil, false, err
		}
	}

	if !created {
		sub, err = s.ledger.Update(ctx, existing.ID, b.ID, wallet, req.SubmissionFields)
		if err != nil {
			return nil, false, err
		}
	}

	eventType := events.TypeSubmissionUpdated
	if created {
		eventType = events.TypeSubmissionCreated
	}
	slog.Info("submission saved",
		"bounty_id", b.ID,
		"submission_id", sub.ID,
		"wallet", models.MaskWallet(wallet),
		"created", created,
	)
	s.events.Publish(events.Event{Type: eventType, BountyID: b.ID, Data: s.notice(ctx, b.ID, sub.ID, created)})

	return sub, created, nil
}

// notice builds the public payload of a submission event. A failed count
// leaves the total at zero rather than failing the saved entry.
func (s *Service) notice(ctx context.Context, bountyID, submissionID string, created bool) models.SubmissionNotice {
	n := models.SubmissionNotice{SubmissionID: submissionID, Created: created}
	counts, err := s.repo.CountSubmissions(ctx, []string{bountyID})
	if err != nil {
		slog.Warn("failed to count submissions for event", "bounty_id", bountyID, "error", err)
		return n
	}
	n.SubmissionsTotal = counts[bountyID]
	return n
}

// AnnounceWinners commits the winner assignment of an ended bounty exactly
// once. Admin only.
func (s *Service) AnnounceWinners(ctx context.Context, admin, bountyID string, assignment models.WinnerAssignment) (view *models.BountyView, err error) {
	ctx, span := s.tracer.Start(ctx, "bounty.AnnounceWinners", trace.WithAttributes(
		attribute.String("bounty_id", bountyID),
		attribute.Int("winners", len(assignment)),
	))
	start := time.Now()
	defer func() {
		s.finish(span, "announce", start, err)
		outcome := "success"
		if err != nil {
			outcome = string(KindOf(err))
		}
		metrics.RecordAnnouncement(outcome)
	}()

	if err := s.requireAdmin(ctx, admin); err != nil {
		return nil, err
	}

	b, err := s.repo.GetBounty(ctx, bountyID)
	if err != nil {
		return nil, storageError("get bounty", err)
	}
	if b.IsAnnounced() {
		return nil, ErrAlreadyAnnounced
	}
	if !s.window.IsEnded(b.EndDate) {
		return nil, validationError("bounty has not ended yet")
	}

	announced, err := s.engine.Announce(ctx, bountyID, assignment)
	if err != nil {
		if errors.Is(err, ErrAlreadyAnnounced) {
			slog.Warn("winner announcement rejected", "bounty_id", bountyID, "admin", models.MaskWallet(admin))
		}
		return nil, err
	}

	slog.Info("winners announced",
		"bounty_id", bountyID,
		"admin", models.MaskWallet(admin),
		"winners", describeAssignment(announced.Assignment),
	)

	view, err = s.GetBountyWithStatus(ctx, bountyID)
	if err != nil {
		return nil, err
	}

	s.events.Publish(events.Event{Type: events.TypeWinnersAnnounced, BountyID: bountyID, Data: view.Winners})
	return view, nil
}

// --- Helpers ---

func (s *Service) requireAdmin(ctx context.Context, wallet string) error {
	if wallet == "" {
		return fmt.Errorf("%w: wallet identity required", ErrUnauthorized)
	}

	ok, err := s.admins.IsAuthorizedAdmin(ctx, wallet)
	if err != nil {
		return fmt.Errorf("%w: admin lookup: %w", ErrTransport, err)
	}
	if !ok {
		slog.Warn("admin operation denied", "wallet", models.MaskWallet(wallet))
		return fmt.Errorf("%w: wallet is not an admin", ErrUnauthorized)
	}
	return nil
}

func (s *Service) view(ctx context.Context, b *models.Bounty, category *models.Category, submissions int) (*models.BountyView, error) {
	v := &models.BountyView{
		Bounty:           b,
		Category:         category,
		Status:           s.window.Status(b.EndDate),
		TotalPrize:       prizes.AggregateTotal(b.Prizes),
		SubmissionsTotal: submissions,
	}

	if b.IsAnnounced() {
		winners, err := s.engine.Resolve(ctx, b.Assignment)
		if err != nil {
			return nil, err
		}
		v.Winners = winners
	}

	return v, nil
}

func (s *Service) categoryIndex(ctx context.Context) (map[string]*models.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, storageError("list categories", err)
	}

	index := make(map[string]*models.Category, len(categories))
	for _, c := range categories {
		index[c.ID] = c
	}
	return index, nil
}

func (s *Service) finish(span trace.Span, op string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.RecordOperation(op, outcome, time.Since(start).Seconds())
	span.End()
}

func paginate(views []*models.BountyView, offset, limit int) []*models.BountyView {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(views) {
		return []*models.BountyView{}
	}
	views = views[offset:]
	if limit > 0 && limit < len(views) {
		views = views[:limit]
	}
	return views
}
