package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/bounty-board/internal/models"
)

// Postgres error codes the repository translates
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// --- Categories ---

// ListCategories returns all categories ordered by name
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]*models.Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, &c)
	}

	return categories, rows.Err()
}

// GetCategory retrieves a category by ID
func (r *PostgresRepository) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	var c models.Category
	err := r.pool.QueryRow(ctx, `SELECT id, name, created_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &c, nil
}

// UpsertCategory creates a category or renames an existing one
func (r *PostgresRepository) UpsertCategory(ctx context.Context, c *models.Category) error {
	query := `
		INSERT INTO categories (id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	if _, err := r.pool.Exec(ctx, query, c.ID, c.Name, c.CreatedAt); err != nil {
		return fmt.Errorf("failed to upsert category: %w", err)
	}
	return nil
}

// --- Bounties ---

const bountyColumns = `id, title, description, requirements, category_id, end_date, prizes, winners, created_at`

// InsertBounty creates a new bounty record
func (r *PostgresRepository) InsertBounty(ctx context.Context, b *models.Bounty) error {
	prizesJSON, err := json.Marshal(b.Prizes)
	if err != nil {
		return fmt.Errorf("failed to marshal prizes: %w", err)
	}

	query := `
		INSERT INTO bounties (id, title, description, requirements, category_id, end_date, prizes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.pool.Exec(ctx, query,
		b.ID,
		b.Title,
		b.Description,
		b.Requirements,
		b.CategoryID,
		b.EndDate,
		prizesJSON,
		b.CreatedAt,
	)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return fmt.Errorf("category %s: %w", b.CategoryID, ErrNotFound)
		}
		if isPgError(err, pgUniqueViolation) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create bounty: %w", err)
	}

	return nil
}

// GetBounty retrieves a bounty by ID
func (r *PostgresRepository) GetBounty(ctx context.Context, id string) (*models.Bounty, error) {
	query := `SELECT ` + bountyColumns + ` FROM bounties WHERE id = $1`

	b, err := scanBounty(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bounty: %w", err)
	}
	return b, nil
}

// ListBounties returns bounties newest first, optionally narrowed to a category
func (r *PostgresRepository) ListBounties(ctx context.Context, categoryID string) ([]*models.Bounty, error) {
	query := `SELECT ` + bountyColumns + ` FROM bounties WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if categoryID != "" {
		query += fmt.Sprintf(" AND category_id = $%d", argNum)
		args = append(args, categoryID)
	}

	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bounties: %w", err)
	}
	defer rows.Close()

	var bounties []*models.Bounty
	for rows.Next() {
		b, err := scanBounty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bounty: %w", err)
		}
		bounties = append(bounties, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bounties: %w", err)
	}

	return bounties, nil
}

// DeleteBounty deletes a bounty; its submissions go with it
func (r *PostgresRepository) DeleteBounty(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM bounties WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bounty: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateBountyWinners commits the winner assignment. The emptiness check and
// the write are one statement, so concurrent callers cannot both succeed.
func (r *PostgresRepository) UpdateBountyWinners(ctx context.Context, id string, assignment models.WinnerAssignment) error {
	winnersJSON, err := json.Marshal(assignment)
	if err != nil {
		return fmt.Errorf("failed to marshal winners: %w", err)
	}

	query := `
		UPDATE bounties
		SET winners = $2
		WHERE id = $1
		  AND (winners IS NULL OR winners = 'null'::jsonb OR winners = '{}'::jsonb)
	`

	result, err := r.pool.Exec(ctx, query, id, winnersJSON)
	if err != nil {
		return fmt.Errorf("failed to update winners: %w", err)
	}

	if result.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bounties WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check bounty: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

// CountSubmissions returns the submission count per bounty
func (r *PostgresRepository) CountSubmissions(ctx context.Context, bountyIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(bountyIDs))
	if len(bountyIDs) == 0 {
		return counts, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT bounty_id, COUNT(*) FROM submissions WHERE bounty_id = ANY($1) GROUP BY bounty_id`,
		bountyIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan submission count: %w", err)
		}
		counts[id] = n
	}

	return counts, rows.Err()
}

// --- Submissions ---

const submissionColumns = `id, bounty_id, wallet_address, twitter_handle, tweet_link, extra_info, created_at, updated_at`

// GetSubmission returns the newest submission of a wallet for a bounty
func (r *PostgresRepository) GetSubmission(ctx context.Context, bountyID, wallet string) (*models.Submission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE bounty_id = $1 AND wallet_address = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	s, err := scanSubmission(r.pool.QueryRow(ctx, query, bountyID, wallet))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return s, nil
}

// InsertSubmission creates a submission. A second row for the same
// (bounty, wallet) is rejected with ErrDuplicate.
func (r *PostgresRepository) InsertSubmission(ctx context.Context, s *models.Submission) error {
	query := `
		INSERT INTO submissions (id, bounty_id, wallet_address, twitter_handle, tweet_link, extra_info, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.BountyID,
		s.WalletAddress,
		s.TwitterHandle,
		s.TweetLink,
		nullString(s.ExtraInfo),
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return ErrDuplicate
		}
		if isPgError(err, pgForeignKeyViolation) {
			return fmt.Errorf("bounty %s: %w", s.BountyID, ErrNotFound)
		}
		return fmt.Errorf("failed to create submission: %w", err)
	}

	return nil
}

// UpdateSubmission rewrites the editable fields of a submission matched by
// id, bounty and wallet together
func (r *PostgresRepository) UpdateSubmission(ctx context.Context, id, bountyID, wallet string, fields models.SubmissionFields, updatedAt time.Time) (*models.Submission, error) {
	query := `
		UPDATE submissions
		SET twitter_handle = $4, tweet_link = $5, extra_info = $6, updated_at = $7
		WHERE id = $1 AND bounty_id = $2 AND wallet_address = $3
		RETURNING ` + submissionColumns

	s, err := scanSubmission(r.pool.QueryRow(ctx, query,
		id,
		bountyID,
		wallet,
		fields.TwitterHandle,
		fields.TweetLink,
		nullString(fields.ExtraInfo),
		updatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update submission: %w", err)
	}
	return s, nil
}

// ListSubmissionsByBounty returns all submissions of a bounty, oldest first
func (r *PostgresRepository) ListSubmissionsByBounty(ctx context.Context, bountyID string) ([]*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE bounty_id = $1 ORDER BY created_at ASC, id ASC`
	return r.querySubmissions(ctx, query, bountyID)
}

// GetSubmissionsByIDs returns the submissions that exist among ids
func (r *PostgresRepository) GetSubmissionsByIDs(ctx context.Context, ids []string) ([]*models.Submission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = ANY($1)`
	return r.querySubmissions(ctx, query, ids)
}

func (r *PostgresRepository) querySubmissions(ctx context.Context, query string, args ...interface{}) ([]*models.Submission, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var submissions []*models.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		submissions = append(submissions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}

	return submissions, nil
}

// --- Admin wallets ---

// ListAdminWallets returns the admin allow-list
func (r *PostgresRepository) ListAdminWallets(ctx context.Context) ([]*models.AdminWallet, error) {
	rows, err := r.pool.Query(ctx, `SELECT wallet_address, label, created_at FROM admin_wallets ORDER BY wallet_address`)
	if err != nil {
		return nil, fmt.Errorf("failed to list admin wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*models.AdminWallet
	for rows.Next() {
		var w models.AdminWallet
		if err := rows.Scan(&w.WalletAddress, &w.Label, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan admin wallet: %w", err)
		}
		wallets = append(wallets, &w)
	}

	return wallets, rows.Err()
}

// UpsertAdminWallet adds a wallet to the allow-list
func (r *PostgresRepository) UpsertAdminWallet(ctx context.Context, w *models.AdminWallet) error {
	query := `
		INSERT INTO admin_wallets (wallet_address, label, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (wallet_address) DO UPDATE SET label = EXCLUDED.label
	`

	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}

	if _, err := r.pool.Exec(ctx, query, w.WalletAddress, w.Label, w.CreatedAt); err != nil {
		return fmt.Errorf("failed to upsert admin wallet: %w", err)
	}
	return nil
}

// --- Scanning helpers ---

func scanBounty(row pgx.Row) (*models.Bounty, error) {
	var b models.Bounty
	var prizesJSON, winnersJSON []byte

	err := row.Scan(
		&b.ID,
		&b.Title,
		&b.Description,
		&b.Requirements,
		&b.CategoryID,
		&b.EndDate,
		&prizesJSON,
		&winnersJSON,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if prizesJSON != nil {
		if err := json.Unmarshal(prizesJSON, &b.Prizes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal prizes: %w", err)
		}
	}

	if winnersJSON != nil {
		if err := json.Unmarshal(winnersJSON, &b.Assignment); err != nil {
			return nil, fmt.Errorf("failed to unmarshal winners: %w", err)
		}
	}

	return &b, nil
}

func scanSubmission(row pgx.Row) (*models.Submission, error) {
	var s models.Submission
	var extraInfo sql.NullString

	err := row.Scan(
		&s.ID,
		&s.BountyID,
		&s.WalletAddress,
		&s.TwitterHandle,
		&s.TweetLink,
		&extraInfo,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.ExtraInfo = extraInfo.String
	return &s, nil
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// Helper functions for nullable values

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
