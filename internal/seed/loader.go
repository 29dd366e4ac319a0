// Package seed loads reference data (categories, admin wallets, sample
// bounties) from YAML files and writes it to the repository.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/bounty-board/internal/models"
	"github.com/terra-clan/bounty-board/internal/prizes"
	"github.com/terra-clan/bounty-board/internal/storage"
)

// seedFile is the on-disk layout of one seed file
type seedFile struct {
	Categories   []models.Category    `yaml:"categories"`
	AdminWallets []models.AdminWallet `yaml:"admin_wallets"`
	Bounties     []bountySeed         `yaml:"bounties"`
}

type bountySeed struct {
	ID           string         `yaml:"id"`
	Title        string         `yaml:"title"`
	Description  string         `yaml:"description"`
	Requirements string         `yaml:"requirements"`
	CategoryID   string         `yaml:"category_id"`
	EndDate      string         `yaml:"end_date"`
	Prizes       []models.Prize `yaml:"prizes"`
}

// Loader collects seed data from YAML files
type Loader struct {
	mu         sync.RWMutex
	categories map[string]*models.Category
	admins     map[string]*models.AdminWallet
	bounties   map[string]*models.Bounty
}

// NewLoader creates a new seed loader
func NewLoader() *Loader {
	return &Loader{
		categories: make(map[string]*models.Category),
		admins:     make(map[string]*models.AdminWallet),
		bounties:   make(map[string]*models.Bounty),
	}
}

// LoadFromDir loads every YAML file in dir. Files that fail to parse are
// logged and skipped.
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading seed data from directory", "dir", dir)

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("failed to read seed directory: %w", err)
	}

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	loaded := 0
	for _, file := range files {
		if err := l.LoadFromFile(file); err != nil {
			slog.Warn("failed to load seed file", "file", file, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("seed files loaded", "count", loaded, "total_files", len(files))
	return nil
}

// LoadFromFile loads a single seed file
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return l.Load(data)
}

// Load parses seed YAML and merges it into the loader. Later entries with
// the same id replace earlier ones.
func (l *Loader) Load(data []byte) error {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, c := range file.Categories {
		if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("category %d: id and name are required", i+1)
		}
	}
	for i, w := range file.AdminWallets {
		if strings.TrimSpace(w.WalletAddress) == "" {
			return fmt.Errorf("admin wallet %d: wallet_address is required", i+1)
		}
	}
	for _, b := range file.Bounties {
		if b.ID == "" || b.Title == "" || b.CategoryID == "" || b.EndDate == "" {
			return fmt.Errorf("bounty %q: id, title, category_id and end_date are required", b.ID)
		}
		if err := prizes.Validate(b.Prizes); err != nil {
			return fmt.Errorf("bounty %q: %w", b.ID, err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, c := range file.Categories {
		c := c
		l.categories[c.ID] = &c
	}
	for _, w := range file.AdminWallets {
		w := w
		l.admins[w.WalletAddress] = &w
	}
	for _, b := range file.Bounties {
		l.bounties[b.ID] = &models.Bounty{
			ID:           b.ID,
			Title:        b.Title,
			Description:  b.Description,
			Requirements: b.Requirements,
			CategoryID:   b.CategoryID,
			EndDate:      b.EndDate,
			Prizes:       b.Prizes,
		}
	}

	return nil
}

// Categories returns loaded categories ordered by id
func (l *Loader) Categories() []*models.Category {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.Category, 0, len(l.categories))
	for _, c := range l.categories {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// AdminWallets returns loaded admin wallets ordered by address
func (l *Loader) AdminWallets() []*models.AdminWallet {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.AdminWallet, 0, len(l.admins))
	for _, w := range l.admins {
		result = append(result, w)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].WalletAddress < result[j].WalletAddress })
	return result
}

// Bounties returns loaded sample bounties ordered by id
func (l *Loader) Bounties() []*models.Bounty {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.Bounty, 0, len(l.bounties))
	for _, b := range l.bounties {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Result counts what Apply wrote
type Result struct {
	Categories   int
	AdminWallets int
	Bounties     int
}

// Apply writes the loaded data. Categories and wallets are upserted; sample
// bounties that already exist are left untouched.
func (l *Loader) Apply(ctx context.Context, repo storage.Repository) (Result, error) {
	var res Result

	for _, c := range l.Categories() {
		if err := repo.UpsertCategory(ctx, c); err != nil {
			return res, fmt.Errorf("category %s: %w", c.ID, err)
		}
		res.Categories++
	}

	for _, w := range l.AdminWallets() {
		if err := repo.UpsertAdminWallet(ctx, w); err != nil {
			return res, fmt.Errorf("admin wallet %s: %w", w.Masked(), err)
		}
		res.AdminWallets++
	}

	for _, b := range l.Bounties() {
		cp := *b
		cp.CreatedAt = time.Now().UTC()
		err := repo.InsertBounty(ctx, &cp)
		if errors.Is(err, storage.ErrDuplicate) {
			slog.Debug("sample bounty already present", "bounty_id", b.ID)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("bounty %s: %w", b.ID, err)
		}
		res.Bounties++
	}

	slog.Info("seed applied",
		"categories", res.Categories,
		"admin_wallets", res.AdminWallets,
		"bounties", res.Bounties,
	)
	return res, nil
}
