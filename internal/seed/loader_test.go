package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/bounty-board/internal/storage"
)

const sampleSeed = `
categories:
  - id: content
    name: Content
  - id: memes
    name: Memes
admin_wallets:
  - wallet_address: terra1adminwalletxxxxxxxxxxxxxxxxxxxxxxxx
    label: ops
bounties:
  - id: launch-thread
    title: Launch thread
    description: Write about the launch
    requirements: Tag the project
    category_id: content
    end_date: "2025-01-10"
    prizes:
      - place: 1st
        prize: 100
      - place: 2nd
        prize: "50"
`

func TestLoader_LoadAndApply(t *testing.T) {
	loader := NewLoader()
	require.NoError(t, loader.Load([]byte(sampleSeed)))

	require.Len(t, loader.Categories(), 2)
	assert.Equal(t, "content", loader.Categories()[0].ID)
	require.Len(t, loader.AdminWallets(), 1)
	assert.Equal(t, "ops", loader.AdminWallets()[0].Label)

	bounties := loader.Bounties()
	require.Len(t, bounties, 1)
	assert.Equal(t, "2025-01-10", bounties[0].EndDate)
	assert.Equal(t, "100", string(bounties[0].Prizes[0].Prize))
	assert.Equal(t, "50", string(bounties[0].Prizes[1].Prize))

	repo := storage.NewMemoryRepository()
	ctx := context.Background()

	res, err := loader.Apply(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, Result{Categories: 2, AdminWallets: 1, Bounties: 1}, res)

	again, err := loader.Apply(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Bounties, "sample bounties are inserted once")

	categories, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 2)

	b, err := repo.GetBounty(ctx, "launch-thread")
	require.NoError(t, err)
	assert.Equal(t, "Launch thread", b.Title)
}

func TestLoader_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "categories: [::"},
		{"category without name", "categories:\n  - id: x\n"},
		{"wallet without address", "admin_wallets:\n  - label: ops\n"},
		{"bounty without prizes", "bounties:\n  - id: b\n    title: t\n    category_id: c\n    end_date: 2025-01-01\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := NewLoader()
			assert.Error(t, loader.Load([]byte(tt.yaml)))
			assert.Empty(t, loader.Categories())
		})
	}
}

func TestLoader_LoadFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01-base.yaml"), []byte(sampleSeed), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "02-extra.yml"), []byte("categories:\n  - id: content\n    name: Writing\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "03-broken.yaml"), []byte("categories: [::"), 0o644))

	loader := NewLoader()
	require.NoError(t, loader.LoadFromDir(dir))

	categories := loader.Categories()
	require.Len(t, categories, 2)
	assert.Equal(t, "Writing", categories[0].Name, "later files override earlier ones")

	assert.Error(t, NewLoader().LoadFromDir(filepath.Join(dir, "missing")))
}

func TestLoader_BundledSeed(t *testing.T) {
	seedDir := filepath.Join("..", "..", "seed")
	if _, err := os.Stat(seedDir); os.IsNotExist(err) {
		t.Skip("seed directory not found, skipping")
	}

	loader := NewLoader()
	require.NoError(t, loader.LoadFromDir(seedDir))
	assert.NotEmpty(t, loader.Categories())
}
