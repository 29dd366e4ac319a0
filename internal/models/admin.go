package models

import "time"

// AdminWallet is a wallet identity allowed to run admin operations
type AdminWallet struct {
	WalletAddress string    `json:"wallet_address" yaml:"wallet_address"`
	Label         string    `json:"label,omitempty" yaml:"label"`
	CreatedAt     time.Time `json:"created_at" yaml:"-"`
}

// MaskWallet returns the first 8 characters of a wallet for logging
func MaskWallet(wallet string) string {
	if len(wallet) < 8 {
		return "***"
	}
	return wallet[:8] + "..."
}

// Masked returns the masked wallet address
func (w *AdminWallet) Masked() string {
	return MaskWallet(w.WalletAddress)
}
