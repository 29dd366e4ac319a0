package api

import (
	"context"
)

type contextKey string

const walletContextKey contextKey = "wallet_address"

// WalletFromContext extracts the caller's wallet address from context
func WalletFromContext(ctx context.Context) string {
	wallet, ok := ctx.Value(walletContextKey).(string)
	if !ok {
		return ""
	}
	return wallet
}

// ContextWithWallet adds the caller's wallet address to context
func ContextWithWallet(ctx context.Context, wallet string) context.Context {
	return context.WithValue(ctx, walletContextKey, wallet)
}
