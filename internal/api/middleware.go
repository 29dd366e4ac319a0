package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/terra-clan/bounty-board/internal/auth"
	"github.com/terra-clan/bounty-board/internal/models"
)

const walletHeader = "X-Wallet-Address"

// IdentityMiddleware resolves the caller's wallet from a bearer token
type IdentityMiddleware struct {
	verifier       *auth.TokenVerifier
	insecureHeader bool
}

// NewIdentityMiddleware creates new identity middleware.
// insecureHeader trusts X-Wallet-Address when no token is sent.
func NewIdentityMiddleware(verifier *auth.TokenVerifier, insecureHeader bool) *IdentityMiddleware {
	return &IdentityMiddleware{verifier: verifier, insecureHeader: insecureHeader}
}

// Identify attaches the wallet to the request context when one is presented.
// Anonymous requests pass through; a presented but invalid token is rejected.
func (m *IdentityMiddleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r)
		if token == "" {
			// Browsers cannot set headers on websocket upgrades
			token = r.URL.Query().Get("access_token")
		}

		var wallet string
		switch {
		case token != "" && m.verifier != nil:
			verified, err := m.verifier.Verify(token)
			if err != nil {
				slog.Warn("invalid identity token", "error", err, "remote_addr", r.RemoteAddr)
				message := "the provided token is not valid"
				if errors.Is(err, auth.ErrExpiredToken) {
					message = "the provided token has expired"
				}
				respondError(w, http.StatusUnauthorized, "invalid_token", message)
				return
			}
			wallet = verified
		case token != "":
			respondError(w, http.StatusUnauthorized, "invalid_token", "token identity is not enabled")
			return
		case m.insecureHeader:
			wallet = strings.TrimSpace(r.Header.Get(walletHeader))
		}

		if wallet == "" {
			next.ServeHTTP(w, r)
			return
		}

		slog.Debug("identified request", "wallet", models.MaskWallet(wallet))
		next.ServeHTTP(w, r.WithContext(ContextWithWallet(r.Context(), wallet)))
	})
}

// RequireWallet rejects requests without a wallet identity
func RequireWallet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if WalletFromContext(r.Context()) == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized",
				"provide Authorization header with Bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractBearer extracts the token from the Authorization header
func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return strings.TrimSpace(authHeader)
}
