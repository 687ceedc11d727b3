package middleware

import (
	"context"
	"net/http"
	"strings"

	goSignIn "github.com/MrEthical07/goSignIn"
)

// ReceiptVerifier checks a sign-in receipt. *goSignIn.Engine satisfies it.
type ReceiptVerifier interface {
	VerifyReceipt(token string) (*goSignIn.ReceiptClaims, error)
}

type receiptContextKey struct{}

// ReceiptFromContext returns the claims stored by a guard.
func ReceiptFromContext(ctx context.Context) (*goSignIn.ReceiptClaims, bool) {
	claims, ok := ctx.Value(receiptContextKey{}).(*goSignIn.ReceiptClaims)
	return claims, ok
}

// RequireReceipt rejects requests without a valid "Bearer <receipt>"
// Authorization header and stores the claims in the request context.
func RequireReceipt(verifier ReceiptVerifier) func(http.Handler) http.Handler {
	return guard(verifier, nil)
}

// RequireVerifiedDevice is RequireReceipt plus a device check: the receipt
// must come from an already trusted device or from a confirmed biometric
// step-up.
func RequireVerifiedDevice(verifier ReceiptVerifier) func(http.Handler) http.Handler {
	return guard(verifier, func(c *goSignIn.ReceiptClaims) bool {
		return c.Trusted || c.StepUp == goSignIn.StepUpConfirmed.String()
	})
}

func guard(verifier ReceiptVerifier, accept func(*goSignIn.ReceiptClaims) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.VerifyReceipt(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if accept != nil && !accept(claims) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), receiptContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
