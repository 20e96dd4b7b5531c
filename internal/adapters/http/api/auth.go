package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/okian/scoutnotes/pkg/logger"
)

// HeaderEvaluatorID carries the owner when a trusted gateway authenticates.
const HeaderEvaluatorID = "X-Evaluator-ID"

// Auth modes.
const (
	AuthModeHeader = "header"
	AuthModeJWT    = "jwt"
)

type contextKeyOwnerID struct{}

// ContextKeyOwnerID holds the authenticated evaluator on the request context.
var ContextKeyOwnerID = contextKeyOwnerID{}

// OwnerID returns the authenticated evaluator stored on ctx, or "".
func OwnerID(ctx context.Context) string {
	id, ok := ctx.Value(ContextKeyOwnerID).(string)
	if !ok {
		return ""
	}
	return id
}

// WithOwnerID returns ctx carrying ownerID.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ContextKeyOwnerID, ownerID)
}

// Authenticator derives the draft owner from a request.
type Authenticator struct {
	mode   string
	secret []byte
	parser *jwt.Parser
	logger logger.Logger
}

// NewAuthenticator returns an authenticator for mode. The jwt mode verifies
// HS256 bearer tokens with secret and takes the owner from the sub claim.
func NewAuthenticator(mode, secret string) (*Authenticator, error) {
	a := &Authenticator{mode: mode, logger: logger.Get().Named("auth")}
	switch mode {
	case AuthModeHeader:
	case AuthModeJWT:
		if secret == "" {
			return nil, NewKind("auth", ErrAuthConfig)
		}
		a.secret = []byte(secret)
		a.parser = jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		)
	default:
		return nil, WrapKind("auth", ErrAuthConfig, fmt.Errorf("unknown mode %q", mode))
	}
	return a, nil
}

// Middleware rejects requests without an owner with 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, err := a.owner(r)
		if err != nil {
			a.logger.Warn(r.Context(), "unauthorized request",
				logger.String("path", r.URL.Path),
				logger.String("requestID", middleware.GetReqID(r.Context())),
				logger.Error(err))
			writeError(w, http.StatusUnauthorized, "unauthorized", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOwnerID(r.Context(), owner)))
	})
}

func (a *Authenticator) owner(r *http.Request) (string, error) {
	if a.mode == AuthModeHeader {
		id := strings.TrimSpace(r.Header.Get(HeaderEvaluatorID))
		if id == "" {
			return "", WrapKind("auth", ErrUnauthorized, fmt.Errorf("missing %s", HeaderEvaluatorID))
		}
		return id, nil
	}

	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", WrapKind("auth", ErrUnauthorized, fmt.Errorf("missing bearer token"))
	}
	var claims jwt.RegisteredClaims
	if _, err := a.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}); err != nil {
		return "", WrapKind("auth", ErrUnauthorized, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", WrapKind("auth", ErrUnauthorized, fmt.Errorf("token has no subject"))
	}
	return claims.Subject, nil
}
