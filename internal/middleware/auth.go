package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"storefront/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// APIKeyHeader authenticates service callers such as the payment system.
const APIKeyHeader = "X-API-Key"

var errMissingCredentials = errors.New("missing credentials")

// Claims are the JWT claims the service accepts. The subject is the user id.
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// NewToken signs an HS256 token for userID with role, valid for ttl.
func NewToken(secret string, userID uuid.UUID, role model.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// WithIdentity stores the authenticated caller in ctx.
func WithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom returns the caller stored by Authenticate.
func IdentityFrom(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(model.Identity)
	return identity, ok
}

// Authenticate resolves the caller from an API key or a bearer token. A valid API key
// authenticates as admin. Websocket clients may pass the token as the access_token query
// parameter because browsers cannot set headers on the upgrade request.
func Authenticate(apiKey, jwtSecret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := authenticate(r, apiKey, jwtSecret)
			if err != nil {
				logger.Warn().
					Err(err).
					Str("path", r.URL.Path).
					Str("request_id", RequestIDFrom(r.Context())).
					Msg("authentication failed")
				writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorised, "unauthorised: "+err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func authenticate(r *http.Request, apiKey, jwtSecret string) (model.Identity, error) {
	if provided := r.Header.Get(APIKeyHeader); provided != "" {
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			return model.Identity{}, errors.New("invalid API key")
		}
		return model.Identity{Role: model.RoleAdmin}, nil
	}

	token := r.URL.Query().Get("access_token")
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, value, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || value == "" {
			return model.Identity{}, errors.New("invalid authorization header")
		}
		token = value
	}
	if token == "" {
		return model.Identity{}, errMissingCredentials
	}

	return parseToken(token, jwtSecret)
}

func parseToken(tokenString, secret string) (model.Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return model.Identity{}, fmt.Errorf("invalid token: %w", err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.Identity{}, errors.New("invalid token subject")
	}

	role := claims.Role
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		return model.Identity{}, fmt.Errorf("unknown role %q", role)
	}

	return model.Identity{UserID: userID, Role: role}, nil
}

// RequireRole rejects callers whose role is not in roles.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFrom(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorised, "unauthorised: missing credentials")
				return
			}
			if !slices.Contains(roles, identity.Role) {
				writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, "forbidden: insufficient role")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects callers that are not a user account, such as API key callers.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFrom(r.Context())
		if !ok || identity.UserID == uuid.Nil {
			writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, "forbidden: a user account is required")
			return
		}

		next.ServeHTTP(w, r)
	})
}
