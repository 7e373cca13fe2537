package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"plantify/apperr"
	"plantify/logger"
	"plantify/models"
	"plantify/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Key type for context
type contextKey string

const (
	userContextKey   = contextKey("user")
	claimsContextKey = contextKey("claims")
)

// TokenCookie is the httpOnly cookie set on login
const TokenCookie = "token"

// UserLookup loads the account behind a token
type UserLookup interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Authenticator verifies session tokens and attaches the account to the
// request context
type Authenticator struct {
	tokens    *utils.TokenService
	blacklist utils.TokenBlacklist
	users     UserLookup
}

func NewAuthenticator(tokens *utils.TokenService, blacklist utils.TokenBlacklist, users UserLookup) *Authenticator {
	return &Authenticator{tokens: tokens, blacklist: blacklist, users: users}
}

// Authenticate requires a valid, unrevoked token from the Authorization
// header or the token cookie. The user is reloaded on every request.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractToken(r)
		if tokenStr == "" {
			utils.WriteError(w, r, apperr.Unauthorized("Not authorized, no token"))
			return
		}

		claims, err := a.tokens.ParseJWT(tokenStr)
		if err != nil {
			msg := "Not authorized, token failed"
			if errors.Is(err, utils.ErrExpiredToken) {
				msg = "Session expired, please log in again"
			}
			utils.WriteError(w, r, apperr.Unauthorized(msg))
			return
		}

		ctx := r.Context()
		if err := a.checkRevoked(ctx, claims); err != nil {
			utils.WriteError(w, r, err)
			return
		}

		id, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			utils.WriteError(w, r, apperr.Unauthorized("Not authorized, token failed"))
			return
		}
		user, err := a.users.FindByID(ctx, id)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				err = apperr.Unauthorized("Not authorized, user not found")
			}
			utils.WriteError(w, r, err)
			return
		}

		ctx = WithUser(ctx, user, claims)
		ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.String("user_id", claims.UserID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) checkRevoked(ctx context.Context, claims *utils.Claims) error {
	if a.blacklist == nil {
		return nil
	}
	revoked, err := a.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "", err)
	}
	if revoked {
		return apperr.Unauthorized("Token has been revoked")
	}
	revoked, err = a.blacklist.IsUserRevoked(ctx, claims.UserID, claims.IssuedAtTime())
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "", err)
	}
	if revoked {
		return apperr.Unauthorized("Session expired, please log in again")
	}
	return nil
}

func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireRoles allows only the listed roles through
func RequireRoles(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := CurrentUser(r.Context())
			if !ok {
				utils.WriteError(w, r, apperr.Unauthorized("Not authorized"))
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			utils.WriteError(w, r, apperr.Forbidden("Access denied for role "+string(user.Role)))
		})
	}
}

// AdminMiddleware ensures that the user has admin privileges
func AdminMiddleware(next http.Handler) http.Handler {
	return RequireRoles(models.RoleAdmin)(next)
}

// WithUser attaches the authenticated account and its token claims
func WithUser(ctx context.Context, user *models.User, claims *utils.Claims) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	return context.WithValue(ctx, claimsContextKey, claims)
}

func CurrentUser(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userContextKey).(*models.User)
	return u, ok && u != nil
}

func CurrentClaims(ctx context.Context) (*utils.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey).(*utils.Claims)
	return c, ok && c != nil
}
