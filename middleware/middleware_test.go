package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"plantify/apperr"
	"plantify/logger"
	"plantify/models"
	"plantify/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeUsers map[primitive.ObjectID]*models.User

func (f fakeUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, apperr.NotFound("User not found")
	}
	return u, nil
}

type authFixture struct {
	auth      *Authenticator
	tokens    *utils.TokenService
	blacklist *utils.MemoryBlacklist
	buyer     *models.User
	admin     *models.User
}

func newAuthFixture() *authFixture {
	buyer := models.NewUser("Asha", "asha@example.com", "hash", models.RoleBuyer)
	buyer.ID = primitive.NewObjectID()
	admin := models.NewUser("Root", "root@example.com", "hash", models.RoleAdmin)
	admin.ID = primitive.NewObjectID()

	tokens := utils.NewTokenService("test-secret", time.Hour)
	bl := utils.NewMemoryBlacklist()
	users := fakeUsers{buyer.ID: buyer, admin.ID: admin}
	return &authFixture{
		auth:      NewAuthenticator(tokens, bl, users),
		tokens:    tokens,
		blacklist: bl,
		buyer:     buyer,
		admin:     admin,
	}
}

func (f *authFixture) token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := f.tokens.GenerateJWT(u.ID.Hex(), string(u.Role))
	require.NoError(t, err)
	return tok
}

var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	_, _ = w.Write([]byte(u.Email))
})

func decodeMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	msg, _ := body["message"].(string)
	return msg
}

func TestAuthenticate(t *testing.T) {
	f := newAuthFixture()
	h := f.auth.Authenticate(echoUser)

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+f.token(t, f.buyer))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "asha@example.com", rr.Body.String())
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: TokenCookie, Value: f.token(t, f.buyer)})
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Not authorized, no token", decodeMessage(t, rr))
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Token abc")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		other := utils.NewTokenService("other-secret", time.Hour)
		tok, err := other.GenerateJWT(f.buyer.ID.Hex(), "buyer")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Not authorized, token failed", decodeMessage(t, rr))
	})

	t.Run("unknown user", func(t *testing.T) {
		tok, err := f.tokens.GenerateJWT(primitive.NewObjectID().Hex(), "buyer")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Not authorized, user not found", decodeMessage(t, rr))
	})

	t.Run("revoked jti", func(t *testing.T) {
		tok := f.token(t, f.buyer)
		claims, err := f.tokens.ParseJWT(tok)
		require.NoError(t, err)
		require.NoError(t, f.blacklist.Revoke(context.Background(), claims.ID, time.Hour))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Token has been revoked", decodeMessage(t, rr))
	})

	t.Run("all sessions revoked", func(t *testing.T) {
		tok := f.token(t, f.admin)
		time.Sleep(2 * time.Millisecond)
		require.NoError(t, f.blacklist.RevokeUser(context.Background(), f.admin.ID.Hex(), time.Hour))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestRequireRoles(t *testing.T) {
	f := newAuthFixture()
	h := f.auth.Authenticate(RequireRoles(models.RoleSeller, models.RoleAdmin)(echoUser))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, f.buyer))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Access denied for role buyer", decodeMessage(t, rr))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, f.admin))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	t.Run("no user in context", func(t *testing.T) {
		rr := httptest.NewRecorder()
		AdminMiddleware(echoUser).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var seenID string
	h := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = logger.RequestID(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "req-42", seenID)
	assert.Equal(t, "req-42", rr.Header().Get(RequestIDHeader))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "request", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, int64(http.StatusCreated), fields["status"])
	assert.Equal(t, "/api/v1/orders", fields["path"])
	assert.Equal(t, "req-42", fields["request_id"])
}

func TestRequestLoggerGeneratesID(t *testing.T) {
	h := RequestLogger(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal server error", decodeMessage(t, rr))
}
