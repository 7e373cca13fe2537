package utils

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist revokes tokens before they expire (logout, password reset,
// role change)
type TokenBlacklist interface {
	// Revoke blacklists a single token id for ttl
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// RevokeUser rejects every token of userID issued before now, at
	// millisecond precision
	RevokeUser(ctx context.Context, userID string, ttl time.Duration) error
	IsUserRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
}

const blacklistPrefix = "plantify:token:"

// RedisBlacklist stores revocations in Redis so every instance sees them
type RedisBlacklist struct {
	client *redis.Client
}

// NewRedisBlacklist connects to addr and checks the connection
func NewRedisBlacklist(ctx context.Context, addr, password string, db int) (*RedisBlacklist, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisBlacklist{client: client}, nil
}

// NewRedisBlacklistWithClient wraps an existing client
func NewRedisBlacklistWithClient(client *redis.Client) *RedisBlacklist {
	return &RedisBlacklist{client: client}
}

func (b *RedisBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := b.client.Set(ctx, blacklistPrefix+"jti:"+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, blacklistPrefix+"jti:"+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return n > 0, nil
}

func (b *RedisBlacklist) RevokeUser(ctx context.Context, userID string, ttl time.Duration) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := b.client.Set(ctx, blacklistPrefix+"user:"+userID, now, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return nil
}

func (b *RedisBlacklist) IsUserRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	raw, err := b.client.Get(ctx, blacklistPrefix+"user:"+userID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user revocation: %w", err)
	}
	revokedAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("failed to parse revocation timestamp: %w", err)
	}
	return issuedAt.UnixMilli() < revokedAt, nil
}

// Close closes the Redis client
func (b *RedisBlacklist) Close() error {
	return b.client.Close()
}

var _ TokenBlacklist = (*RedisBlacklist)(nil)

// MemoryBlacklist is the single-instance fallback used when Redis is not configured
type MemoryBlacklist struct {
	mu      sync.Mutex
	tokens  map[string]time.Time // jti -> expiry
	users   map[string]time.Time // userID -> revoked at
	expires map[string]time.Time // userID -> entry expiry
}

func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{
		tokens:  make(map[string]time.Time),
		users:   make(map[string]time.Time),
		expires: make(map[string]time.Time),
	}
}

func (b *MemoryBlacklist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[jti] = time.Now().Add(ttl)
	return nil
}

func (b *MemoryBlacklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	expiry, ok := b.tokens[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(b.tokens, jti)
		return false, nil
	}
	return true, nil
}

func (b *MemoryBlacklist) RevokeUser(_ context.Context, userID string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	b.users[userID] = now
	b.expires[userID] = now.Add(ttl)
	return nil
}

func (b *MemoryBlacklist) IsUserRevoked(_ context.Context, userID string, issuedAt time.Time) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	revokedAt, ok := b.users[userID]
	if !ok {
		return false, nil
	}
	if time.Now().After(b.expires[userID]) {
		delete(b.users, userID)
		delete(b.expires, userID)
		return false, nil
	}
	return issuedAt.UnixMilli() < revokedAt.UnixMilli(), nil
}

var _ TokenBlacklist = (*MemoryBlacklist)(nil)
