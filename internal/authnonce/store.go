// Package authnonce issues single-use sign-in nonces shared by every API
// instance through Redis.
package authnonce

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aman-zulfiqar/intentswap/internal/constants"
)

// A nonce is 10 hex chars of unix seconds followed by 22 random hex chars.
var nonceRe = regexp.MustCompile(`^[0-9a-f]{32}$`)

type Store struct {
	client redis.Cmdable
	ttl    time.Duration
	now    func() time.Time
}

func NewStore(client redis.Cmdable, ttl time.Duration) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if ttl <= 0 {
		ttl = constants.DefaultAuthNonceTTL
	}
	return &Store{client: client, ttl: ttl, now: time.Now}, nil
}

func ValidateNonce(nonce string) error {
	if !nonceRe.MatchString(nonce) {
		return fmt.Errorf("invalid nonce")
	}
	return nil
}

// Issue creates and stores a fresh nonce.
func (s *Store) Issue(ctx context.Context) (*Nonce, error) {
	now := s.now().UTC()
	value, err := newNonce(now)
	if err != nil {
		return nil, err
	}
	ok, err := s.client.SetNX(ctx, nonceKey(value), now.Unix(), s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("store nonce: %w", err)
	}
	if !ok {
		// 88 random bits colliding means something is badly wrong with rand
		return nil, fmt.Errorf("nonce collision")
	}
	return &Nonce{Value: value, IssuedAt: now, ExpiresAt: now.Add(s.ttl)}, nil
}

// Consume atomically removes the nonce. It succeeds at most once per nonce.
func (s *Store) Consume(ctx context.Context, nonce string) error {
	if err := ValidateNonce(nonce); err != nil {
		return err
	}
	issued, err := IssuedAt(nonce)
	if err != nil {
		return err
	}
	if s.now().Sub(issued) > s.ttl {
		// leave it for Redis to expire
		return ErrNotFound
	}

	_, err = s.client.GetDel(ctx, nonceKey(nonce)).Result()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("consume nonce: %w", err)
	}
	return nil
}

// IssuedAt decodes the timestamp prefix.
func IssuedAt(nonce string) (time.Time, error) {
	if len(nonce) < 10 {
		return time.Time{}, fmt.Errorf("invalid nonce")
	}
	secs, err := strconv.ParseInt(nonce[:10], 16, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid nonce timestamp: %w", err)
	}
	return time.Unix(secs, 0).UTC(), nil
}

func newNonce(now time.Time) (string, error) {
	b := make([]byte, 11)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return fmt.Sprintf("%010x", now.Unix()) + hex.EncodeToString(b), nil
}

func nonceKey(nonce string) string {
	return constants.RedisKeyAuthNoncePrefix + nonce
}
