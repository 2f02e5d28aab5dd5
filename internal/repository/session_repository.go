package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rd "github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/shoplocal/onboarding-api/internal/cipher"
	"github.com/shoplocal/onboarding-api/internal/onboarding"
)

const prefix = "onboarding:session:"

var ErrSessionNotFound = errors.New("onboarding session not found")

// SessionRepository stores in-progress wizard sessions. Sessions are
// transient: every save refreshes the TTL, and abandoned sessions expire on
// their own. Nothing is ever written to durable storage.
//
// Both implementations round-trip sessions through an encrypted JSON payload,
// so Get always hands back a private copy and stored sessions never hold
// plaintext credentials.
type SessionRepository interface {
	Save(ctx context.Context, sess *onboarding.Session) error
	Get(ctx context.Context, id string) (*onboarding.Session, error)
	Delete(ctx context.Context, id string) error
}

func sealSession(cph cipher.Cipher, sess *onboarding.Session) (string, error) {
	sess.Touch()
	payload, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	sealed, err := cph.Encrypt(string(payload))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt session: %w", err)
	}
	return sealed, nil
}

func openSession(cph cipher.Cipher, sealed string) (*onboarding.Session, error) {
	payload, err := cph.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session: %w", err)
	}

	var sess onboarding.Session
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// RedisSessionRepository keeps sessions in redis so any replica can serve a
// wizard request.
type RedisSessionRepository struct {
	client *rd.Client
	cipher cipher.Cipher
	ttl    time.Duration
}

func NewRedisSessionRepository(client *rd.Client, ttl time.Duration, cph cipher.Cipher) *RedisSessionRepository {
	return &RedisSessionRepository{
		client: client,
		cipher: cph,
		ttl:    ttl,
	}
}

func (r *RedisSessionRepository) Save(ctx context.Context, sess *onboarding.Session) error {
	sealed, err := sealSession(r.cipher, sess)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, prefix+sess.ID, sealed, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) Get(ctx context.Context, id string) (*onboarding.Session, error) {
	sealed, err := r.client.Get(ctx, prefix+id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to retrieve session: %w", err)
	}

	return openSession(r.cipher, sealed)
}

func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, prefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// LocalSessionRepository is the single-process store used for local
// development and tests.
type LocalSessionRepository struct {
	cache  *cache.Cache
	cipher cipher.Cipher
	ttl    time.Duration
}

func NewLocalSessionRepository(ttl time.Duration, cph cipher.Cipher) *LocalSessionRepository {
	return &LocalSessionRepository{
		cache:  cache.New(ttl, 2*ttl),
		cipher: cph,
		ttl:    ttl,
	}
}

func (r *LocalSessionRepository) Save(_ context.Context, sess *onboarding.Session) error {
	sealed, err := sealSession(r.cipher, sess)
	if err != nil {
		return err
	}

	r.cache.Set(prefix+sess.ID, sealed, r.ttl)
	return nil
}

func (r *LocalSessionRepository) Get(_ context.Context, id string) (*onboarding.Session, error) {
	cached, ok := r.cache.Get(prefix + id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return openSession(r.cipher, cached.(string))
}

func (r *LocalSessionRepository) Delete(_ context.Context, id string) error {
	r.cache.Delete(prefix + id)
	return nil
}
