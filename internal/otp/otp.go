// Package otp manages the short-lived one-time codes used for password
// reset and email verification. Records live in Redis keyed by
// (purpose, account) with a TTL, so at most one code is pending per account
// and purpose -- requesting a new code overwrites the previous one.
//
// Codes are stored as SHA-256 hashes, never plaintext. Consumption is an
// atomic check-and-delete inside a Redis WATCH transaction, so two
// concurrent validations of the same code cannot both succeed.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Purpose identifies what a one-time code is for. Codes requested for one
// purpose never validate for another.
type Purpose string

const (
	// PurposeReset codes authorize a password reset.
	PurposeReset Purpose = "reset"

	// PurposeVerifyEmail codes mark the account's email as verified.
	PurposeVerifyEmail Purpose = "verify-email"
)

// CodeLength is the number of digits in a generated code.
const CodeLength = 6

// keyPrefix namespaces OTP records in Redis.
const keyPrefix = "otp"

var (
	// ErrNotFound means no code is pending for the (account, purpose) pair.
	// Also returned after a code has been consumed -- codes are single-use.
	ErrNotFound = errors.New("no pending code")

	// ErrExpired means the pending code's validity window has elapsed.
	ErrExpired = errors.New("code expired")

	// ErrMismatch means the supplied code does not match the pending one.
	ErrMismatch = errors.New("code mismatch")

	// ErrUnavailable wraps Redis failures so callers can distinguish
	// infrastructure trouble from a bad code.
	ErrUnavailable = errors.New("otp store unavailable")
)

// record is the JSON value stored in Redis for a pending code.
type record struct {
	CodeHash  string `json:"code_hash"`
	ExpiresAt int64  `json:"expires_at"`
}

// Manager generates, stores, and consumes one-time codes. Safe for
// concurrent use; all coordination happens in Redis.
type Manager struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewManager creates an OTP manager storing codes with the given validity
// window.
func NewManager(rdb *redis.Client, ttl time.Duration) *Manager {
	return &Manager{redis: rdb, ttl: ttl}
}

// key builds the Redis key for an (account, purpose) pair. Account emails
// are lowercased so lookups are case-insensitive.
func (m *Manager) key(account string, purpose Purpose) string {
	return keyPrefix + ":" + string(purpose) + ":" + strings.ToLower(account)
}

// Request generates a fresh code for the (account, purpose) pair, stores it
// with the configured TTL, and returns the plaintext code for delivery.
// Any previously pending code for the same pair is overwritten and can no
// longer validate.
func (m *Manager) Request(ctx context.Context, account string, purpose Purpose) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}

	rec := record{
		CodeHash:  hashCode(code),
		ExpiresAt: time.Now().Add(m.ttl).Unix(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshaling otp record: %w", err)
	}

	// SET replaces any existing value, which is exactly the overwrite
	// semantics we want for repeated requests.
	if err := m.redis.Set(ctx, m.key(account, purpose), data, m.ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return code, nil
}

// Consume validates the supplied code against the pending record and
// deletes it on success. The lookup, comparison, and delete run inside a
// WATCH transaction: if two callers race on the same record, one EXEC fails
// and retries into ErrNotFound, so at most one Consume succeeds per code.
//
// Failure modes: ErrNotFound (nothing pending), ErrExpired (window elapsed;
// the stale record is purged), ErrMismatch (wrong code; record untouched).
func (m *Manager) Consume(ctx context.Context, account string, purpose Purpose, code string) error {
	const maxRetries = 4
	key := m.key(account, purpose)
	providedHash := hashCode(code)

	for i := 0; i < maxRetries; i++ {
		err := m.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			var rec record
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("unmarshaling otp record: %w", err)
			}

			if time.Now().Unix() > rec.ExpiresAt {
				// Eagerly purge the stale record; the Redis TTL is only
				// a backstop.
				if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				}); err != nil {
					return err
				}
				return ErrExpired
			}

			if subtle.ConstantTimeCompare([]byte(rec.CodeHash), []byte(providedHash)) != 1 {
				// Wrong code: leave the record pending so the account
				// holder can retry until expiry.
				return ErrMismatch
			}

			// Matched: delete in the same transaction that read the record.
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			// Another consumer modified the record between our read and
			// EXEC. Retry; the re-read will see the record gone.
			continue
		}
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			if errors.Is(err, ErrExpired) || errors.Is(err, ErrMismatch) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil
	}

	return ErrNotFound
}

// generateCode produces a uniformly random numeric code of CodeLength
// digits, zero-padded.
func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < CodeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", CodeLength, n), nil
}

// hashCode computes the hex-encoded SHA-256 hash of a code. Only hashes are
// stored at rest.
func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
