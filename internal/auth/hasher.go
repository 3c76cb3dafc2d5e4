package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// DefaultCost is the bcrypt work factor used for stored password hashes.
const DefaultCost = 10

// ErrMalformedHash is returned when a stored hash cannot be parsed.
var ErrMalformedHash = errors.New("malformed password hash")

// HasherConfig configures a Hasher.
type HasherConfig struct {
	// Cost is the bcrypt work factor. Zero means DefaultCost.
	Cost int
	// MaxConcurrent bounds how many hash/verify calls run at once.
	// Zero means GOMAXPROCS.
	MaxConcurrent int
}

// Hasher produces and verifies salted bcrypt hashes. It is safe for
// concurrent use.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted
}

// NewHasher creates a Hasher from cfg.
func NewHasher(cfg HasherConfig) (*Hasher, error) {
	cost := cfg.Cost
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	n := cfg.MaxConcurrent
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}

	return &Hasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(n)),
	}, nil
}

// Hash returns a bcrypt hash of plaintext. Two calls with the same input
// produce different strings because of the random salt. Any length of
// plaintext is accepted.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	hash, err := bcrypt.GenerateFromPassword(prehash(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// Verify reports whether plaintext matches hash. A mismatch is (false, nil);
// an unusable hash yields ErrMalformedHash.
func (h *Hasher) Verify(ctx context.Context, plaintext, hash string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hash), prehash(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

// prehash condenses plaintext to 44 bytes so bcrypt's 72-byte input limit
// never truncates or rejects a password.
func prehash(plaintext string) []byte {
	sum := sha256.Sum256([]byte(plaintext))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}
