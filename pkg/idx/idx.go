// Package idx generates the opaque identifiers used for user records and
// token IDs. IDs are ULIDs: 26 characters, lexicographically sortable by
// creation time.
package idx

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrInvalid reports a malformed ULID string.
var ErrInvalid = errors.New("idx: invalid id")

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a new ID for the current time.
func New() string {
	return NewAt(time.Now().UTC())
}

// NewAt returns a new ID for t. Safe for concurrent use.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Parse validates s and returns it in canonical (upper case) form.
func Parse(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalid
	}
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return "", ErrInvalid
	}
	return u.String(), nil
}

// Valid reports whether s is a well-formed ID.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}
