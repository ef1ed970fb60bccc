package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// EphemeralPrefix marks locally synthesized session identifiers. Ids with
	// this prefix exist only inside the gateway process and must never reach
	// the remote store. The type below enforces that; the prefix survives so
	// that operators can recognize these ids in logs.
	EphemeralPrefix = "ephemeral-"

	titleMaxRunes = 50
)

// ID identifies a conversation session. The zero value means "no session yet".
// A persisted ID carries the identifier the remote store assigned; an
// ephemeral ID is a local stand-in created when the store could not be
// reached. Only persisted ids have a remote form, so call sites cannot leak
// an ephemeral id to the backend by construction.
type ID struct {
	value     string
	ephemeral bool
}

// Persisted wraps an identifier returned by the remote store.
func Persisted(remoteID string) ID {
	return ID{value: remoteID}
}

// NewEphemeral synthesizes a unique local-only identifier.
func NewEphemeral() ID {
	return ID{value: EphemeralPrefix + uuid.NewString(), ephemeral: true}
}

// Parse reconstructs an ID from its string form, as received from route
// params or client payloads. Identifiers carrying the ephemeral prefix parse
// back as ephemeral, so they keep having no remote form.
func Parse(s string) ID {
	if s == "" {
		return ID{}
	}
	if strings.HasPrefix(s, EphemeralPrefix) {
		return ID{value: s, ephemeral: true}
	}
	return ID{value: s}
}

// IsZero reports whether no session is active.
func (id ID) IsZero() bool {
	return id.value == ""
}

// IsEphemeral reports whether the session lives only in this process.
func (id ID) IsEphemeral() bool {
	return id.ephemeral
}

// Remote returns the store-side identifier. ok is false for ephemeral and
// zero ids: those must never be sent to the store or the answer endpoint.
func (id ID) Remote() (string, bool) {
	if id.IsZero() || id.ephemeral {
		return "", false
	}
	return id.value, true
}

// String returns the identifier for display and logging.
func (id ID) String() string {
	return id.value
}

// Session is the client-side view of a conversation thread. The remote store
// owns the record; this is a read-through cache entry.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Archived  bool      `json:"is_archived"`
}

// DeriveTitle builds a session title from the first user message. Long seeds
// are cut at 50 runes with an ellipsis marker, matching what the store does
// when it derives titles server-side.
func DeriveTitle(seed string) string {
	runes := []rune(seed)
	if len(runes) <= titleMaxRunes {
		return seed
	}
	return string(runes[:titleMaxRunes]) + "..."
}
