package credstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Load when no snapshot has been saved yet.
var ErrNotFound = errors.New("cookie snapshot not found")

// Cookie is one cookie as accumulated by a login session.
// Value is a credential: never log or print it.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	// HostOnly cookies are sent to Domain exactly, not to its subdomains.
	HostOnly bool      `json:"host_only"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitzero"`
	Secure   bool      `json:"secure"`
	HttpOnly bool      `json:"http_only"`
	SameSite string    `json:"same_site,omitempty"`
}

// Snapshot is the full cookie jar of one authenticated session.
type Snapshot struct {
	SessionID string    `json:"session_id"`
	SavedAt   time.Time `json:"saved_at"`
	Cookies   []Cookie  `json:"cookies"`
}

// Names returns the cookie names in snapshot order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		names = append(names, c.Name)
	}
	return names
}

// Store persists cookie snapshots. Save is a full overwrite: a store holds at
// most one snapshot.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
}
