package export

import (
	"context"
	"time"
)

// StateStore persists job state and download tickets with an expiry.
// Writes are last-write-wins; callers are expected to serialize calls
// per job ID.
type StateStore interface {
	// PutState stores or replaces the state for state.JobID, resetting
	// its expiry to ttl from now.
	PutState(ctx context.Context, state State, ttl time.Duration) error
	// GetState returns the state for jobID, or ErrSessionExpired if the
	// record is missing or past its expiry.
	GetState(ctx context.Context, jobID string) (State, error)
	// DeleteState removes the state for jobID. Deleting a missing record
	// is not an error.
	DeleteState(ctx context.Context, jobID string) error

	// PutTicket maps a download token to an archive path for ttl.
	PutTicket(ctx context.Context, token, archivePath string, ttl time.Duration) error
	// TakeTicket consumes a token: it returns the archive path and
	// deletes the ticket so every later call fails with ErrTicketNotFound.
	TakeTicket(ctx context.Context, token string) (string, error)
}

// Fetcher retrieves a URL and returns the raw response body.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Transformer rewrites a fetched page into its self-contained form.
type Transformer interface {
	Transform(ctx context.Context, html []byte, pageURL string) ([]byte, error)
}

// IDGenerator produces job IDs and download tokens.
type IDGenerator interface {
	NewID() (string, error)
}
