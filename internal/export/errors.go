package export

import "errors"

// Errors surfaced by the job-control surface. Anything affecting a single
// work item is recorded in State.Errors instead and never raised.
var (
	// ErrNoContent is returned when an export is initialized with neither
	// page URLs nor media files.
	ErrNoContent = errors.New("nothing to export")

	// ErrSessionExpired is returned when no state exists for a job ID,
	// either because it expired or was never created.
	ErrSessionExpired = errors.New("export session expired or invalid")

	// ErrArchiveCreate is returned when the archive file cannot be created.
	ErrArchiveCreate = errors.New("could not create archive")

	// ErrArchiveOpen is returned when an existing archive cannot be
	// reopened for appending.
	ErrArchiveOpen = errors.New("could not open archive")

	// ErrJobNotReady is returned when finalize is called before every
	// page URL has been attempted.
	ErrJobNotReady = errors.New("page processing not complete")

	// ErrTicketNotFound is returned when a download token is missing,
	// expired, or already consumed.
	ErrTicketNotFound = errors.New("download ticket not found")
)
