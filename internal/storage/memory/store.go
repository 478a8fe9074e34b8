// Package memory provides an in-process StateStore for development,
// testing, and single-process deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sanneemmanuel/turnstatic/internal/export"
)

// Store keeps job state and download tickets in maps with lazy expiry:
// expired records are dropped when they are next read.
type Store struct {
	mu      sync.RWMutex
	states  map[string]stateEntry
	tickets map[string]ticketEntry
	now     func() time.Time
}

type stateEntry struct {
	state   export.State
	expires time.Time
}

type ticketEntry struct {
	archivePath string
	expires     time.Time
}

// NewStore constructs a Store.
func NewStore() *Store {
	return &Store{
		states:  make(map[string]stateEntry),
		tickets: make(map[string]ticketEntry),
		now:     time.Now,
	}
}

// PutState stores or replaces the job's state, resetting its expiry.
func (s *Store) PutState(_ context.Context, state export.State, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.JobID] = stateEntry{
		state:   state.Clone(),
		expires: s.now().Add(ttl),
	}
	return nil
}

// GetState returns a copy of the job's state, or ErrSessionExpired when
// the record is missing or past its expiry.
func (s *Store) GetState(_ context.Context, jobID string) (export.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.states[jobID]
	if !ok {
		return export.State{}, export.ErrSessionExpired
	}
	if s.now().After(entry.expires) {
		delete(s.states, jobID)
		return export.State{}, export.ErrSessionExpired
	}
	return entry.state.Clone(), nil
}

// DeleteState removes the job's state; missing records are not an error.
func (s *Store) DeleteState(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, jobID)
	return nil
}

// PutTicket maps a download token to an archive path for ttl.
func (s *Store) PutTicket(_ context.Context, token, archivePath string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[token] = ticketEntry{
		archivePath: archivePath,
		expires:     s.now().Add(ttl),
	}
	return nil
}

// TakeTicket consumes a token, so at most one caller ever receives the
// archive path for it.
func (s *Store) TakeTicket(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tickets[token]
	if !ok {
		return "", export.ErrTicketNotFound
	}
	delete(s.tickets, token)
	if s.now().After(entry.expires) {
		return "", export.ErrTicketNotFound
	}
	return entry.archivePath, nil
}
