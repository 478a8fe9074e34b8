package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sanneemmanuel/turnstatic/internal/metrics"
)

// htaccessRules is the routing metadata written into every archive so a
// compatible web server resolves extensionless URLs to their .html file.
// The exact text is part of the compatibility contract.
const htaccessRules = "RewriteEngine On\nRewriteCond %{REQUEST_FILENAME} !-f\nRewriteRule ^(.*)$ $1.html [L]"

// jobIDPrefix namespaces job IDs in the shared state store.
const jobIDPrefix = "export_"

// Job drives the export state machine. It holds no per-job fields: every
// call loads the job's state from the store, mutates it, and writes it
// back, so logically sequential calls may run in physically separate
// invocations.
type Job struct {
	store  StateStore
	loader *PageLoader
	idGen  IDGenerator
	cfg    Config
	logger *zap.Logger
}

// NewJob constructs the export orchestrator.
func NewJob(store StateStore, loader *PageLoader, idGen IDGenerator, cfg Config, logger *zap.Logger) *Job {
	metrics.Init()
	return &Job{
		store:  store,
		loader: loader,
		idGen:  idGen,
		cfg:    cfg,
		logger: logger,
	}
}

// Settings exposes the pipeline configuration the job was built with.
func (j *Job) Settings() Config {
	return j.cfg
}

// Init creates a new export session: an empty archive on disk and a
// persisted state record. URLs are deduplicated preserving order; empty
// values are dropped. It fails only if there is nothing at all to export
// or the archive cannot be created.
func (j *Job) Init(ctx context.Context, urls []string, mediaFiles []string) (InitResult, error) {
	urls = dedupe(urls)
	if len(urls) == 0 && len(mediaFiles) == 0 {
		return InitResult{}, ErrNoContent
	}

	id, err := j.idGen.NewID()
	if err != nil {
		return InitResult{}, fmt.Errorf("generate job id: %w", err)
	}
	jobID := jobIDPrefix + id
	archivePath := filepath.Join(j.cfg.TempDir, jobID+".zip")

	if err := CreateArchive(archivePath); err != nil {
		return InitResult{}, err
	}

	state := State{
		JobID:       jobID,
		Phase:       PhaseProcessing,
		ArchivePath: archivePath,
		URLs:        urls,
		MediaFiles:  append([]string(nil), mediaFiles...),
		Total:       len(urls) + len(mediaFiles),
		Errors:      map[string]string{},
	}
	if len(urls) == 0 {
		state.Phase = PhaseMedia
	}
	if err := j.store.PutState(ctx, state, j.cfg.StateTTL); err != nil {
		return InitResult{}, fmt.Errorf("persist state: %w", err)
	}

	j.logger.Info("export initialized",
		zap.String("job_id", jobID),
		zap.Int("urls", len(urls)),
		zap.Int("media_files", len(mediaFiles)),
	)
	metrics.ObserveJob("initialized")
	return InitResult{JobID: jobID, Total: state.Total}, nil
}

// AdvanceBatch drains up to BatchSize unprocessed URLs through the page
// loader into the archive. A page that exhausts its retries is recorded
// in Errors but still marked processed: processed means attempted, and a
// failed page never blocks job completion. Each attempted item bumps
// Current exactly once, even across caller-side retries, because the
// remaining set is recomputed from the persisted ProcessedURLs.
func (j *Job) AdvanceBatch(ctx context.Context, jobID string) (BatchResult, error) {
	state, err := j.store.GetState(ctx, jobID)
	if err != nil {
		return BatchResult{}, err
	}

	writer, err := OpenForAppend(state.ArchivePath)
	if err != nil {
		return BatchResult{}, err
	}

	remaining := state.RemainingURLs()
	n := len(remaining)
	if n > j.cfg.BatchSize {
		n = j.cfg.BatchSize
	}

	for _, pageURL := range remaining[:n] {
		start := time.Now()
		result := j.loader.Load(ctx, pageURL)
		if result.OK() {
			if err := writer.AddEntry(ArchiveEntryName(pageURL), result.HTML); err != nil {
				// Archive failures are fatal to the call, not the item:
				// bail without persisting so the job stays at its
				// last-good state and the session file is discarded.
				writer.Abort()
				return BatchResult{}, fmt.Errorf("%w: %v", ErrArchiveOpen, err)
			}
			metrics.ObservePage("exported", time.Since(start))
		} else {
			state.Errors[pageURL] = result.Err
			metrics.ObservePage("failed", time.Since(start))
			j.logger.Warn("page export failed",
				zap.String("job_id", jobID),
				zap.String("url", pageURL),
				zap.String("error", result.Err),
			)
		}
		state.ProcessedURLs = append(state.ProcessedURLs, pageURL)
		state.Current++
	}

	if err := writer.Close(); err != nil {
		return BatchResult{}, fmt.Errorf("%w: %v", ErrArchiveOpen, err)
	}

	if len(state.ProcessedURLs) >= len(state.URLs) {
		state.Phase = PhaseMedia
	}
	if err := j.store.PutState(ctx, state, j.cfg.StateTTL); err != nil {
		return BatchResult{}, fmt.Errorf("persist state: %w", err)
	}

	metrics.ObserveBatch()
	return BatchResult{
		Processed: state.Current,
		Total:     state.Total,
		Phase:     state.Phase,
		Remaining: len(remaining) - n,
		Errors:    state.Errors,
	}, nil
}

// Finalize copies media files into the archive, writes the routing
// metadata, seals the archive, and exchanges the job's state for a
// single-use download ticket. A missing or unreadable media file is
// skipped silently; only successfully written files count as added.
func (j *Job) Finalize(ctx context.Context, jobID string) (FinalizeResult, error) {
	state, err := j.store.GetState(ctx, jobID)
	if err != nil {
		return FinalizeResult{}, err
	}
	if state.Phase != PhaseMedia {
		return FinalizeResult{}, ErrJobNotReady
	}

	writer, err := OpenForAppend(state.ArchivePath)
	if err != nil {
		return FinalizeResult{}, err
	}

	added := 0
	for _, file := range state.MediaFiles {
		name, ok := j.mediaEntryName(file)
		if !ok {
			continue
		}
		if err := writer.AddFile(name, file); err != nil {
			j.logger.Debug("media file skipped",
				zap.String("job_id", jobID),
				zap.String("file", file),
				zap.Error(err),
			)
			continue
		}
		added++
		state.Current++
	}

	if err := writer.AddEntry(".htaccess", []byte(htaccessRules)); err != nil {
		writer.Abort()
		return FinalizeResult{}, fmt.Errorf("%w: %v", ErrArchiveOpen, err)
	}
	if err := writer.Close(); err != nil {
		return FinalizeResult{}, fmt.Errorf("%w: %v", ErrArchiveOpen, err)
	}

	token, err := j.idGen.NewID()
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("generate download token: %w", err)
	}
	if err := j.store.PutTicket(ctx, token, state.ArchivePath, j.cfg.TicketTTL); err != nil {
		return FinalizeResult{}, fmt.Errorf("persist ticket: %w", err)
	}
	// The archive now belongs to the ticket; the job record is done.
	if err := j.store.DeleteState(ctx, jobID); err != nil {
		j.logger.Warn("state cleanup failed", zap.String("job_id", jobID), zap.Error(err))
	}

	metrics.ObserveMedia(added)
	metrics.ObserveJob("finalized")
	j.logger.Info("export finalized",
		zap.String("job_id", jobID),
		zap.Int("added_files", added),
		zap.Int("page_errors", len(state.Errors)),
	)
	return FinalizeResult{
		DownloadToken: token,
		AddedFiles:    added,
		Errors:        state.Errors,
	}, nil
}

// Cancel deletes the job's archive and state. Cancelling a missing or
// already-finalized job is a silent no-op, and Cancel is idempotent.
func (j *Job) Cancel(ctx context.Context, jobID string) error {
	state, err := j.store.GetState(ctx, jobID)
	if err != nil {
		return nil
	}
	if state.ArchivePath != "" {
		_ = os.Remove(state.ArchivePath)
	}
	if err := j.store.DeleteState(ctx, jobID); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	metrics.ObserveJob("cancelled")
	j.logger.Info("export cancelled", zap.String("job_id", jobID))
	return nil
}

// ClaimDownload consumes a download token and returns the archive path.
// Every call after the first successful one fails with ErrTicketNotFound.
// The caller owns streaming the file and removing it afterwards.
func (j *Job) ClaimDownload(ctx context.Context, token string) (string, error) {
	path, err := j.store.TakeTicket(ctx, token)
	if err != nil {
		return "", err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return "", ErrTicketNotFound
	}
	return path, nil
}

// mediaEntryName maps an absolute media path to its uploads/ entry name.
// Paths outside the media root are refused.
func (j *Job) mediaEntryName(file string) (string, bool) {
	rel, err := filepath.Rel(j.cfg.MediaRoot, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return "uploads/" + filepath.ToSlash(rel), true
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
