package export

// Phase represents the lifecycle stage of an export job.
type Phase string

// Phase values. Transitions are forward-only; done is terminal and is
// never persisted because finalize retires the state record.
const (
	PhaseProcessing Phase = "processing"
	PhaseMedia      Phase = "media"
	PhaseDone       Phase = "done"
)

// State is the serialized record an export job persists between
// invocations. It is read at the start and rewritten at the end of every
// job-control call; no fields live in process memory across calls.
type State struct {
	JobID         string            `json:"job_id"`
	Phase         Phase             `json:"phase"`
	ArchivePath   string            `json:"archive_path"`
	URLs          []string          `json:"urls"`
	MediaFiles    []string          `json:"media_files"`
	ProcessedURLs []string          `json:"processed_urls"`
	Current       int               `json:"current"`
	Total         int               `json:"total"`
	Errors        map[string]string `json:"errors"`
}

// RemainingURLs returns the URLs not yet attempted, in the original
// insertion order so batches are stable across invocations.
func (s *State) RemainingURLs() []string {
	done := make(map[string]struct{}, len(s.ProcessedURLs))
	for _, u := range s.ProcessedURLs {
		done[u] = struct{}{}
	}
	var remaining []string
	for _, u := range s.URLs {
		if _, ok := done[u]; !ok {
			remaining = append(remaining, u)
		}
	}
	return remaining
}

// Clone returns a deep copy so stored state cannot be mutated through
// a returned reference.
func (s State) Clone() State {
	cp := s
	cp.URLs = append([]string(nil), s.URLs...)
	cp.MediaFiles = append([]string(nil), s.MediaFiles...)
	cp.ProcessedURLs = append([]string(nil), s.ProcessedURLs...)
	cp.Errors = make(map[string]string, len(s.Errors))
	for k, v := range s.Errors {
		cp.Errors[k] = v
	}
	return cp
}

// InitResult is returned by Job.Init.
type InitResult struct {
	JobID string `json:"job_id"`
	Total int    `json:"total"`
}

// BatchResult summarizes one advance-batch invocation.
type BatchResult struct {
	Processed int               `json:"processed"`
	Total     int               `json:"total"`
	Phase     Phase             `json:"phase"`
	Remaining int               `json:"remaining"`
	Errors    map[string]string `json:"errors"`
}

// FinalizeResult carries the download token minted when the archive is
// sealed, along with the accumulated per-URL errors.
type FinalizeResult struct {
	DownloadToken string            `json:"download_token"`
	AddedFiles    int               `json:"added_files"`
	Errors        map[string]string `json:"errors"`
}

// LoadResult is the explicit outcome of one page load: either the
// transformed HTML or the message of the last failed attempt.
type LoadResult struct {
	HTML []byte
	Err  string
}

// OK reports whether the load produced usable HTML.
func (r LoadResult) OK() bool {
	return r.Err == ""
}
