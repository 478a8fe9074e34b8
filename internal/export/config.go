package export

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds the settings for an export pipeline. It is decoupled from
// Viper so the pipeline can be constructed and tested independently of how
// the service is configured.
type Config struct {
	// SiteURL is the root of the site being exported; it defines the
	// same-origin boundary for inlining and asset rewriting.
	SiteURL string
	// MediaRoot is the directory media file paths are made relative to
	// when copied under uploads/ in the archive.
	MediaRoot string
	// TempDir is where in-progress archives are written.
	TempDir string

	// BatchSize bounds how many pages one advance call attempts. Kept
	// small because each fetch+transform is latency-bound and a call must
	// finish inside a single invocation's time budget.
	BatchSize  int
	MaxRetries int
	RetryDelay time.Duration

	FetchTimeout time.Duration
	MaxRedirects int
	VerifyTLS    bool
	UserAgent    string

	// StateTTL is how long job state survives without an invocation.
	StateTTL time.Duration
	// TicketTTL is how long a minted download token stays valid.
	TicketTTL time.Duration

	Rules InlineRules
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	u, err := url.Parse(c.SiteURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("export.site_url must be an absolute URL")
	}
	if c.TempDir == "" {
		return fmt.Errorf("export.temp_dir must be set")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("export.batch_size must be > 0")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("export.max_retries must be > 0")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("export.retry_delay must be >= 0")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("export.fetch_timeout must be > 0")
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("export.max_redirects must be >= 0")
	}
	if c.StateTTL <= 0 {
		return fmt.Errorf("export.state_ttl must be > 0")
	}
	if c.TicketTTL <= 0 {
		return fmt.Errorf("export.ticket_ttl must be > 0")
	}
	return nil
}
