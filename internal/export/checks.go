package export

import (
	"net/url"
	"os"
	"path/filepath"
)

// Check is the result of one environment capability probe.
type Check struct {
	Label   string `json:"label"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// CheckCapabilities probes whether the environment can run an export:
// the temp directory accepts writes, the site URL is a usable origin,
// and the media root (when configured) exists.
func CheckCapabilities(cfg Config) []Check {
	checks := []Check{
		checkTempDirWritable(cfg.TempDir),
		checkSiteURL(cfg.SiteURL),
	}
	if cfg.MediaRoot != "" {
		checks = append(checks, checkMediaRoot(cfg.MediaRoot))
	}
	return checks
}

// AllOK reports whether every check passed.
func AllOK(checks []Check) bool {
	for _, c := range checks {
		if !c.OK {
			return false
		}
	}
	return true
}

func checkTempDirWritable(dir string) Check {
	check := Check{Label: "Temp directory writable"}
	probe := filepath.Join(dir, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		check.Message = "make the temp directory writable"
		return check
	}
	_ = os.Remove(probe)
	check.OK = true
	return check
}

func checkSiteURL(siteURL string) Check {
	check := Check{Label: "Site URL"}
	u, err := url.Parse(siteURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		check.Message = "set an absolute site URL"
		return check
	}
	check.OK = true
	return check
}

func checkMediaRoot(root string) Check {
	check := Check{Label: "Media root"}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		check.Message = "media root is not a readable directory"
		return check
	}
	check.OK = true
	return check
}
