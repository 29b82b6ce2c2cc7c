package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/voxtype/voxtype/internal/types"
	"github.com/voxtype/voxtype/internal/util"
)

const (
	defaultReleaseURL = "https://api.github.com/repos/voxtype/voxtype/releases/latest"

	releaseCheckInterval = 24 * time.Hour
	releaseCheckDelay    = 30 * time.Second // keep startup unblocked
	releaseCheckTimeout  = 30 * time.Second
	releaseCheckRetries  = 3
)

// VersionChecker polls the release feed and reports whether a newer build is
// available. It is safe for concurrent use; Info never blocks on the network.
type VersionChecker struct {
	url    string
	client *http.Client

	mu     sync.RWMutex
	latest string
	etag   string
}

// NewVersionChecker returns an idle checker; start it with Run.
func NewVersionChecker() *VersionChecker {
	return &VersionChecker{
		url:    defaultReleaseURL,
		client: &http.Client{Timeout: releaseCheckTimeout},
	}
}

// Run polls daily until the context is canceled. The first check waits out a
// short delay so it never competes with startup.
func (vc *VersionChecker) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(releaseCheckDelay):
	}
	vc.checkWithRetry(ctx)

	ticker := time.NewTicker(releaseCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			vc.checkWithRetry(ctx)
		}
	}
}

// checkWithRetry runs one check cycle, backing off between failed attempts.
func (vc *VersionChecker) checkWithRetry(ctx context.Context) {
	backoff := util.NewBackoff(time.Minute, 10*time.Minute)
	for attempt := 0; attempt < releaseCheckRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff.Next()):
			}
		}
		if vc.check(ctx) {
			return
		}
	}
}

// check fetches the latest release once. It reports false only for failures
// worth retrying (network errors, rate limits, server errors).
func (vc *VersionChecker) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, vc.url, http.NoBody)
	if err != nil {
		return true
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "voxtype/"+Version)

	vc.mu.RLock()
	if vc.etag != "" {
		req.Header.Set("If-None-Match", vc.etag)
	}
	vc.mu.RUnlock()

	resp, err := vc.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return true
	case resp.StatusCode == http.StatusNotFound:
		// No releases published yet.
		return true
	case resp.StatusCode >= 500,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusTooManyRequests:
		return false
	case resp.StatusCode != http.StatusOK:
		return true
	}

	var release struct {
		TagName    string `json:"tag_name"`
		Draft      bool   `json:"draft"`
		Prerelease bool   `json:"prerelease"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return false
	}
	if release.Draft || release.Prerelease || release.TagName == "" {
		return true
	}

	vc.mu.Lock()
	vc.latest = strings.TrimPrefix(release.TagName, "v")
	if etag := resp.Header.Get("ETag"); etag != "" {
		vc.etag = etag
	}
	vc.mu.Unlock()
	return true
}

// Info returns the build and update information reported in status.
func (vc *VersionChecker) Info() types.VersionInfo {
	vc.mu.RLock()
	latest := vc.latest
	vc.mu.RUnlock()

	current := strings.TrimPrefix(Version, "v")
	info := types.VersionInfo{
		Current:   current,
		Latest:    latest,
		Commit:    Commit,
		BuildTime: util.FormatHumanTime(BuildTime),
	}
	if latest != "" && current != "dev" && current != "unknown" {
		info.UpdateAvail = semver.Compare("v"+latest, "v"+current) > 0
	}
	return info
}
