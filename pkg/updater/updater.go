// Package updater asks GitHub whether a newer sv release exists.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

// ReleasesURL is the GitHub endpoint describing the latest release.
const ReleasesURL = "https://api.github.com/repos/Dicklesworthstone/stories_viewer/releases/latest"

// Release is the part of the GitHub release payload sv cares about.
type Release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Checker compares the running version against the latest release.
type Checker struct {
	Client *http.Client
	URL    string
}

// NewChecker returns a checker with a short timeout so it never holds up
// the command for long.
func NewChecker() *Checker {
	return &Checker{
		Client: &http.Client{Timeout: 2 * time.Second},
		URL:    ReleasesURL,
	}
}

// Check returns the latest release and whether it is newer than current.
// Rate limiting is not an error: it reports no update.
func (c *Checker) Check(ctx context.Context, current string) (Release, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return Release{}, false, err
	}
	req.Header.Set("User-Agent", "sv-update-check")
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return Release{}, false, fmt.Errorf("fetching latest release: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusTooManyRequests:
		return Release{}, false, nil
	default:
		return Release{}, false, fmt.Errorf("github api returned status: %s", resp.Status)
	}

	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return Release{}, false, fmt.Errorf("decoding release: %w", err)
	}
	return rel, Newer(rel.TagName, current), nil
}

// Newer reports whether candidate is a higher semantic version than
// current. A missing "v" prefix is tolerated; invalid versions never win.
func Newer(candidate, current string) bool {
	a, b := canonical(candidate), canonical(current)
	if !semver.IsValid(a) {
		return false
	}
	if !semver.IsValid(b) {
		return true
	}
	return semver.Compare(a, b) > 0
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
