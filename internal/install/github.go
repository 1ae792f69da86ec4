package install

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// DefaultReleasesURL is the GitHub API endpoint for the latest Stockfish
// release.
const DefaultReleasesURL = "https://api.github.com/repos/official-stockfish/Stockfish/releases/latest"

// windowsBinaryPatterns, in order of preference. Newer CPUs first.
var windowsBinaryPatterns = []string{
	"stockfish-windows-x86-64-avx2.zip",
	"stockfish-windows-x86-64-sse41-popcnt.zip",
	"stockfish-windows-x86-64-ssse3.zip",
	"stockfish-windows-x86-64.zip",
}

type release struct {
	TagName string  `json:"tag_name"`
	Assets  []asset `json:"assets"`
}

type asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// windowsBinaryURL picks the best Windows binary from the release assets.
func (r *release) windowsBinaryURL() (string, bool) {
	for _, pattern := range windowsBinaryPatterns {
		for _, a := range r.Assets {
			if strings.Contains(strings.ToLower(a.Name), pattern) {
				return a.BrowserDownloadURL, true
			}
		}
	}
	return "", false
}

// latestRelease fetches release metadata from the GitHub API.
func (m *Manager) latestRelease(ctx context.Context) (*release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.releasesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching release info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching release info: unexpected status %s", resp.Status)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("decoding release info: %w", err)
	}
	if rel.TagName == "" {
		return nil, fmt.Errorf("release info has no tag name")
	}
	return &rel, nil
}
