// Package release resolves the newest qualifying release from a GitHub
// repository and maps it into the update engine's release model.
package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/go-github/v74/github"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/wab2b/wab2b-helper/internal/update"
)

const checksumsSuffix = "checksums.txt"

// GitHubResolver fetches release metadata from the GitHub releases API.
// Draft releases are always excluded; pre-releases only qualify when the
// caller asks for them. Asset ordering is preserved as GitHub returns it.
type GitHubResolver struct {
	client *github.Client
	http   *http.Client
	logger *slog.Logger
}

// NewGitHubResolver creates a resolver using an unauthenticated client.
// Public release listings do not require a token.
func NewGitHubResolver(logger *slog.Logger) *GitHubResolver {
	httpClient := cleanhttp.DefaultPooledClient()
	return &GitHubResolver{
		client: github.NewClient(httpClient),
		http:   httpClient,
		logger: logger,
	}
}

// SetBaseURL redirects API calls to an alternate endpoint.
func (r *GitHubResolver) SetBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	r.client.BaseURL = u
	return nil
}

// FetchLatest returns the newest qualifying release for owner/repo. The
// release list is fetched fresh on every call; nothing is cached. SHA-256
// content hashes are populated from a checksums.txt asset when the release
// publishes one.
func (r *GitHubResolver) FetchLatest(ctx context.Context, owner, repo string, includePrerelease bool) (*update.ReleaseInfo, error) {
	releases, _, err := r.client.Repositories.ListReleases(ctx, owner, repo, &github.ListOptions{PerPage: 30})
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
			return nil, update.NewError(update.ErrCodeNotFound,
				fmt.Sprintf("repository %s/%s not found", owner, repo), err)
		}
		return nil, update.NewError(update.ErrCodeNetwork, "failed to list releases", err)
	}

	// GitHub returns releases newest first
	var selected *github.RepositoryRelease
	for _, rel := range releases {
		if rel.GetDraft() {
			continue
		}
		if rel.GetPrerelease() && !includePrerelease {
			continue
		}
		selected = rel
		break
	}
	if selected == nil {
		return nil, update.NewError(update.ErrCodeNotFound,
			fmt.Sprintf("no qualifying release in %s/%s", owner, repo), nil)
	}

	info, err := mapRelease(selected)
	if err != nil {
		return nil, err
	}

	if err := r.populateHashes(ctx, info); err != nil {
		return nil, err
	}

	r.logger.Debug("Resolved release",
		"owner", owner, "repo", repo, "version", info.Version, "assets", len(info.Assets))
	return info, nil
}

func mapRelease(rel *github.RepositoryRelease) (*update.ReleaseInfo, error) {
	tag := rel.GetTagName()
	if tag == "" {
		return nil, update.NewError(update.ErrCodeParse, "release has no tag name", nil)
	}

	info := &update.ReleaseInfo{
		Version:      strings.TrimPrefix(tag, "v"),
		ReleaseNotes: rel.GetBody(),
		PublishedAt:  rel.GetPublishedAt().Time,
		Assets:       make([]update.Asset, 0, len(rel.Assets)),
	}

	for _, a := range rel.Assets {
		if a.GetName() == "" || a.GetBrowserDownloadURL() == "" {
			return nil, update.NewError(update.ErrCodeParse, "release asset missing name or URL", nil)
		}
		info.Assets = append(info.Assets, update.Asset{
			Name:        a.GetName(),
			DownloadURL: a.GetBrowserDownloadURL(),
			Size:        int64(a.GetSize()),
		})
	}
	return info, nil
}

// populateHashes fills Asset.SHA256 from the release's checksums.txt asset,
// if any. A release without one leaves every hash empty; a checksums asset
// that cannot be fetched fails the whole resolution.
func (r *GitHubResolver) populateHashes(ctx context.Context, info *update.ReleaseInfo) error {
	var checksumURL string
	for _, a := range info.Assets {
		if strings.HasSuffix(strings.ToLower(a.Name), checksumsSuffix) {
			checksumURL = a.DownloadURL
			break
		}
	}
	if checksumURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checksumURL, nil)
	if err != nil {
		return update.NewError(update.ErrCodeNetwork, "invalid checksums URL", err)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return update.NewError(update.ErrCodeNetwork, "failed to download checksums file", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return update.NewError(update.ErrCodeNetwork,
			fmt.Sprintf("checksums download returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return update.NewError(update.ErrCodeNetwork, "failed to read checksums file", err)
	}

	hashes := parseChecksums(string(body))
	for i := range info.Assets {
		if h, ok := hashes[info.Assets[i].Name]; ok {
			info.Assets[i].SHA256 = h
		}
	}
	return nil
}

// parseChecksums reads the conventional "<hash>  <filename>" line format,
// keying by base filename so path prefixes in the checksums file are
// irrelevant.
func parseChecksums(text string) map[string]string {
	hashes := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := path.Base(strings.TrimPrefix(fields[1], "*"))
		hashes[name] = fields[0]
	}
	return hashes
}
