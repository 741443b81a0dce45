package policynet

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SupportedRatings lists the rating levels artifacts are published for
// (spec §6).
var SupportedRatings = []int{1100, 1200, 1300, 1400, 1500, 1600, 1700, 1800, 1900}

// IsSupportedRating reports whether rating is one of SupportedRatings.
func IsSupportedRating(rating int) bool {
	for _, r := range SupportedRatings {
		if r == rating {
			return true
		}
	}
	return false
}

// ClosestRating returns the SupportedRatings entry nearest target, ties
// broken toward the lower rating (spec §6's getClosestRating facade op).
func ClosestRating(target int) int {
	best := SupportedRatings[0]
	bestDiff := abs(target - best)
	for _, r := range SupportedRatings[1:] {
		diff := abs(target - r)
		if diff < bestDiff || (diff == bestDiff && r < best) {
			best = r
			bestDiff = diff
		}
	}
	return best
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ErrHTMLSentinel is returned by FetchArtifact when the response looks like
// a CDN's HTML 404 page rather than model bytes.
var ErrHTMLSentinel = fmt.Errorf("policynet: artifact response looks like an HTML error page")

// ErrArtifactTooSmall is returned when the response body is smaller than
// the configured minimum, which guards against truncated downloads.
var ErrArtifactTooSmall = fmt.Errorf("policynet: artifact response is smaller than the expected minimum size")

// FetchArtifact downloads the checkpoint for rating from baseURL, validating
// content-type and size per spec §4.4 step 3. The caller supplies a context
// already carrying the fetch timeout.
func FetchArtifact(ctx context.Context, baseURL string, rating int, minBytes int64) ([]byte, error) {
	url := fmt.Sprintf("%s/maia-%d.onnx", strings.TrimRight(baseURL, "/"), rating)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("policynet: build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("policynet: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrHTMLSentinel
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("policynet: fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		return nil, ErrHTMLSentinel
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("policynet: read body of %s: %w", url, err)
	}
	if int64(len(body)) < minBytes {
		return nil, ErrArtifactTooSmall
	}

	return body, nil
}
