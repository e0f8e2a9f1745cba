// Package album fetches image manifests from the Imgur album API and picks
// one image at random for the caring reminder reply.
package album

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/garyellow/eyecare-linebot-go/internal/config"
	domerrors "github.com/garyellow/eyecare-linebot-go/internal/errors"
)

const (
	// DefaultAPIBaseURL is the Imgur API root.
	DefaultAPIBaseURL = "https://api.imgur.com/3"
	// DefaultImageBaseURL prefixes image ids to build direct links.
	DefaultImageBaseURL = "https://imgur.com/"

	maxManifestBytes = 4 << 20
)

// Picker returns an index in [0, n). n is always positive.
type Picker func(n int) int

// MetricsRecorder receives outbound call and dedup observations.
type MetricsRecorder interface {
	RecordExternalRequest(service, status string, duration float64)
	RecordSingleflightDedup(module string)
}

// Config configures a Client.
type Config struct {
	ClientID     string
	AccessToken  string // optional; sent as Bearer instead of Client-ID when set
	APIBaseURL   string
	ImageBaseURL string
	Timeout      time.Duration
	HTTPClient   *http.Client
	Picker       Picker
	Metrics      MetricsRecorder
}

// Client reads album manifests. Every call performs a fresh fetch; only
// concurrent fetches of the same album share one request.
type Client struct {
	httpClient   *http.Client
	clientID     string
	accessToken  string
	apiBaseURL   string
	imageBaseURL string
	timeout      time.Duration
	pick         Picker
	metrics      MetricsRecorder
	group        singleflight.Group
}

// Image is one entry of an album manifest.
type Image struct {
	ID string
}

// NewClient creates an album client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.ImgurRequest
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	apiBase := cfg.APIBaseURL
	if apiBase == "" {
		apiBase = DefaultAPIBaseURL
	}
	imageBase := cfg.ImageBaseURL
	if imageBase == "" {
		imageBase = DefaultImageBaseURL
	}
	pick := cfg.Picker
	if pick == nil {
		pick = rand.IntN
	}
	return &Client{
		httpClient:   httpClient,
		clientID:     cfg.ClientID,
		accessToken:  cfg.AccessToken,
		apiBaseURL:   strings.TrimRight(apiBase, "/"),
		imageBaseURL: imageBase,
		timeout:      timeout,
		pick:         pick,
		metrics:      cfg.Metrics,
	}
}

// Images returns the ids listed in the album manifest.
// Every failure matches domerrors.ErrExternalFetch.
//
// The shared fetch is bounded by the client timeout only, so one caller
// giving up does not fail the others; each caller still stops waiting at
// its own deadline.
func (c *Client) Images(ctx context.Context, albumID string) ([]Image, error) {
	// Set only in the caller whose call started the fetch; read after the
	// result arrives.
	var leader bool
	ch := c.group.DoChan(albumID, func() (any, error) {
		leader = true
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.fetch(fetchCtx, albumID)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, fmt.Errorf("album %s: %w: %w", albumID, domerrors.ErrExternalFetch, ctx.Err())
	}
	if res.Shared && !leader && c.metrics != nil {
		c.metrics.RecordSingleflightDedup("album")
	}
	if res.Err != nil {
		return nil, res.Err
	}
	images := res.Val.([]Image)
	// Callers may not share the backing array.
	return append([]Image(nil), images...), nil
}

// RandomImageURL fetches the manifest and returns the direct link of a
// uniformly chosen image. An empty album is a fetch failure.
func (c *Client) RandomImageURL(ctx context.Context, albumID string) (string, error) {
	images, err := c.Images(ctx, albumID)
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", fmt.Errorf("album %s has no images: %w", albumID, domerrors.ErrExternalFetch)
	}
	return c.ImageURL(images[c.pick(len(images))].ID), nil
}

// ImageURL builds the direct link of an image id.
func (c *Client) ImageURL(id string) string {
	return c.imageBaseURL + id + ".jpg"
}

func (c *Client) fetch(ctx context.Context, albumID string) ([]Image, error) {
	endpoint := fmt.Sprintf("%s/album/%s/images", c.apiBaseURL, url.PathEscape(albumID))
	start := time.Now()
	status := "error"
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordExternalRequest("imgur", status, time.Since(start).Seconds())
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domerrors.NewFetchError(endpoint, 0, err)
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	} else {
		req.Header.Set("Authorization", "Client-ID "+c.clientID)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domerrors.NewFetchError(endpoint, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return nil, domerrors.NewFetchError(endpoint, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domerrors.NewFetchError(endpoint, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}

	images, err := parseManifest(body)
	if err != nil {
		return nil, domerrors.NewFetchError(endpoint, resp.StatusCode, err)
	}
	status = "success"
	return images, nil
}

// parseManifest extracts data[].id. Entries without a string id are skipped.
func parseManifest(body []byte) ([]Image, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("malformed manifest JSON")
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, fmt.Errorf("manifest has no data array")
	}
	var images []Image
	data.ForEach(func(_, item gjson.Result) bool {
		if id := item.Get("id"); id.Type == gjson.String && id.Str != "" {
			images = append(images, Image{ID: id.Str})
		}
		return true
	})
	return images, nil
}
