package assets

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/reelqueue/platform/pkg/common/logger"
)

const (
	ResultOK       = "ok"
	ResultNotFound = "not found"
)

var publicIDPattern = regexp.MustCompile(`/upload/(?:v\d+/)?(.+)\.[A-Za-z0-9]+$`)

// ExtractPublicID returns the hosted asset id from a delivery URL, e.g.
// https://host/upload/v123/folder/clip.mp4 -> folder/clip.
func ExtractPublicID(mediaURL string) (string, bool) {
	p := mediaURL
	if u, err := url.Parse(mediaURL); err == nil && u.Path != "" {
		p = u.Path
	}
	m := publicIDPattern.FindStringSubmatch(p)
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// DeleteError reports a failed destroy call that never produced a result.
type DeleteError struct {
	PublicID string
	Status   int
	Err      error
}

func (e *DeleteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("delete asset %s: status %d: %v", e.PublicID, e.Status, e.Err)
	}
	return fmt.Sprintf("delete asset %s: %v", e.PublicID, e.Err)
}

func (e *DeleteError) Unwrap() error {
	return e.Err
}

type Config struct {
	BaseURL      string
	CloudName    string
	APIKey       string
	APISecret    string
	ResourceType string
}

// Client deletes assets from Cloudinary through the signed destroy endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cloudinary.com/v1_1"
	}
	if cfg.ResourceType == "" {
		cfg.ResourceType = "video"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, httpClient: httpClient, now: time.Now}
}

// Delete destroys publicID and returns Cloudinary's result string ("ok", "not found", ...).
func (c *Client) Delete(ctx context.Context, publicID string) (string, error) {
	ts := strconv.FormatInt(c.now().Unix(), 10)

	form := url.Values{}
	form.Set("public_id", publicID)
	form.Set("timestamp", ts)
	form.Set("api_key", c.cfg.APIKey)
	form.Set("signature", Sign(map[string]string{"public_id": publicID, "timestamp": ts}, c.cfg.APISecret))

	endpoint := fmt.Sprintf("%s/%s/%s/destroy", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.CloudName, c.cfg.ResourceType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &DeleteError{PublicID: publicID, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &DeleteError{PublicID: publicID, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &DeleteError{PublicID: publicID, Status: resp.StatusCode, Err: err}
	}

	var out struct {
		Result string `json:"result"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &DeleteError{PublicID: publicID, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := out.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return "", &DeleteError{PublicID: publicID, Status: resp.StatusCode, Err: fmt.Errorf("%s", msg)}
	}

	logger.Log.WithFields(map[string]interface{}{
		"public_id": publicID,
		"result":    out.Result,
	}).Info("asset destroy completed")
	return out.Result, nil
}

// Sign computes the Cloudinary API signature: the params sorted by key, joined
// as k=v pairs with '&', with the secret appended, SHA-1 hex encoded.
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}
