package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/reelqueue/platform/pkg/common/logger"
)

const MediaTypeReels = "REELS"

// UpstreamError is the decoded Graph API error envelope. Payload keeps the raw
// response so callers can echo it back.
type UpstreamError struct {
	Status  int
	Message string
	Type    string
	Code    int
	Subcode int
	Payload json.RawMessage
}

func (e *UpstreamError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("instagram api error: %s (code %d)", e.Message, e.Code)
	}
	return "instagram api error: " + e.Message
}

type Config struct {
	GraphURL    string
	APIVersion  string
	UserID      string
	AccessToken string
}

// ContainerRequest describes a media container to register before publication.
type ContainerRequest struct {
	MediaType string
	Caption   string
	CoverURL  string
	VideoURL  string
}

// Client talks to the Instagram Graph content publishing endpoints.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.GraphURL == "" {
		cfg.GraphURL = "https://graph.facebook.com"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v19.0"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// CreateContainer registers a media container and returns its creation id.
func (c *Client) CreateContainer(ctx context.Context, req ContainerRequest) (string, error) {
	if req.MediaType == "" {
		req.MediaType = MediaTypeReels
	}
	form := url.Values{}
	form.Set("media_type", req.MediaType)
	form.Set("video_url", req.VideoURL)
	if req.Caption != "" {
		form.Set("caption", req.Caption)
	}
	if req.CoverURL != "" {
		form.Set("cover_url", req.CoverURL)
	}

	id, err := c.post(ctx, "media", form)
	if err != nil {
		return "", err
	}
	logger.Log.WithField("creation_id", id).Info("media container created")
	return id, nil
}

// PublishContainer finalises a container and returns the published media id.
func (c *Client) PublishContainer(ctx context.Context, creationID string) (string, error) {
	form := url.Values{}
	form.Set("creation_id", creationID)

	id, err := c.post(ctx, "media_publish", form)
	if err != nil {
		return "", err
	}
	logger.Log.WithFields(map[string]interface{}{
		"creation_id": creationID,
		"media_id":    id,
	}).Info("media container published")
	return id, nil
}

func (c *Client) post(ctx context.Context, edge string, form url.Values) (string, error) {
	form.Set("access_token", c.cfg.AccessToken)
	endpoint := strings.TrimRight(c.cfg.GraphURL, "/") + "/" + path.Join(c.cfg.APIVersion, c.cfg.UserID, edge)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build %s request: %w", edge, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("instagram %s: %w", edge, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read instagram %s response: %w", edge, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", decodeError(resp.StatusCode, raw)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode instagram %s response: %w", edge, err)
	}
	if out.ID == "" {
		return "", &UpstreamError{Status: resp.StatusCode, Message: "response carried no id", Payload: payloadOf(raw)}
	}
	return out.ID, nil
}

func decodeError(status int, raw []byte) *UpstreamError {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
			Subcode int    `json:"error_subcode"`
		} `json:"error"`
	}
	ue := &UpstreamError{Status: status, Payload: payloadOf(raw)}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		ue.Message = envelope.Error.Message
		ue.Type = envelope.Error.Type
		ue.Code = envelope.Error.Code
		ue.Subcode = envelope.Error.Subcode
		return ue
	}
	ue.Message = fmt.Sprintf("status %d", status)
	return ue
}

// payloadOf returns raw as JSON when it is valid, or wraps it as a JSON string.
func payloadOf(raw []byte) json.RawMessage {
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	b, _ := json.Marshal(strings.TrimSpace(string(raw)))
	return b
}

// CoverURL derives the cover image by swapping the media file extension for .jpg.
func CoverURL(mediaURL string) string {
	u, err := url.Parse(mediaURL)
	if err != nil || u.Path == "" {
		return swapExt(mediaURL)
	}
	u.Path = swapExt(u.Path)
	u.RawPath = ""
	return u.String()
}

func swapExt(p string) string {
	slash := strings.LastIndex(p, "/")
	if dot := strings.LastIndex(p, "."); dot > slash {
		return p[:dot] + ".jpg"
	}
	return p + ".jpg"
}
