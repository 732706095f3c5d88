package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/reelqueue/platform/pkg/common/models"
)

// Trigger hands a freshly ingested video to the external processing service.
// Delivery is one-way: callers log failures and move on.
type Trigger interface {
	Fire(ctx context.Context, job models.VideoJob) error
	Close() error
}

const (
	BackendNone  = "none"
	BackendHTTP  = "http"
	BackendKafka = "kafka"
	BackendAMQP  = "amqp"
)

type Nop struct{}

func (Nop) Fire(context.Context, models.VideoJob) error { return nil }
func (Nop) Close() error                                { return nil }

// HTTPTrigger POSTs the job as JSON to a processing endpoint.
type HTTPTrigger struct {
	url    string
	client *http.Client
}

func NewHTTPTrigger(url string, client *http.Client) *HTTPTrigger {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTrigger{url: url, client: client}
}

func (t *HTTPTrigger) Fire(ctx context.Context, job models.VideoJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("trigger request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("trigger status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (t *HTTPTrigger) Close() error { return nil }
