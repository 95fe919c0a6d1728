package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	domain "github.com/bryanwahyu/hdfs-analysis-sim/internal/domain/analysis"
)

// DefaultTimeout bounds a single callback attempt
const DefaultTimeout = 10 * time.Second

// HTTPNotifier posts JSON callbacks. One attempt per call, no retry.
type HTTPNotifier struct {
	client *http.Client
}

// New returns a notifier; a nil client gets DefaultTimeout.
func New(client *http.Client) *HTTPNotifier {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPNotifier{client: client}
}

func (n *HTTPNotifier) NotifyBlock(ctx context.Context, url string, cb domain.BlockCallback) error {
	return n.post(ctx, url, cb)
}

func (n *HTTPNotifier) NotifyComplete(ctx context.Context, url string, p domain.CompletionPayload) error {
	if p.Results == nil {
		p.Results = []domain.AnalysisResult{}
	}
	return n.post(ctx, url, p)
}

func (n *HTTPNotifier) post(ctx context.Context, url string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode callback: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("callback returned HTTP %d", resp.StatusCode)
	}
	return nil
}
