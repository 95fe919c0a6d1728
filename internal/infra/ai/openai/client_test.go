package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/hdfs-analysis-sim/internal/domain/scoring"
)

func fakeCompletion(t *testing.T, status int, content string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "x",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test")
	cfg.BaseURL = srv.URL + "/v1"
	return NewClientWithConfig(cfg, "gpt-4o-mini")
}

func TestPredict_ParsesProbability(t *testing.T) {
	c := fakeCompletion(t, http.StatusOK, `{"probability": 0.83}`)
	p, err := c.Predict(context.Background(), scoring.Features{HighKeywordHits: 1})
	require.NoError(t, err)
	assert.Equal(t, 0.83, p)
}

func TestPredict_BadVerdicts(t *testing.T) {
	for _, content := range []string{`not json`, `{}`, `{"probability": 1.5}`} {
		c := fakeCompletion(t, http.StatusOK, content)
		_, err := c.Predict(context.Background(), scoring.Features{})
		assert.Error(t, err, content)
	}
}

func TestPredict_Quota(t *testing.T) {
	c := fakeCompletion(t, http.StatusTooManyRequests, "")
	_, err := c.Predict(context.Background(), scoring.Features{})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestPredict_HungProviderTimesOut(t *testing.T) {
	saved := requestTimeout
	requestTimeout = 100 * time.Millisecond
	t.Cleanup(func() { requestTimeout = saved })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test")
	cfg.BaseURL = srv.URL + "/v1"
	c := NewClientWithConfig(cfg, "gpt-4o-mini")

	start := time.Now()
	_, err := c.Predict(context.Background(), scoring.Features{})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}
