package ml

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ContractGraph/internal/domain"
	"ContractGraph/internal/ports"
)

func TestExtractPostsToService(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ContractType != string(domain.ContractLicense) || !req.Simplified {
			t.Errorf("unexpected payload: %+v", req)
		}
		_, _ = w.Write([]byte(`{"result":{"title":"License Agreement"},"usage":{"prompt_tokens":10,"completion_tokens":4}}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL+"/", "", time.Second)
	resp, err := client.Extract(context.Background(), ports.ExtractionRequest{
		Text:         "text",
		ContractType: domain.ContractLicense,
		Prompt:       "p",
		Simplified:   true,
	})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if string(resp.Payload) != `{"title":"License Agreement"}` || resp.PromptTokens != 10 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestExtractFailures(t *testing.T) {
	t.Parallel()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(failing.Close)
	if _, err := NewClient(failing.URL, "", time.Second).Extract(context.Background(), ports.ExtractionRequest{}); err == nil {
		t.Fatalf("expected status error")
	}

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":null}`))
	}))
	t.Cleanup(empty.Close)
	if _, err := NewClient(empty.URL, "", time.Second).Extract(context.Background(), ports.ExtractionRequest{}); err == nil {
		t.Fatalf("expected error for null result")
	}
}
