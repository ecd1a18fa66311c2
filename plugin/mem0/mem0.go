// Package mem0 is a thin client for the Mem0 personal memory API. It keeps
// long-lived facts about the user across sessions, separate from the
// session-scoped capture store.
package mem0

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Memory is a single personal memory entry.
type Memory struct {
	ID     string  `json:"id"`
	Memory string  `json:"memory"`
	Score  float32 `json:"score,omitempty"`
}

// Service is the personal memory interface.
type Service interface {
	// Add records text as personal memory for a user.
	Add(ctx context.Context, userID, text string) error

	// Search returns personal memories relevant to the query.
	Search(ctx context.Context, userID, query string, limit int) ([]Memory, error)

	// List returns all personal memories for a user.
	List(ctx context.Context, userID string) ([]Memory, error)

	// IsEnabled returns whether the service is configured.
	IsEnabled() bool
}

type service struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewService creates a Mem0 client. An empty apiKey yields a disabled
// service whose operations are no-ops.
func NewService(apiKey, baseURL string) Service {
	return &service{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *service) IsEnabled() bool {
	return s.apiKey != ""
}

func (s *service) Add(ctx context.Context, userID, text string) error {
	if !s.IsEnabled() {
		return nil
	}

	reqBody := map[string]any{
		"messages": []map[string]string{{"role": "user", "content": text}},
		"user_id":  userID,
	}
	return s.post(ctx, "/memories/", reqBody, nil)
}

func (s *service) Search(ctx context.Context, userID, query string, limit int) ([]Memory, error) {
	if !s.IsEnabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	reqBody := map[string]any{
		"query":   query,
		"user_id": userID,
		"limit":   limit,
	}
	var memories []Memory
	if err := s.post(ctx, "/memories/search/", reqBody, &memories); err != nil {
		return nil, err
	}
	return memories, nil
}

func (s *service) List(ctx context.Context, userID string) ([]Memory, error) {
	if !s.IsEnabled() {
		return nil, nil
	}

	endpoint := s.baseURL + "/memories/?user_id=" + url.QueryEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mem0 API error: %s", string(body))
	}

	var memories []Memory
	if err := json.NewDecoder(resp.Body).Decode(&memories); err != nil {
		return nil, err
	}
	return memories, nil
}

func (s *service) post(ctx context.Context, path string, reqBody any, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mem0 API error: %s", string(body))
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
