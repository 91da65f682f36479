// Package client talks to the SOW wizard HTTP API with a bearer token.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lawly.io/sow-wizard/internal/core"
	"lawly.io/sow-wizard/internal/store"
)

var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response. Message is the server's error text.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) ListQuestions(ctx context.Context) ([]store.Question, error) {
	var resp struct {
		Questions []store.Question `json:"questions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/questions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Questions, nil
}

func (c *Client) Submit(ctx context.Context, answers []store.AnswerItem) (*store.Session, error) {
	req := struct {
		Answers []store.AnswerItem `json:"answers"`
	}{Answers: answers}
	var session store.Session
	if err := c.do(ctx, http.MethodPost, "/api/sessions", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) GetSessionDetails(ctx context.Context, id string) (*core.SessionDetails, error) {
	var details core.SessionDetails
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+id+"/details", nil, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

func (c *Client) GetProfile(ctx context.Context) (*store.Profile, error) {
	var profile store.Profile
	if err := c.do(ctx, http.MethodGet, "/api/profile", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) MarkWelcomeSeen(ctx context.Context) (*store.Profile, error) {
	req := map[string]bool{"has_seen_welcome": true}
	var profile store.Profile
	if err := c.do(ctx, http.MethodPatch, "/api/profile", req, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
