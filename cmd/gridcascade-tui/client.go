package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dd0wney/gridcascade/pkg/api"
	"github.com/dd0wney/gridcascade/pkg/cascade"
	"github.com/dd0wney/gridcascade/pkg/ranking"
	"github.com/dd0wney/gridcascade/pkg/risk"
	"github.com/dd0wney/gridcascade/pkg/validation"
)

// client talks to a gridcascade-server over its JSON API.
type client struct {
	base  string
	token string
	http  *http.Client
}

func newClient(addr, token string, timeout time.Duration) *client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &client{
		base:  strings.TrimRight(addr, "/"),
		token: token,
		http:  &http.Client{Timeout: timeout},
	}
}

// apiError is a non-2xx response decoded from the server's error body.
type apiError struct {
	Status int
	Body   api.ErrorResponse
}

func (e *apiError) Error() string {
	if e.Body.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Body.Error, e.Body.Message)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Body.Error)
}

func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr.Body)
		if apiErr.Body.Error == "" {
			apiErr.Body.Error = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) candidates(ctx context.Context, limit int) (*ranking.Ranking, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	var out ranking.Ranking
	if err := c.do(ctx, http.MethodGet, "/api/v1/patient-zero-candidates?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) scenarios(ctx context.Context) (*api.ScenariosResponse, error) {
	var out api.ScenariosResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/scenarios", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) simulate(ctx context.Context, req validation.SimulateRequest) (*cascade.Result, error) {
	var out cascade.Result
	if err := c.do(ctx, http.MethodPost, "/api/v1/simulate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) realtimeRisk(ctx context.Context) (*risk.Assessment, error) {
	var out risk.Assessment
	if err := c.do(ctx, http.MethodGet, "/api/v1/realtime-risk", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) status(ctx context.Context) (*api.CentralityStatusResponse, error) {
	var out api.CentralityStatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/centrality/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) recompute(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/centrality/recompute", nil, nil)
}
