package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/tenantrag/internal/models"
	"github.com/hyperjump/tenantrag/internal/server"
)

// apiClient talks to a running tenantrag server.
type apiClient struct {
	baseURL string
	tenant  string
	http    *http.Client
}

func newAPIClient(baseURL, tenant string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		tenant:  tenant,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) Query(ctx context.Context, req *models.RetrieveRequest) (*models.RetrieveResponse, error) {
	var out models.RetrieveResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/query", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Chat(ctx context.Context, req *models.RetrieveRequest) (*models.Answer, error) {
	var out models.Answer
	if err := c.do(ctx, http.MethodPost, "/api/v1/chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Status(ctx context.Context) (*models.Status, error) {
	var out models.Status
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.tenant != "" {
		req.Header.Set(server.TenantHeader, c.tenant)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
