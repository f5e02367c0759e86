package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/boddenberg/expense-assistant-go/internal/infra/resilience"

	"go.uber.org/zap"
)

// ============================================================
// HTTP helpers for GET, POST, PATCH, DELETE
// ============================================================

func (c *Client) doGet(ctx context.Context, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, query, nil, "")
}

func (c *Client) doPost(ctx context.Context, data any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, nil, data, "return=representation")
}

func (c *Client) doPatch(ctx context.Context, query url.Values, data any) ([]byte, error) {
	return c.do(ctx, http.MethodPatch, query, data, "return=representation")
}

func (c *Client) doDelete(ctx context.Context, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, query, nil, "return=representation")
}

// do executes an authenticated PostgREST request against the ledger table.
// 4xx answers are permanent failures and are not retried.
func (c *Client) do(ctx context.Context, method string, query url.Values, data any, prefer string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, c.table)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if data != nil {
		jsonBody, err := json.Marshal(data)
		if err != nil {
			return nil, resilience.Permanent(fmt.Errorf("marshal %s body: %w", method, err))
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, resilience.Permanent(err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("table", c.table),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("table", c.table),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		statusErr := fmt.Errorf("supabase %s %s returned %d: %s", method, c.table, resp.StatusCode, string(body))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, resilience.Permanent(statusErr)
		}
		return nil, statusErr
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("table", c.table),
		zap.Int("status", resp.StatusCode),
	)
	return body, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(io.LimitReader(resp.Body, 4<<20)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
