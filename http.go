// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTP lets the front-end issue JSON requests through the host. Its methods
// are exposed as GetJson, PostJson, PutJson, PatchJson and DeleteJson.
type HTTP struct {
	ExposeAll

	client *http.Client
}

// NewHTTP creates the helper. A nil client selects a fresh client per request.
func NewHTTP(client *http.Client) *HTTP {
	return &HTTP{client: client}
}

// ExposedMethods keeps the public names front-ends already use.
func (h *HTTP) ExposedMethods() map[string]string {
	return map[string]string{
		"GetJSON":    "GetJson",
		"PostJSON":   "PostJson",
		"PutJSON":    "PutJson",
		"PatchJSON":  "PatchJson",
		"DeleteJSON": "DeleteJson",
	}
}

func (h *HTTP) GetJSON(ctx context.Context, url string) (any, error) {
	return h.do(ctx, http.MethodGet, url, nil, false)
}

func (h *HTTP) PostJSON(ctx context.Context, url string, data any) (any, error) {
	return h.do(ctx, http.MethodPost, url, data, true)
}

func (h *HTTP) PutJSON(ctx context.Context, url string, data any) (any, error) {
	return h.do(ctx, http.MethodPut, url, data, true)
}

func (h *HTTP) PatchJSON(ctx context.Context, url string, data any) (any, error) {
	return h.do(ctx, http.MethodPatch, url, data, true)
}

func (h *HTTP) DeleteJSON(ctx context.Context, url string) (any, error) {
	return h.do(ctx, http.MethodDelete, url, nil, false)
}

// do sends one request and decodes the JSON body. An empty body decodes to
// nil; a non-2xx status is an error.
func (h *HTTP) do(ctx context.Context, method, url string, data any, withBody bool) (any, error) {
	var body io.Reader
	if withBody {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encode body: %w", method, url, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if withBody {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	client := h.client
	if client == nil {
		client = newHTTPClient()
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer CleanlyCloseBody(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: decodeBody(raw)}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%s %s: decode body: %w", method, url, err)
	}
	return out, nil
}

// StatusError is a non-2xx answer to an HTTP helper request. Body is the
// decoded JSON body, or nil when the body was empty or not JSON.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       any
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: received status code: %d", e.Method, e.URL, e.StatusCode)
	if e.Body == nil {
		return msg
	}
	body, err := json.Marshal(e.Body)
	if err != nil {
		return msg
	}
	return msg + ": " + string(body)
}

func decodeBody(raw []byte) any {
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
