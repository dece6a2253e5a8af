// Copyright 2025-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package redditchat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

const maxResponseBytes = 1 << 20

// restClient wraps the Reddit and Sendbird HTTP control planes with the
// bearer credential and fixed User-Agent every request must carry.
type restClient struct {
	http       *http.Client
	credential string
	userAgent  string
	log        zerolog.Logger
}

func newRESTClient(httpClient *http.Client, credential, userAgent string, log zerolog.Logger) *restClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &restClient{
		http:       httpClient,
		credential: credential,
		userAgent:  userAgent,
		log:        log.With().Str("component", "rest").Logger(),
	}
}

// getJSON performs an authenticated GET and decodes the response body into out.
func (r *restClient) getJSON(ctx context.Context, url string, out any) error {
	return r.doJSON(ctx, http.MethodGet, url, "", out)
}

// postJSON performs an authenticated POST with a JSON body. out may be nil
// when the response body does not matter.
func (r *restClient) postJSON(ctx context.Context, url, body string, out any) error {
	return r.doJSON(ctx, http.MethodPost, url, body, out)
}

func (r *restClient) doJSON(ctx context.Context, method, url, body string, out any) error {
	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Authorization", "Bearer "+r.credential)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	r.log.Debug().Str("method", method).Str("url", url).Str("status", resp.Status).Msg("API request")

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode >= http.StatusBadRequest {
		return &APIStatusError{Endpoint: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}
