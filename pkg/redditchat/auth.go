// Copyright 2025-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package redditchat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Authenticator yields a bearer credential for the Reddit API. Exactly one
// strategy is active per instance.
type Authenticator interface {
	Authenticate(ctx context.Context) (string, error)
}

// TokenAuth wraps an existing long-lived API token.
type TokenAuth struct {
	Token string
}

func (a TokenAuth) Authenticate(_ context.Context) (string, error) {
	if strings.TrimSpace(a.Token) == "" {
		return "", &AuthError{Strategy: "token", Err: errors.New("empty token")}
	}
	return a.Token, nil
}

// accessTokenPattern locates the scoped chat token inside the /chat/ HTML
// payload. The token is only exposed through this page; there is no JSON
// endpoint for it.
var accessTokenPattern = regexp.MustCompile(`"accessToken":"(.*?)"`)

// PasswordAuth exchanges a username and password for a session cookie, then
// scrapes the scoped chat token out of the chat frontend payload.
type PasswordAuth struct {
	Username string
	Password string

	// Host overrides the desktop login host. Empty means DefaultLoginHost.
	Host string
	// HTTP overrides the client used for the login exchange.
	HTTP *http.Client
}

func (a PasswordAuth) Authenticate(ctx context.Context) (string, error) {
	host := a.Host
	if host == "" {
		host = DefaultLoginHost
	}
	httpClient := a.HTTP
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	// The login endpoint answers with a redirect carrying the session
	// cookie; following it would lose the Set-Cookie response.
	client := *httpClient
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	cookie, err := a.fetchSessionCookie(ctx, &client, host)
	if err != nil {
		return "", &AuthError{Strategy: "password", Err: err}
	}

	token, err := a.scrapeAccessToken(ctx, &client, host, cookie)
	if err != nil {
		return "", &AuthError{Strategy: "password", Err: err}
	}
	return token, nil
}

func (a PasswordAuth) fetchSessionCookie(ctx context.Context, client *http.Client, host string) (string, error) {
	form := url.Values{
		"op":     {"login"},
		"user":   {a.Username},
		"passwd": {a.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host+"/post/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Firefox")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	for _, c := range resp.Cookies() {
		if c.Name == "reddit_session" && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", errors.New("login response carried no reddit_session cookie")
}

func (a PasswordAuth) scrapeAccessToken(ctx context.Context, client *http.Client, host, cookie string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/chat/", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Firefox")
	req.AddCookie(&http.Cookie{Name: "reddit_session", Value: cookie})

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("chat page returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", err
	}
	match := accessTokenPattern.FindSubmatch(body)
	if match == nil || len(match[1]) == 0 {
		return "", errors.New("chat page payload had no accessToken")
	}
	return string(match[1]), nil
}
