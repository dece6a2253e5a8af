// Copyright 2025-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package redditchat

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// endpointCall records which API endpoints were hit during a test.
type endpointCall struct {
	Method string
	Path   string
	Body   string
}

// fakeReddit wraps an httptest.Server simulating the Reddit OAuth and
// Sendbird control-plane endpoints. It records calls and serves canned
// responses.
type fakeReddit struct {
	Server *httptest.Server

	mu    sync.Mutex
	calls []endpointCall

	// SendbirdToken is returned by /api/v1/sendbird/me.
	SendbirdToken string
	// UserID is the bare numeric id returned by /api/v1/me.json.
	UserID string
	// Subreddits maps subreddit name to fullname id for about.json.
	Subreddits map[string]string
	// Rooms maps subreddit fullname id to channel URLs.
	Rooms map[string][]string
	// LoginCookie is the reddit_session value issued by /post/login.
	// Empty means the login fails.
	LoginCookie string
	// ChatToken is the accessToken embedded in the /chat/ HTML payload.
	ChatToken string
	// FailEndpoints causes matching path prefixes to return 500.
	FailEndpoints map[string]bool
}

func newFakeReddit() *fakeReddit {
	f := &fakeReddit{
		SendbirdToken: "TOK1",
		UserID:        "42",
		Subreddits:    make(map[string]string),
		Rooms:         make(map[string][]string),
		FailEndpoints: make(map[string]bool),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handler))
	return f
}

func (f *fakeReddit) Close() { f.Server.Close() }

func (f *fakeReddit) handler(w http.ResponseWriter, r *http.Request) {
	body := make([]byte, 0)
	if r.Body != nil {
		buf := make([]byte, 4096)
		n, _ := r.Body.Read(buf)
		body = buf[:n]
	}
	f.mu.Lock()
	f.calls = append(f.calls, endpointCall{Method: r.Method, Path: r.URL.Path, Body: string(body)})
	// Snapshot scalar knobs so tests may flip them between requests.
	sbToken, userID := f.SendbirdToken, f.UserID
	loginCookie, chatToken := f.LoginCookie, f.ChatToken
	f.mu.Unlock()

	for prefix := range f.FailEndpoints {
		if f.FailEndpoints[prefix] && strings.HasPrefix(r.URL.Path, prefix) {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	switch {
	case r.URL.Path == "/api/v1/sendbird/me":
		fmt.Fprintf(w, `{"sb_access_token":%q}`, sbToken)
	case r.URL.Path == "/api/v1/me.json":
		fmt.Fprintf(w, `{"id":%q}`, userID)
	case strings.HasPrefix(r.URL.Path, "/r/") && strings.HasSuffix(r.URL.Path, "/about.json"):
		name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/r/"), "/about.json")
		id, ok := f.Subreddits[name]
		if !ok {
			fmt.Fprint(w, `{"data":{}}`)
			return
		}
		fmt.Fprintf(w, `{"data":{"name":%q}}`, id)
	case strings.HasPrefix(r.URL.Path, "/api/v1/subreddit/") && strings.HasSuffix(r.URL.Path, "/channels"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/v1/subreddit/"), "/channels")
		urls := f.Rooms[id]
		parts := make([]string, 0, len(urls))
		for _, u := range urls {
			parts = append(parts, fmt.Sprintf(`{"url":%q}`, u))
		}
		fmt.Fprintf(w, `{"rooms":[%s]}`, strings.Join(parts, ","))
	case r.URL.Path == "/api/v1/sendbird/join":
		fmt.Fprint(w, `{}`)
	case r.URL.Path == "/post/login":
		if loginCookie == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "reddit_session", Value: loginCookie})
		w.WriteHeader(http.StatusFound)
	case r.URL.Path == "/chat/":
		fmt.Fprintf(w, `<html><script>var cfg = {"accessToken":%q,"other":1};</script></html>`, chatToken)
	default:
		http.NotFound(w, r)
	}
}

// CallCount returns how many requests hit the given path.
func (f *fakeReddit) CallCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, call := range f.calls {
		if call.Path == path {
			count++
		}
	}
	return count
}

// LastCall returns the most recent request to the given path.
func (f *fakeReddit) LastCall(path string) (endpointCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Path == path {
			return f.calls[i], true
		}
	}
	return endpointCall{}, false
}

// testConfig points all hosts at the fake server.
func testConfig(serverURL string) Config {
	cfg := Config{
		OAuthHost:    serverURL,
		SendbirdHost: serverURL,
		LoginHost:    serverURL,
	}
	cfg.ApplyDefaults()
	return cfg
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
