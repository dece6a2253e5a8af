// Copyright 2025-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package redditchat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aiku/reddit-chat/pkg/redditchat/sendbird"
)

// fakeStream upgrades websockets and immediately accepts the login
// handshake, then keeps the socket open discarding inbound frames.
func fakeStream(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`LOGI{"key":"key-1","login_ts":1}`)); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestNew(t *testing.T) {
	t.Parallel()
	fake := newFakeReddit()
	defer fake.Server.Close()

	bot, err := New(context.Background(), TokenAuth{Token: "bearer-1"}, testConfig(fake.Server.URL), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer bot.Close()

	session := bot.Session()
	if session.AccessToken != "TOK1" || session.UserID != "t2_42" {
		t.Errorf("session: got %+v", session)
	}
	if bot.Realtime == nil || bot.Realtime.State() != sendbird.StateDisconnected {
		t.Error("realtime client should exist unconnected")
	}
	if bot.Directory == nil {
		t.Error("channel directory missing")
	}
}

func TestNew_AuthFailure(t *testing.T) {
	t.Parallel()
	fake := newFakeReddit()
	defer fake.Server.Close()

	if _, err := New(context.Background(), TokenAuth{}, testConfig(fake.Server.URL), testLogger()); err == nil {
		t.Fatal("New accepted an empty credential")
	}
}

func TestNew_FileStoreDefault(t *testing.T) {
	t.Parallel()
	fake := newFakeReddit()
	defer fake.Server.Close()

	cfg := testConfig(fake.Server.URL)
	cfg.SessionDir = t.TempDir()
	cfg.StoreSession = true

	bot, err := New(context.Background(), TokenAuth{Token: "bearer-1"}, cfg, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer bot.Close()

	entries, err := os.ReadDir(cfg.SessionDir)
	if err != nil {
		t.Fatalf("read session dir: %v", err)
	}
	var records int
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".json" {
			records++
		}
	}
	if records != 1 {
		t.Errorf("session records on disk: got %d, want 1", records)
	}
}

func TestRefreshSession(t *testing.T) {
	t.Parallel()
	fake := newFakeReddit()
	defer fake.Server.Close()

	bot, err := New(context.Background(), TokenAuth{Token: "bearer-1"}, testConfig(fake.Server.URL), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer bot.Close()
	old := bot.Realtime

	fake.mu.Lock()
	fake.SendbirdToken = "TOK2"
	fake.mu.Unlock()

	if err := bot.RefreshSession(context.Background(), "bearer-1"); err != nil {
		t.Fatalf("RefreshSession: %v", err)
	}
	if got := bot.Session().AccessToken; got != "TOK2" {
		t.Errorf("refreshed token: got %q, want %q", got, "TOK2")
	}
	if old.State() != sendbird.StateClosed {
		t.Error("previous realtime client left open")
	}
	if bot.Realtime == old {
		t.Error("realtime client not replaced")
	}
}

func TestJoinChannel(t *testing.T) {
	t.Parallel()
	fake := newFakeReddit()
	defer fake.Server.Close()
	fake.Subreddits["gotest"] = "t5_100"

	cfg := testConfig(fake.Server.URL)
	cfg.WebsocketURL = fakeStream(t)

	bot, err := New(context.Background(), TokenAuth{Token: "bearer-1"}, cfg, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer bot.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := bot.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := bot.JoinChannel(ctx, "gotest", "myroom"); err != nil {
		t.Fatalf("JoinChannel: %v", err)
	}
	call, ok := fake.LastCall("/api/v1/sendbird/join")
	if !ok {
		t.Fatal("no membership registration call recorded")
	}
	if call.Method != http.MethodPost {
		t.Errorf("join method: got %s, want POST", call.Method)
	}
	if !strings.Contains(call.Body, "sendbird_group_channel_myroom") {
		t.Errorf("join body: got %q, want normalized channel url", call.Body)
	}
}
