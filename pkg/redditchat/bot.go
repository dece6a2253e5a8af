// Copyright 2025-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package redditchat

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/reddit-chat/pkg/redditchat/sendbird"
)

// ChatBot assembles the full client: credential exchange, broker session
// bootstrap, channel directory, and realtime transport.
type ChatBot struct {
	Realtime  *sendbird.Client
	Directory *ChannelDirectory

	cfg       Config
	rest      *restClient
	bootstrap *SessionBootstrapper
	session   Session
	log       zerolog.Logger
}

// Option customizes ChatBot construction.
type Option func(*botOptions)

type botOptions struct {
	httpClient *http.Client
	store      SessionStore
}

// WithHTTPClient overrides the HTTP client used for control-plane calls.
func WithHTTPClient(client *http.Client) Option {
	return func(o *botOptions) { o.httpClient = client }
}

// WithSessionStore overrides the session cache. The default is a
// FileSessionStore under cfg.SessionDir, or an in-memory store when
// SessionDir is empty.
func WithSessionStore(store SessionStore) Option {
	return func(o *botOptions) { o.store = store }
}

// New authenticates against Reddit, obtains a broker session (cached per
// cfg.StoreSession), and builds the realtime client. The realtime
// connection is not opened; call Connect on the returned bot.
func New(ctx context.Context, auth Authenticator, cfg Config, log zerolog.Logger, opts ...Option) (*ChatBot, error) {
	cfg.ApplyDefaults()
	var options botOptions
	for _, opt := range opts {
		opt(&options)
	}

	credential, err := auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	store := options.store
	if store == nil {
		if cfg.SessionDir != "" {
			store, err = NewFileSessionStore(cfg.SessionDir)
			if err != nil {
				return nil, err
			}
		} else {
			store = NewMemorySessionStore()
		}
	}

	rest := newRESTClient(options.httpClient, credential, cfg.UserAgent, log)
	bootstrap := NewSessionBootstrapper(rest, cfg, store, log)
	session, err := bootstrap.ObtainSession(ctx, credential, cfg.StoreSession)
	if err != nil {
		return nil, err
	}

	bot := &ChatBot{
		cfg:       cfg,
		rest:      rest,
		bootstrap: bootstrap,
		session:   session,
		log:       log.With().Str("component", "chatbot").Logger(),
		Directory: NewChannelDirectory(rest, cfg, log),
	}
	bot.Realtime = sendbird.NewClient(bot.realtimeParams(session))
	return bot, nil
}

func (b *ChatBot) realtimeParams(session Session) sendbird.Params {
	return sendbird.Params{
		WebsocketURL:      b.cfg.WebsocketURL,
		AppID:             b.cfg.AppID,
		AccessToken:       session.AccessToken,
		UserID:            session.UserID,
		PingInterval:      time.Duration(b.cfg.PingIntervalSeconds) * time.Second,
		PingMissLimit:     b.cfg.PingMissLimit,
		MaxReconnectTries: b.cfg.MaxReconnectTries,
		Logger:            b.log,
	}
}

// Session returns the broker session the bot is operating under.
func (b *ChatBot) Session() Session { return b.session }

// Connect opens the realtime connection.
func (b *ChatBot) Connect(ctx context.Context) error {
	return b.Realtime.Connect(ctx)
}

// RefreshSession mints a fresh broker session, bypassing the cache, and
// replaces the realtime client with one bound to it. Call this after an
// AuthExpired event; any registered handlers must be re-registered on the
// new Realtime client.
func (b *ChatBot) RefreshSession(ctx context.Context, credential string) error {
	session, err := b.bootstrap.ObtainSession(ctx, credential, false)
	if err != nil {
		return err
	}
	b.Realtime.Close()
	b.session = session
	b.Realtime = sendbird.NewClient(b.realtimeParams(session))
	b.log.Info().Str("user_id", session.UserID).Msg("Replaced broker session")
	return nil
}

// JoinChannel registers membership over HTTP and attaches the live socket
// to the channel's event stream. The two calls are separate protocol
// layers; both are needed for a usable membership.
func (b *ChatBot) JoinChannel(ctx context.Context, subreddit, channel string) error {
	if err := b.Directory.Join(ctx, subreddit, channel); err != nil {
		return err
	}
	return b.Realtime.JoinChannel(channel)
}

// SendMessage sends a chat message over the realtime connection.
func (b *ChatBot) SendMessage(ctx context.Context, channel, text string) (sendbird.MessageAck, error) {
	return b.Realtime.SendMessage(ctx, channel, text)
}

// OnMessage registers a handler for inbound chat messages.
func (b *ChatBot) OnMessage(handler sendbird.Handler) {
	b.Realtime.On(sendbird.EventMessage, handler)
}

// Close shuts down the realtime connection.
func (b *ChatBot) Close() {
	b.Realtime.Close()
}
