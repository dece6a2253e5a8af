// Copyright 2025-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package redditchat

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// userFullnamePrefix is Reddit's entity-type tag for accounts. The identity
// endpoint returns the bare numeric id; Sendbird expects the fullname.
const userFullnamePrefix = "t2_"

// Session is the pair of values needed to open a realtime connection: the
// Sendbird access token and the prefixed Reddit user id. Both were obtained
// under the same credential and the value is read-only after construction.
type Session struct {
	AccessToken string `json:"sb_access_token"`
	UserID      string `json:"user_id"`
}

// SessionBootstrapper exchanges a bearer credential for a broker Session,
// consulting a SessionStore so the two exchange calls only happen once per
// credential across process runs.
type SessionBootstrapper struct {
	rest  *restClient
	cfg   Config
	store SessionStore
	log   zerolog.Logger
}

// NewSessionBootstrapper builds a bootstrapper for one credential. store may
// be nil, in which case every call mints a fresh session.
func NewSessionBootstrapper(rest *restClient, cfg Config, store SessionStore, log zerolog.Logger) *SessionBootstrapper {
	return &SessionBootstrapper{
		rest:  rest,
		cfg:   cfg,
		store: store,
		log:   log.With().Str("component", "bootstrap").Logger(),
	}
}

// ObtainSession returns a Session for the credential. With useCache, a
// stored session is reused when present and the freshly minted one is
// persisted on a miss. Store failures never fail the bootstrap; the caller
// still gets a fresh session.
func (b *SessionBootstrapper) ObtainSession(ctx context.Context, credential string, useCache bool) (Session, error) {
	if useCache && b.store != nil {
		session, err := b.store.Load(credential)
		if err == nil {
			b.log.Debug().Str("user_id", session.UserID).Msg("Reusing cached session")
			return session, nil
		}
		if !errors.Is(err, ErrSessionNotFound) {
			b.log.Warn().Err(err).Msg("Session cache read failed, minting fresh")
		} else {
			// A miss for a credential that used to hit usually means the
			// host reissued the credential; log it so churn is visible.
			b.log.Info().Msg("Session cache miss, minting fresh session")
		}
	}

	session, err := b.mintSession(ctx)
	if err != nil {
		return Session{}, err
	}

	if useCache && b.store != nil {
		if err := b.store.Save(credential, session); err != nil {
			b.log.Warn().Err(err).Msg("Failed to persist session")
		}
	}
	return session, nil
}

// mintSession performs the two independent exchange calls. Errors identify
// which endpoint failed.
func (b *SessionBootstrapper) mintSession(ctx context.Context) (Session, error) {
	token, err := b.fetchAccessToken(ctx)
	if err != nil {
		return Session{}, err
	}
	userID, err := b.fetchUserID(ctx)
	if err != nil {
		return Session{}, err
	}
	b.log.Info().Str("user_id", userID).Msg("Minted new broker session")
	return Session{AccessToken: token, UserID: userID}, nil
}

func (b *SessionBootstrapper) fetchAccessToken(ctx context.Context) (string, error) {
	endpoint := b.cfg.SendbirdHost + "/api/v1/sendbird/me"
	var body struct {
		SbAccessToken string `json:"sb_access_token"`
	}
	if err := b.rest.getJSON(ctx, endpoint, &body); err != nil {
		return "", &SessionError{Endpoint: endpoint, Err: err}
	}
	if body.SbAccessToken == "" {
		return "", &SessionError{Endpoint: endpoint, Err: fmt.Errorf("response missing sb_access_token")}
	}
	return body.SbAccessToken, nil
}

func (b *SessionBootstrapper) fetchUserID(ctx context.Context) (string, error) {
	endpoint := b.cfg.OAuthHost + "/api/v1/me.json"
	var body struct {
		ID string `json:"id"`
	}
	if err := b.rest.getJSON(ctx, endpoint, &body); err != nil {
		return "", &SessionError{Endpoint: endpoint, Err: err}
	}
	if body.ID == "" {
		return "", &SessionError{Endpoint: endpoint, Err: fmt.Errorf("response missing id")}
	}
	return userFullnamePrefix + body.ID, nil
}
