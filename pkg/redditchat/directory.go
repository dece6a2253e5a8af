// Copyright 2025-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package redditchat

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aiku/reddit-chat/pkg/redditchat/sendbird"
)

// NormalizeChannelURL prefixes a bare channel id with the Sendbird group
// channel namespace. Already-canonical URLs pass through unchanged.
func NormalizeChannelURL(channel string) string {
	return sendbird.NormalizeChannelURL(channel)
}

// ChannelDirectory resolves subreddit names to Sendbird channel identifiers
// via the HTTP control plane. It holds no protocol state.
type ChannelDirectory struct {
	rest *restClient
	cfg  Config
	log  zerolog.Logger
}

func NewChannelDirectory(rest *restClient, cfg Config, log zerolog.Logger) *ChannelDirectory {
	return &ChannelDirectory{
		rest: rest,
		cfg:  cfg,
		log:  log.With().Str("component", "directory").Logger(),
	}
}

// SubredditID resolves a subreddit name to its fullname identifier
// (e.g. "t5_2qh0u").
func (d *ChannelDirectory) SubredditID(ctx context.Context, name string) (string, error) {
	var body struct {
		Data struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	endpoint := fmt.Sprintf("%s/r/%s/about.json", d.cfg.OAuthHost, name)
	if err := d.rest.getJSON(ctx, endpoint, &body); err != nil {
		return "", err
	}
	if body.Data.Name == "" {
		return "", &NotFoundError{Subreddit: name}
	}
	return body.Data.Name, nil
}

// Channels fetches the subreddit's room listing and returns a one-pass
// iterator over the channel URLs. The iterator is not restartable; it walks
// the server's listing at the time of the call.
func (d *ChannelDirectory) Channels(ctx context.Context, subreddit string) (*ChannelIter, error) {
	subID, err := d.SubredditID(ctx, subreddit)
	if err != nil {
		return nil, err
	}
	var body struct {
		Rooms []struct {
			URL string `json:"url"`
		} `json:"rooms"`
	}
	endpoint := fmt.Sprintf("%s/api/v1/subreddit/%s/channels", d.cfg.SendbirdHost, subID)
	if err := d.rest.getJSON(ctx, endpoint, &body); err != nil {
		return nil, err
	}
	if len(body.Rooms) == 0 {
		return nil, fmt.Errorf("listing channels for %s: %w", subreddit, ErrNoRooms)
	}
	d.log.Debug().Str("subreddit", subreddit).Int("rooms", len(body.Rooms)).Msg("Fetched channel listing")

	urls := make([]string, 0, len(body.Rooms))
	for _, room := range body.Rooms {
		urls = append(urls, room.URL)
	}
	return &ChannelIter{urls: urls}, nil
}

// Resolve looks up the subreddit id and normalizes the channel reference
// into a ChannelIdentity ready for join calls on either protocol layer.
func (d *ChannelDirectory) Resolve(ctx context.Context, subreddit, channel string) (ChannelIdentity, error) {
	subID, err := d.SubredditID(ctx, subreddit)
	if err != nil {
		return ChannelIdentity{}, err
	}
	return ChannelIdentity{
		SubredditID: subID,
		ChannelURL:  NormalizeChannelURL(channel),
	}, nil
}

// Join registers room membership server-side. This is the HTTP half of
// joining; attaching the live socket to the channel's event stream is the
// realtime client's job.
func (d *ChannelDirectory) Join(ctx context.Context, subreddit, channel string) error {
	identity, err := d.Resolve(ctx, subreddit, channel)
	if err != nil {
		return err
	}
	payload := fmt.Sprintf(`{"channel_url":%q,"subreddit":%q}`, identity.ChannelURL, identity.SubredditID)
	endpoint := d.cfg.SendbirdHost + "/api/v1/sendbird/join"
	if err := d.rest.postJSON(ctx, endpoint, payload, nil); err != nil {
		return err
	}
	d.log.Info().Str("channel_url", identity.ChannelURL).Str("subreddit_id", identity.SubredditID).Msg("Joined channel")
	return nil
}

// ChannelIdentity addresses one Sendbird room belonging to a subreddit.
type ChannelIdentity struct {
	SubredditID string
	ChannelURL  string
}

// ChannelIter walks a channel listing once, bufio.Scanner style:
//
//	iter, err := directory.Channels(ctx, "golang")
//	for iter.Next() {
//	    use(iter.URL())
//	}
type ChannelIter struct {
	urls    []string
	current string
}

// Next advances the iterator. It returns false when the listing is
// exhausted.
func (it *ChannelIter) Next() bool {
	if len(it.urls) == 0 {
		return false
	}
	it.current = it.urls[0]
	it.urls = it.urls[1:]
	return true
}

// URL returns the channel URL at the current position.
func (it *ChannelIter) URL() string { return it.current }

// Err reports an error encountered during iteration. The listing is
// fetched before the iterator is returned, so this is currently always
// nil; callers should still check it for forward compatibility with a
// paginated listing.
func (it *ChannelIter) Err() error { return nil }
