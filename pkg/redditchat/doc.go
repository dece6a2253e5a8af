// Copyright 2025-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package redditchat is a client for Reddit's Sendbird-backed chat: it
// authenticates against Reddit, exchanges the credential for a scoped
// broker session, and hands that session to a persistent realtime
// connection for sending and receiving chat events.
//
// # Core Types
//
// [Authenticator] yields the bearer credential; [PasswordAuth] and
// [TokenAuth] are the two strategies.
//
// [SessionBootstrapper] turns a credential into a [Session] (broker access
// token plus prefixed user id), consulting a [SessionStore] so the exchange
// calls only happen once per credential across process runs. The cache is
// keyed by the raw credential value: a reissued credential simply misses
// and re-mints, which is the intended invalidation mechanism.
//
// [ChannelDirectory] resolves subreddit names to broker channel
// identifiers and performs the HTTP half of joining a room.
//
// [ChatBot] wires all of the above to a sendbird.Client, the realtime
// transport living in the sendbird subpackage.
//
// # Error Taxonomy
//
// Bootstrap and lookup failures are synchronous typed errors ([AuthError],
// [SessionError], [StorageError], [NotFoundError], [ErrNoRooms]).
// Transport failures after a successful connect are delivered
// asynchronously through the realtime client's handler registration.
package redditchat
