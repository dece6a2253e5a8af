// Copyright 2025-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package sendbird implements the realtime transport half of Reddit chat: a
// persistent websocket connection to the Sendbird broker, authenticated
// with a broker session, with framing, dispatch, heartbeats, and
// reconnection.
//
// # Connection lifecycle
//
// [Client.Connect] dials the streaming endpoint and waits for the LOGI ack
// that authenticates the connection. A single goroutine owns the read path
// and dispatches inbound frames to handlers registered with [Client.On];
// outbound commands ([Client.SendMessage], [Client.JoinChannel],
// heartbeats) may originate from any goroutine and are serialized onto the
// socket through a write lock.
//
// Liveness is a fixed-interval ping cycle. When the configured number of
// consecutive intervals pass without inbound traffic, the socket is forced
// closed and the client reconnects with exponential backoff. An exhausted
// retry budget surfaces [EventConnectionLost]; a session rejected by the
// broker surfaces [EventAuthExpired] so the owner can mint a fresh session
// and call Connect again.
//
// Transport errors after a successful connect are always surfaced through
// the handler mechanism, never thrown out of unrelated calls.
//
// # Caller obligations
//
// Handlers run on the read loop. A handler that blocks stalls all further
// dispatch; offload long work to another goroutine.
package sendbird
