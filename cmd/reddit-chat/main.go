// Copyright 2025-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command reddit-chat is a thin CLI over the redditchat library: it
// authenticates, opens the realtime connection, and exposes listen/send/
// channels subcommands for interacting with subreddit chat rooms.
package main

import (
	"os"

	"github.com/aiku/reddit-chat/cmd/reddit-chat/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
