// Copyright 2025-2026 Aiku AI

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func channelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "channels <subreddit>",
		Short: "List the chat channel URLs of a subreddit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bot, err := newBot(cmd.Context())
			if err != nil {
				return err
			}
			defer bot.Close()

			iter, err := bot.Directory.Channels(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for iter.Next() {
				fmt.Println(iter.URL())
			}
			return nil
		},
	}
}
