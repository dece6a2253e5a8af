// Copyright 2025-2026 Aiku AI

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <channel> <text>",
		Short: "Send a single message to a channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bot, err := newBot(cmd.Context())
			if err != nil {
				return err
			}
			defer bot.Close()

			if err := bot.Connect(cmd.Context()); err != nil {
				return err
			}
			ack, err := bot.SendMessage(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("sent message %d to %s\n", ack.MessageID, ack.ChannelURL)
			return nil
		},
	}
}
