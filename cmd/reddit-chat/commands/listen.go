// Copyright 2025-2026 Aiku AI

package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aiku/reddit-chat/pkg/redditchat/sendbird"
)

func listenCmd() *cobra.Command {
	var join []string
	var subreddit string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Connect and print inbound chat messages until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			bot, err := newBot(ctx)
			if err != nil {
				return err
			}
			defer bot.Close()

			bot.OnMessage(func(evt sendbird.Event) {
				fmt.Printf("[%s] %s: %s\n", evt.Message.ChannelURL, evt.Message.User.Name, evt.Message.Text)
			})
			bot.Realtime.On(sendbird.EventConnectionLost, func(evt sendbird.Event) {
				log.Error().Err(evt.Err).Msg("Connection lost")
				stop()
			})
			bot.Realtime.On(sendbird.EventAuthExpired, func(evt sendbird.Event) {
				log.Error().Err(evt.Err).Msg("Session expired; restart to mint a fresh one")
				stop()
			})

			if err := bot.Connect(ctx); err != nil {
				return err
			}
			for _, channel := range join {
				if err := bot.JoinChannel(ctx, subreddit, channel); err != nil {
					return err
				}
			}

			log.Info().Msg("Listening for messages, Ctrl-C to stop")
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&subreddit, "subreddit", "", "subreddit owning the channels to join")
	cmd.Flags().StringSliceVar(&join, "join", nil, "channel URLs or ids to join on connect")
	return cmd
}
