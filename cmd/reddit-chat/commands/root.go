// Copyright 2025-2026 Aiku AI

package commands

import (
	"context"
	"errors"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aiku/reddit-chat/pkg/redditchat"
)

var (
	configPath string
	apiToken   string
	username   string
	password   string
	debug      bool

	cfg redditchat.Config
	log zerolog.Logger
)

func Execute() error {
	root := &cobra.Command{
		Use:           "reddit-chat",
		Short:         "Reddit chat client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			level := zerolog.InfoLevel
			if debug {
				level = zerolog.DebugLevel
			}
			log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).
				With().Timestamp().Logger()

			var err error
			cfg, err = redditchat.LoadConfig(configPath)
			if err != nil {
				return err
			}
			// Environment variables win over the config file.
			if err := env.Parse(&cfg); err != nil {
				return err
			}
			if apiToken == "" {
				apiToken = os.Getenv("REDDIT_CHAT_TOKEN")
			}
			if username == "" {
				username = os.Getenv("REDDIT_CHAT_USERNAME")
			}
			if password == "" {
				password = os.Getenv("REDDIT_CHAT_PASSWORD")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "config file path")
	root.PersistentFlags().StringVar(&apiToken, "token", "", "Reddit API token (token auth)")
	root.PersistentFlags().StringVar(&username, "username", "", "Reddit username (password auth)")
	root.PersistentFlags().StringVar(&password, "password", "", "Reddit password (password auth)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(listenCmd(), channelsCmd(), sendCmd())
	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		return err
	}
	return nil
}

// authenticator picks the auth strategy from the supplied flags.
func authenticator() (redditchat.Authenticator, error) {
	switch {
	case apiToken != "":
		return redditchat.TokenAuth{Token: apiToken}, nil
	case username != "" && password != "":
		return redditchat.PasswordAuth{Username: username, Password: password, Host: cfg.LoginHost}, nil
	default:
		return nil, errors.New("supply --token or --username/--password")
	}
}

func newBot(ctx context.Context) (*redditchat.ChatBot, error) {
	auth, err := authenticator()
	if err != nil {
		return nil, err
	}
	return redditchat.New(ctx, auth, cfg, log)
}
