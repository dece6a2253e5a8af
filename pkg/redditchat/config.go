// Copyright 2025-2026 Aiku AI

package redditchat

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	up "go.mau.fi/util/configupgrade"
	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var ExampleConfig string

// Default hosts and the fixed client identity constants. Reddit's chat
// backend only accepts these values; they are configuration so tests can
// point them at fakes, not because operators should change them.
const (
	DefaultOAuthHost    = "https://oauth.reddit.com"
	DefaultSendbirdHost = "https://s.reddit.com"
	DefaultLoginHost    = "https://www.reddit.com"
	DefaultWebsocketURL = "wss://sendbirdproxyk8s.chat.redditmedia.com"

	DefaultUserAgent = "Reddit/Version 2020.41.1/Build 296539/Android 11"
	DefaultAppID     = "2515BDA8-9D3A-47CF-9325-330BC37ADA13"
)

// Config holds the chat client configuration.
type Config struct {
	OAuthHost    string `yaml:"oauth_host" env:"REDDIT_CHAT_OAUTH_HOST"`
	SendbirdHost string `yaml:"sendbird_host" env:"REDDIT_CHAT_SENDBIRD_HOST"`
	LoginHost    string `yaml:"login_host" env:"REDDIT_CHAT_LOGIN_HOST"`
	WebsocketURL string `yaml:"websocket_url" env:"REDDIT_CHAT_WEBSOCKET_URL"`

	UserAgent string `yaml:"user_agent" env:"REDDIT_CHAT_USER_AGENT"`
	// AppID is the Sendbird application identity sent in the realtime
	// handshake.
	AppID string `yaml:"app_id" env:"REDDIT_CHAT_APP_ID"`

	// SessionDir is where cached broker sessions are written. Empty
	// disables the cache entirely.
	SessionDir string `yaml:"session_dir" env:"REDDIT_CHAT_SESSION_DIR"`
	// StoreSession controls whether ObtainSession reuses cached sessions
	// across process runs.
	StoreSession bool `yaml:"store_session" env:"REDDIT_CHAT_STORE_SESSION"`

	// PingIntervalSeconds is the realtime heartbeat period.
	PingIntervalSeconds int `yaml:"ping_interval_seconds"`
	// PingMissLimit is how many consecutive unanswered heartbeats are
	// tolerated before the connection is considered dead.
	PingMissLimit int `yaml:"ping_miss_limit"`
	// MaxReconnectTries caps reconnection attempts before the connection
	// is declared fatally lost.
	MaxReconnectTries int `yaml:"max_reconnect_tries"`
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// ApplyDefaults fills zero-valued fields with the fixed client identity.
func (c *Config) ApplyDefaults() {
	if c.OAuthHost == "" {
		c.OAuthHost = DefaultOAuthHost
	}
	if c.SendbirdHost == "" {
		c.SendbirdHost = DefaultSendbirdHost
	}
	if c.LoginHost == "" {
		c.LoginHost = DefaultLoginHost
	}
	if c.WebsocketURL == "" {
		c.WebsocketURL = DefaultWebsocketURL
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.AppID == "" {
		c.AppID = DefaultAppID
	}
	if c.PingIntervalSeconds <= 0 {
		c.PingIntervalSeconds = 15
	}
	if c.PingMissLimit <= 0 {
		c.PingMissLimit = 3
	}
	if c.MaxReconnectTries <= 0 {
		c.MaxReconnectTries = 5
	}
}

func upgradeConfig(helper up.Helper) {
	helper.Copy(up.Str, "oauth_host")
	helper.Copy(up.Str, "sendbird_host")
	helper.Copy(up.Str, "login_host")
	helper.Copy(up.Str, "websocket_url")
	helper.Copy(up.Str, "user_agent")
	helper.Copy(up.Str, "app_id")
	helper.Copy(up.Str, "session_dir")
	helper.Copy(up.Bool, "store_session")
	helper.Copy(up.Int, "ping_interval_seconds")
	helper.Copy(up.Int, "ping_miss_limit")
	helper.Copy(up.Int, "max_reconnect_tries")
}

// LoadConfig reads a user config file and merges it over the embedded
// example config, so new fields added in later versions pick up their
// documented defaults. A missing file yields the example config as-is.
func LoadConfig(path string) (Config, error) {
	var base yaml.Node
	if err := yaml.Unmarshal([]byte(ExampleConfig), &base); err != nil {
		return Config{}, fmt.Errorf("parse embedded config: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if len(data) > 0 {
		var user yaml.Node
		if err := yaml.Unmarshal(data, &user); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		upgradeConfig(up.NewHelper(&base, &user))
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(4)
	if err := enc.Encode(&base); err != nil {
		return Config{}, fmt.Errorf("re-encode config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(buf.Bytes(), &cfg); err != nil {
		return Config{}, fmt.Errorf("decode merged config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}
