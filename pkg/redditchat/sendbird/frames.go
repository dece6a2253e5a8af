// Copyright 2025-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package sendbird

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Sendbird frames are a four-letter command followed by a JSON body. The
// framing is broker-defined and versioned; it is reproduced here, not
// redesigned.
const (
	cmdLogin       = "LOGI"
	cmdMessage     = "MESG"
	cmdPing        = "PING"
	cmdPong        = "PONG"
	cmdRead        = "READ"
	cmdEnter       = "ENTR"
	cmdExit        = "EXIT"
	cmdTypingStart = "TPST"
	cmdTypingEnd   = "TPEN"
	cmdSystemEvent = "SYEV"
	cmdDeleted     = "DELM"
	cmdBroadcast   = "BRDM"
	cmdError       = "EROR"
)

const commandLen = 4

// ChannelURLPrefix is the Sendbird namespace token for Reddit group
// channels.
const ChannelURLPrefix = "sendbird_group_channel_"

// NormalizeChannelURL prefixes a bare channel id with the group channel
// namespace. Canonical URLs pass through unchanged.
func NormalizeChannelURL(channel string) string {
	if strings.HasPrefix(channel, ChannelURLPrefix) {
		return channel
	}
	return ChannelURLPrefix + channel
}

func encodeFrame(cmd string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", cmd, err)
	}
	return append([]byte(cmd), body...), nil
}

func decodeFrame(raw []byte) (cmd string, body []byte, err error) {
	if len(raw) < commandLen {
		return "", nil, fmt.Errorf("frame too short: %d bytes", len(raw))
	}
	cmd = string(raw[:commandLen])
	for _, r := range cmd {
		if r < 'A' || r > 'Z' {
			return "", nil, fmt.Errorf("malformed frame command %q", cmd)
		}
	}
	return cmd, raw[commandLen:], nil
}

// loginAck is the body of the LOGI frame the server sends after the
// websocket handshake. On success it carries the connection key assigned to
// this device; on rejection it carries an error code instead.
type loginAck struct {
	Key       string `json:"key"`
	Error     bool   `json:"error"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	LoginTS   int64  `json:"login_ts"`
	PingInt   int    `json:"ping_interval"`
	PongTmout int    `json:"pong_timeout"`
}

type pingPayload struct {
	ID     int64 `json:"id"`
	Active int   `json:"active"`
}

type sendPayload struct {
	ChannelURL string `json:"channel_url"`
	Message    string `json:"message"`
	Data       string `json:"data"`
	ReqID      string `json:"req_id"`
}

type channelCommand struct {
	ChannelURL string `json:"channel_url"`
	ReqID      string `json:"req_id,omitempty"`
	Time       int64  `json:"time,omitempty"`
}

type errorFrame struct {
	Error   bool   `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}
