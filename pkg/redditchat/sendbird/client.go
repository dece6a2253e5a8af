// Copyright 2025-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package sendbird

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ConnectionState is the realtime connection lifecycle state. It is owned
// and mutated exclusively by the Client.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

const (
	defaultPingInterval  = 15 * time.Second
	defaultPingMissLimit = 3
	defaultMaxReconnect  = 5
	defaultAckTimeout    = 10 * time.Second
	handshakeTimeout     = 30 * time.Second
	reconnectDelay       = 2 * time.Second
	reconnectMaxDelay    = 30 * time.Second
)

// Params configures a realtime client. AccessToken and UserID come from the
// broker session; AppID is the fixed application identity.
type Params struct {
	WebsocketURL string
	AppID        string
	AccessToken  string
	UserID       string

	PingInterval      time.Duration
	PingMissLimit     int
	MaxReconnectTries int
	AckTimeout        time.Duration
	ReconnectDelay    time.Duration
	ReconnectMaxDelay time.Duration

	Dialer *websocket.Dialer
	Logger zerolog.Logger
}

// Client maintains exactly one logical connection to the Sendbird streaming
// endpoint. One goroutine owns the read path; outbound writes from any
// caller are serialized through a write lock. Heartbeats drive the
// Connected→Reconnecting edge; reconnection retries with exponential
// backoff up to a capped attempt count.
type Client struct {
	params Params
	dialer *websocket.Dialer
	log    zerolog.Logger

	mu            sync.Mutex
	state         ConnectionState
	conn          *websocket.Conn
	connectionKey string
	handlers      map[EventType][]Handler
	pending       map[string]chan *Message
	joined        map[string]struct{}

	writeMu     sync.Mutex
	missedPings atomic.Int32

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewClient creates a client in the Disconnected state.
func NewClient(params Params) *Client {
	if params.PingInterval <= 0 {
		params.PingInterval = defaultPingInterval
	}
	if params.PingMissLimit <= 0 {
		params.PingMissLimit = defaultPingMissLimit
	}
	if params.MaxReconnectTries <= 0 {
		params.MaxReconnectTries = defaultMaxReconnect
	}
	if params.AckTimeout <= 0 {
		params.AckTimeout = defaultAckTimeout
	}
	if params.ReconnectDelay <= 0 {
		params.ReconnectDelay = reconnectDelay
	}
	if params.ReconnectMaxDelay <= 0 {
		params.ReconnectMaxDelay = reconnectMaxDelay
	}
	dialer := params.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Client{
		params:   params,
		dialer:   dialer,
		log:      params.Logger.With().Str("component", "sendbird").Logger(),
		state:    StateDisconnected,
		handlers: make(map[EventType][]Handler),
		pending:  make(map[string]chan *Message),
		joined:   make(map[string]struct{}),
		stopChan: make(chan struct{}),
	}
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConnectionKey returns the device identity the broker assigned on first
// connect, or empty before the first successful handshake.
func (c *Client) ConnectionKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionKey
}

// On registers a handler for an event class. Handlers for the same type run
// in registration order on the read loop.
func (c *Client) On(eventType EventType, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	c.handlers[eventType] = append(c.handlers[eventType], handler)
}

// Connect establishes the websocket and performs the login handshake.
// Calling Connect on a client that already holds a live or pending
// connection returns ErrAlreadyConnected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrClosed
	case StateDisconnected:
	default:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.mu.Unlock()

	conn, ack, err := c.dialAndLogin(ctx)
	if err != nil {
		c.mu.Lock()
		if c.state == StateConnecting {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		return err
	}
	if !c.adoptConn(conn, ack) {
		return ErrClosed
	}
	c.log.Info().Str("user_id", c.params.UserID).Msg("Realtime connection established")
	return nil
}

// dialAndLogin opens the socket and waits for the LOGI ack frame.
func (c *Client) dialAndLogin(ctx context.Context) (*websocket.Conn, loginAck, error) {
	endpoint, err := c.buildURL()
	if err != nil {
		return nil, loginAck{}, &ConnectError{Stage: "dial", Err: err}
	}

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, loginAck{}, &ConnectError{Stage: "dial", Err: err}
	}

	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, loginAck{}, &ConnectError{Stage: "handshake", Err: err}
	}
	conn.SetReadDeadline(time.Time{})

	cmd, body, err := decodeFrame(raw)
	if err != nil {
		conn.Close()
		return nil, loginAck{}, &ConnectError{Stage: "handshake", Err: err}
	}
	if cmd != cmdLogin {
		conn.Close()
		return nil, loginAck{}, &ConnectError{Stage: "handshake", Err: fmt.Errorf("expected %s frame, got %s", cmdLogin, cmd)}
	}

	var ack loginAck
	if err := json.Unmarshal(body, &ack); err != nil {
		conn.Close()
		return nil, loginAck{}, &ConnectError{Stage: "handshake", Err: fmt.Errorf("malformed login ack: %w", err)}
	}
	if ack.Error {
		conn.Close()
		return nil, loginAck{}, &ConnectError{Stage: "handshake", Err: &ServerError{Code: ack.Code, Message: ack.Message}}
	}
	if ack.Key == "" {
		conn.Close()
		return nil, loginAck{}, &ConnectError{Stage: "handshake", Err: errors.New("login ack missing connection key")}
	}
	return conn, ack, nil
}

func (c *Client) buildURL() (string, error) {
	u, err := url.Parse(c.params.WebsocketURL)
	if err != nil {
		return "", fmt.Errorf("parse websocket url: %w", err)
	}
	q := u.Query()
	q.Set("p", "Android")
	q.Set("pv", "30")
	q.Set("sv", "3.0.144")
	q.Set("ai", c.params.AppID)
	q.Set("user_id", c.params.UserID)
	q.Set("access_token", c.params.AccessToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// adoptConn installs an authenticated socket, starts its read and heartbeat
// loops, and re-enters previously joined channels. Returns false when the
// client was closed while the handshake was in flight.
func (c *Client) adoptConn(conn *websocket.Conn, ack loginAck) bool {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		conn.Close()
		return false
	}
	c.conn = conn
	c.state = StateConnected
	if c.connectionKey == "" {
		c.connectionKey = ack.Key
	}
	joined := make([]string, 0, len(c.joined))
	for channelURL := range c.joined {
		joined = append(joined, channelURL)
	}
	c.mu.Unlock()

	c.missedPings.Store(0)
	done := make(chan struct{})
	go c.readLoop(conn, done)
	go c.heartbeatLoop(conn, done)

	for _, channelURL := range joined {
		if err := c.writeFrame(conn, cmdEnter, channelCommand{ChannelURL: channelURL, ReqID: uuid.NewString()}); err != nil {
			c.log.Warn().Err(err).Str("channel_url", channelURL).Msg("Failed to re-enter channel")
		}
	}
	return true
}

// readLoop is the single owner of the read path for one socket. It exits
// when the socket errors, which happens naturally on Close.
func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(conn, err)
			return
		}
		// Any inbound traffic proves the connection is alive.
		c.missedPings.Store(0)
		c.handleFrame(conn, raw)
	}
}

func (c *Client) handleReadError(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.state != StateConnected || c.conn != conn {
		// Shutdown, auth failure, or a superseded socket already handled
		// this connection's teardown.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateReconnecting
	c.mu.Unlock()

	c.log.Warn().Err(err).Msg("Realtime connection dropped, reconnecting")
	go c.reconnect()
}

func (c *Client) handleFrame(conn *websocket.Conn, raw []byte) {
	cmd, body, err := decodeFrame(raw)
	if err != nil {
		c.log.Warn().Err(err).Msg("Dropping malformed frame")
		return
	}
	switch cmd {
	case cmdPong:
		// Counter already reset on read.
	case cmdPing:
		var ping pingPayload
		_ = json.Unmarshal(body, &ping)
		if err := c.writeFrame(conn, cmdPong, ping); err != nil {
			c.log.Warn().Err(err).Msg("Failed to answer server ping")
		}
	case cmdLogin:
		c.handleSessionNotice(conn, body)
	case cmdMessage, cmdBroadcast:
		var msg Message
		if err := json.Unmarshal(body, &msg); err != nil {
			c.log.Warn().Err(err).Msg("Dropping undecodable message frame")
			return
		}
		if msg.ReqID != "" && c.resolveAck(&msg) {
			return
		}
		c.dispatch(Event{Type: EventMessage, Message: &msg, Raw: body})
	case cmdDeleted:
		var msg Message
		if err := json.Unmarshal(body, &msg); err != nil {
			c.log.Warn().Err(err).Msg("Dropping undecodable delete frame")
			return
		}
		c.dispatch(Event{Type: EventMessageDeleted, Message: &msg, Raw: body})
	case cmdSystemEvent:
		var sysEvent SystemEvent
		if err := json.Unmarshal(body, &sysEvent); err != nil {
			c.log.Warn().Err(err).Msg("Dropping undecodable system frame")
			return
		}
		c.dispatch(Event{Type: EventSystem, System: &sysEvent, Raw: body})
	case cmdError:
		var frame errorFrame
		_ = json.Unmarshal(body, &frame)
		c.dispatch(Event{Type: EventError, Err: &ServerError{Code: frame.Code, Message: frame.Message}, Raw: body})
	default:
		c.log.Trace().Str("command", cmd).Msg("Unhandled frame")
	}
}

// handleSessionNotice processes a LOGI frame arriving after the handshake.
// The broker uses it to revoke the session; a malformed or error-flagged
// notice means the session is no longer trusted.
func (c *Client) handleSessionNotice(conn *websocket.Conn, body []byte) {
	var ack loginAck
	err := json.Unmarshal(body, &ack)
	switch {
	case err != nil:
		c.failAuth(conn, fmt.Errorf("malformed login ack: %w", err))
	case ack.Error:
		c.failAuth(conn, &ServerError{Code: ack.Code, Message: ack.Message})
	case ack.Key == "":
		c.failAuth(conn, errors.New("login ack missing connection key"))
	default:
		c.log.Debug().Msg("Session notice refreshed connection metadata")
	}
}

// failAuth tears the connection down without retrying and surfaces
// AuthExpired so the owner can mint a fresh session and reconnect.
func (c *Client) failAuth(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()

	conn.Close()
	c.log.Warn().Err(err).Msg("Broker rejected session")
	c.dispatch(Event{Type: EventAuthExpired, Err: err})
}

// heartbeatLoop pings the broker on a fixed interval. PingMissLimit
// consecutive intervals without any inbound traffic force the socket
// closed, which unblocks the read loop and drives reconnection.
func (c *Client) heartbeatLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.params.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopChan:
			return
		case <-done:
			return
		case <-ticker.C:
			if int(c.missedPings.Add(1)) > c.params.PingMissLimit {
				c.log.Warn().Int("miss_limit", c.params.PingMissLimit).Msg("Heartbeat limit exceeded, forcing reconnect")
				conn.Close()
				return
			}
			if err := c.writeFrame(conn, cmdPing, pingPayload{ID: time.Now().UnixMilli(), Active: 1}); err != nil {
				c.log.Warn().Err(err).Msg("Heartbeat write failed")
				conn.Close()
				return
			}
		}
	}
}

// reconnect retries the dial/handshake with exponential backoff. Auth
// rejections stop retrying immediately; an exhausted budget is fatal.
func (c *Client) reconnect() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = c.params.ReconnectDelay
	retry.MaxInterval = c.params.ReconnectMaxDelay

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if c.State() != StateReconnecting {
			return struct{}{}, backoff.Permanent(ErrClosed)
		}
		conn, ack, err := c.dialAndLogin(ctx)
		if err != nil {
			if isAuthRejection(err) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		if !c.adoptConn(conn, ack) {
			return struct{}{}, backoff.Permanent(ErrClosed)
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(retry),
		backoff.WithMaxTries(uint(c.params.MaxReconnectTries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Debug().Err(err).Str("next_retry", next.String()).Msg("Retrying realtime connection")
		}),
	)
	if err == nil {
		c.log.Info().Msg("Realtime connection re-established")
		c.dispatch(Event{Type: EventReconnected})
		return
	}
	if errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) {
		return
	}

	c.mu.Lock()
	if c.state == StateReconnecting {
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	if isAuthRejection(err) {
		c.log.Warn().Err(err).Msg("Broker rejected session during reconnect")
		c.dispatch(Event{Type: EventAuthExpired, Err: err})
		return
	}
	c.log.Error().Err(err).Msg("Reconnect budget exhausted, connection lost")
	c.dispatch(Event{Type: EventConnectionLost, Err: err})
}

// SendMessage writes a chat message frame and waits for the broker's ack,
// matched by request id.
func (c *Client) SendMessage(ctx context.Context, channelURL, text string) (MessageAck, error) {
	conn := c.connectedConn()
	if conn == nil {
		return MessageAck{}, ErrNotConnected
	}

	reqID := uuid.NewString()
	ackChan := make(chan *Message, 1)
	c.mu.Lock()
	c.pending[reqID] = ackChan
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, reqID)
		c.mu.Unlock()
	}()

	payload := sendPayload{
		ChannelURL: NormalizeChannelURL(channelURL),
		Message:    text,
		ReqID:      reqID,
	}
	if err := c.writeFrame(conn, cmdMessage, payload); err != nil {
		return MessageAck{}, err
	}

	timer := time.NewTimer(c.params.AckTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return MessageAck{}, ctx.Err()
	case <-c.stopChan:
		return MessageAck{}, ErrClosed
	case <-timer.C:
		return MessageAck{}, ErrAckTimeout
	case msg := <-ackChan:
		return MessageAck{MessageID: msg.MessageID, ChannelURL: msg.ChannelURL, Timestamp: msg.Timestamp}, nil
	}
}

// resolveAck delivers an inbound message to the sender waiting on its
// request id. Returns false when nobody is waiting.
func (c *Client) resolveAck(msg *Message) bool {
	c.mu.Lock()
	ackChan, ok := c.pending[msg.ReqID]
	if ok {
		delete(c.pending, msg.ReqID)
	}
	c.mu.Unlock()
	if ok {
		ackChan <- msg
	}
	return ok
}

// JoinChannel attaches the live socket to a channel's event stream. This is
// the realtime half of joining; registering membership server-side is the
// directory's HTTP join.
func (c *Client) JoinChannel(channel string) error {
	conn := c.connectedConn()
	if conn == nil {
		return ErrNotConnected
	}
	channelURL := NormalizeChannelURL(channel)
	if err := c.writeFrame(conn, cmdEnter, channelCommand{ChannelURL: channelURL, ReqID: uuid.NewString()}); err != nil {
		return err
	}
	c.mu.Lock()
	c.joined[channelURL] = struct{}{}
	c.mu.Unlock()
	c.log.Debug().Str("channel_url", channelURL).Msg("Entered channel stream")
	return nil
}

// LeaveChannel detaches the socket from a channel's event stream.
func (c *Client) LeaveChannel(channel string) error {
	conn := c.connectedConn()
	if conn == nil {
		return ErrNotConnected
	}
	channelURL := NormalizeChannelURL(channel)
	if err := c.writeFrame(conn, cmdExit, channelCommand{ChannelURL: channelURL, ReqID: uuid.NewString()}); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.joined, channelURL)
	c.mu.Unlock()
	return nil
}

// MarkRead reports the channel as read up to now.
func (c *Client) MarkRead(channel string) error {
	conn := c.connectedConn()
	if conn == nil {
		return ErrNotConnected
	}
	return c.writeFrame(conn, cmdRead, channelCommand{ChannelURL: NormalizeChannelURL(channel), ReqID: uuid.NewString()})
}

// Typing signals a typing indicator for the channel.
func (c *Client) Typing(channel string, start bool) error {
	conn := c.connectedConn()
	if conn == nil {
		return ErrNotConnected
	}
	cmd := cmdTypingEnd
	if start {
		cmd = cmdTypingStart
	}
	return c.writeFrame(conn, cmd, channelCommand{ChannelURL: NormalizeChannelURL(channel), Time: time.Now().UnixMilli()})
}

// Close releases the socket, stops the heartbeat, unblocks the read loop,
// and unregisters all handlers. It is idempotent and terminal.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		conn := c.conn
		c.conn = nil
		c.handlers = make(map[EventType][]Handler)
		c.pending = make(map[string]chan *Message)
		c.mu.Unlock()

		close(c.stopChan)
		if conn != nil {
			conn.Close()
		}
		c.log.Info().Msg("Realtime client closed")
	})
}

func (c *Client) connectedConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return nil
	}
	return c.conn
}

func (c *Client) writeFrame(conn *websocket.Conn, cmd string, payload any) error {
	frame, err := encodeFrame(cmd, payload)
	if err != nil {
		return &SendError{Command: cmd, Err: err}
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return &SendError{Command: cmd, Err: err}
	}
	return nil
}

// dispatch invokes registered handlers in registration order on the calling
// goroutine (the read loop for inbound frames).
func (c *Client) dispatch(evt Event) {
	c.mu.Lock()
	handlers := make([]Handler, len(c.handlers[evt.Type]))
	copy(handlers, c.handlers[evt.Type])
	c.mu.Unlock()
	for _, handler := range handlers {
		handler(evt)
	}
}
