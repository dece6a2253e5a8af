// Copyright 2025-2026 Aiku AI

package sendbird

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// brokerFrame is one frame received by the fake broker, tagged with the
// ordinal of the connection it arrived on.
type brokerFrame struct {
	Conn int
	Cmd  string
	Body []byte
}

// fakeBroker is an in-process stand-in for the Sendbird streaming endpoint.
// It upgrades incoming websockets, answers the login handshake, records
// every frame it receives, and can be scripted to reject handshakes or echo
// message acks.
type fakeBroker struct {
	t   *testing.T
	srv *httptest.Server

	// LoginFrames are consumed one per dial as the handshake reply. When
	// exhausted (or empty), a successful ack with ConnectionKey is sent.
	LoginFrames [][]byte
	// ConnectionKey is the device key in the default handshake ack.
	ConnectionKey string
	// EchoAcks makes the broker answer each MESG frame with an ack MESG
	// carrying the same req_id.
	EchoAcks bool
	// AnswerPings makes the broker reply PONG to client PING frames.
	AnswerPings bool
	// RefuseUpgrades rejects all further websocket upgrades with a 503.
	RefuseUpgrades bool

	mu         sync.Mutex
	writeMu    sync.Mutex
	attempts   int
	conns      []*websocket.Conn
	queries    []url.Values
	frames     []brokerFrame
	nextMsgID  int64
	loginsSent int
}

func newFakeBroker(t *testing.T) *fakeBroker {
	t.Helper()
	fb := &fakeBroker{
		t:             t,
		ConnectionKey: "conn-key-1",
		AnswerPings:   true,
		nextMsgID:     1000,
	}
	upgrader := websocket.Upgrader{}
	fb.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		fb.attempts++
		refuse := fb.RefuseUpgrades
		fb.mu.Unlock()
		if refuse {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fb.mu.Lock()
		fb.conns = append(fb.conns, conn)
		fb.queries = append(fb.queries, r.URL.Query())
		// Ordinals count dials; DropConns clears the live list but must
		// not reset frame attribution.
		ordinal := len(fb.queries) - 1
		var login []byte
		if fb.loginsSent < len(fb.LoginFrames) {
			login = fb.LoginFrames[fb.loginsSent]
		} else {
			login = []byte(fmt.Sprintf(`LOGI{"key":%q,"login_ts":%d}`, fb.ConnectionKey, time.Now().UnixMilli()))
		}
		fb.loginsSent++
		fb.mu.Unlock()

		fb.write(conn, login)
		fb.serve(conn, ordinal)
	}))
	t.Cleanup(fb.srv.Close)
	return fb
}

// URL returns the ws:// endpoint of the broker.
func (fb *fakeBroker) URL() string {
	return "ws" + strings.TrimPrefix(fb.srv.URL, "http")
}

func (fb *fakeBroker) write(conn *websocket.Conn, frame []byte) {
	fb.writeMu.Lock()
	defer fb.writeMu.Unlock()
	_ = conn.WriteMessage(websocket.TextMessage, frame)
}

func (fb *fakeBroker) serve(conn *websocket.Conn, ordinal int) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if len(raw) < commandLen {
			continue
		}
		cmd, body := string(raw[:commandLen]), raw[commandLen:]
		fb.mu.Lock()
		fb.frames = append(fb.frames, brokerFrame{Conn: ordinal, Cmd: cmd, Body: body})
		echo, pong := fb.EchoAcks, fb.AnswerPings
		msgID := fb.nextMsgID
		fb.nextMsgID++
		fb.mu.Unlock()

		switch cmd {
		case cmdPing:
			if pong {
				fb.write(conn, []byte(`PONG{}`))
			}
		case cmdMessage:
			if echo {
				var sent sendPayload
				if err := json.Unmarshal(body, &sent); err != nil {
					continue
				}
				ack, _ := json.Marshal(Message{
					MessageID:  msgID,
					ReqID:      sent.ReqID,
					ChannelURL: sent.ChannelURL,
					Text:       sent.Message,
					Timestamp:  time.Now().UnixMilli(),
				})
				fb.write(conn, append([]byte(cmdMessage), ack...))
			}
		}
	}
}

// Push writes a raw frame to the most recent connection.
func (fb *fakeBroker) Push(frame []byte) {
	fb.mu.Lock()
	if len(fb.conns) == 0 {
		fb.mu.Unlock()
		fb.t.Fatal("Push with no active connection")
		return
	}
	conn := fb.conns[len(fb.conns)-1]
	fb.mu.Unlock()
	fb.write(conn, frame)
}

// DropConns closes every accepted connection from the server side.
func (fb *fakeBroker) DropConns() {
	fb.mu.Lock()
	conns := fb.conns
	fb.conns = nil
	fb.mu.Unlock()
	for _, conn := range conns {
		conn.Close()
	}
}

// DialCount is how many websocket upgrades completed.
func (fb *fakeBroker) DialCount() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.queries)
}

// Attempts is how many connection attempts arrived, refused ones included.
func (fb *fakeBroker) Attempts() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.attempts
}

// Query returns the query string of the i-th dial.
func (fb *fakeBroker) Query(i int) url.Values {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.queries[i]
}

// Frames returns a snapshot of every recorded frame.
func (fb *fakeBroker) Frames() []brokerFrame {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	out := make([]brokerFrame, len(fb.frames))
	copy(out, fb.frames)
	return out
}

// WaitForFrame polls until a frame with the command arrives on the given
// connection ordinal (-1 for any) and returns it.
func (fb *fakeBroker) WaitForFrame(cmd string, conn int) brokerFrame {
	fb.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, frame := range fb.Frames() {
			if frame.Cmd == cmd && (conn < 0 || frame.Conn == conn) {
				return frame
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	fb.t.Fatalf("no %s frame arrived on conn %d", cmd, conn)
	return brokerFrame{}
}

// testParams builds fast client params pointed at the broker.
func testParams(fb *fakeBroker) Params {
	return Params{
		WebsocketURL:      fb.URL(),
		AppID:             "app-id-1",
		AccessToken:       "tok-1",
		UserID:            "t2_42",
		PingInterval:      time.Minute,
		PingMissLimit:     3,
		MaxReconnectTries: 5,
		AckTimeout:        2 * time.Second,
		ReconnectDelay:    10 * time.Millisecond,
		ReconnectMaxDelay: 50 * time.Millisecond,
		Logger:            zerolog.Nop(),
	}
}

// waitForState polls until the client reaches the state or the test fails.
func waitForState(t *testing.T, c *Client, want ConnectionState) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client state: got %v, want %v", c.State(), want)
}

// waitForEvent receives one event from the channel or fails the test.
func waitForEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case evt := <-events:
		return evt
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}
