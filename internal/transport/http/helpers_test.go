package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/huddle/internal/auth"
	"github.com/vovakirdan/huddle/internal/config"
	"github.com/vovakirdan/huddle/internal/core"
	"github.com/vovakirdan/huddle/internal/proto"
	"github.com/vovakirdan/huddle/internal/store/sqlite"
)

var testJWT = &auth.JWTConfig{
	Secret:   []byte("testsecret"),
	Issuer:   "huddle-test",
	Audience: "huddle-test-clients",
	TTL:      time.Hour,
}

type testServer struct {
	*httptest.Server
	hub   *core.Hub
	store *sqlite.SQLiteStore
}

// startTestServer serves the full router over a fresh in-memory store with
// room "general" {alice, bob} and room "private" {alice}.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if _, err := st.CreateRoom(ctx, "general", "General"); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := st.CreateRoom(ctx, "private", "Private"); err != nil {
		t.Fatalf("create room: %v", err)
	}
	for _, m := range [][2]string{{"general", "alice"}, {"general", "bob"}, {"private", "alice"}} {
		if err := st.AddMember(ctx, m[0], m[1]); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}

	cfg := config.Default()
	cfg.Addr = ":0"
	if mutate != nil {
		mutate(&cfg)
	}

	logger := zerolog.Nop()
	verifier := auth.NewVerifier(testJWT)
	hub := core.NewHub(core.Deps{Store: st, Verifier: verifier, Logger: &logger}, core.Options{
		TypingTTL:        cfg.TypingTTL,
		SweepInterval:    20 * time.Millisecond,
		CallRingTimeout:  cfg.CallRingTimeout,
		MaxContentLength: cfg.MaxContentLength,
	})
	go hub.Run(ctx)

	server := NewServer(hub, verifier, st, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testServer{Server: ts, hub: hub, store: st}
}

func tokenFor(t *testing.T, user string) string {
	t.Helper()

	token, err := auth.GenerateToken(testJWT, user, strings.ToUpper(user[:1])+user[1:])
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

// received mirrors proto.Outbound with the payload left undecoded.
type received struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

type wsClient struct {
	t    *testing.T
	ctx  context.Context
	conn *websocket.Conn
}

func (ts *testServer) dial(t *testing.T) *wsClient {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })

	return &wsClient{t: t, ctx: ctx, conn: conn}
}

// login dials and registers as user, consuming the registered confirmation.
func (ts *testServer) login(t *testing.T, user string) *wsClient {
	t.Helper()

	c := ts.dial(t)
	c.send(proto.InboundTypeRegister, proto.RegisterData{Token: tokenFor(t, user), Protocol: proto.ProtocolVersion})
	var reg proto.EventRegistered
	c.expect("registered", &reg)
	if reg.UserID != user {
		t.Fatalf("registered as %q, want %q", reg.UserID, user)
	}
	return c
}

func (c *wsClient) send(typ string, data any) {
	c.t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		c.t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(c.ctx, c.conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		c.t.Fatalf("send %s: %v", typ, err)
	}
}

func (c *wsClient) read() received {
	c.t.Helper()

	var out received
	if err := wsjson.Read(c.ctx, c.conn, &out); err != nil {
		c.t.Fatalf("read outbound: %v", err)
	}
	return out
}

// expect skips presence broadcasts and decodes the next envelope, which must be event.
func (c *wsClient) expect(event string, into any) {
	c.t.Helper()

	for {
		out := c.read()
		if out.Type == proto.OutboundTypeEvent && out.Event == "user_status_changed" && event != out.Event {
			continue
		}
		if out.Type != proto.OutboundTypeEvent || out.Event != event {
			c.t.Fatalf("expected event %s, got %+v", event, out)
		}
		if into != nil {
			if err := json.Unmarshal(out.Data, into); err != nil {
				c.t.Fatalf("decode %s: %v", event, err)
			}
		}
		return
	}
}

// expectError skips presence broadcasts and returns the next error envelope.
func (c *wsClient) expectError() *proto.Error {
	c.t.Helper()

	for {
		out := c.read()
		if out.Type == proto.OutboundTypeEvent && out.Event == "user_status_changed" {
			continue
		}
		if out.Type != proto.OutboundTypeError || out.Error == nil {
			c.t.Fatalf("expected error envelope, got %+v", out)
		}
		return out.Error
	}
}

func (c *wsClient) join(room string) {
	c.t.Helper()

	c.send(proto.InboundTypeJoinRoom, proto.RoomData{RoomID: room})
	c.expect("room_state", nil)
}
