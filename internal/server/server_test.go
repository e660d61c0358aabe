package server

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentchat/server/internal/accesslist"
	"github.com/agentchat/server/internal/arbitration"
	"github.com/agentchat/server/internal/captcha"
	"github.com/agentchat/server/internal/channel"
	"github.com/agentchat/server/internal/config"
	"github.com/agentchat/server/internal/hooks"
	"github.com/agentchat/server/internal/identity"
	"github.com/agentchat/server/internal/proposal"
	"github.com/agentchat/server/internal/reputation"
	"github.com/agentchat/server/internal/session"
	"github.com/agentchat/server/internal/skills"
	"github.com/agentchat/server/internal/timer"
	"github.com/agentchat/server/internal/wire"
)

// testServer boots a Server with in-memory stores and an httptest
// websocket listener, mirroring cmd/agentchatd's wiring without the
// filesystem-backed stores (allowlist/banlist/firstseen/inbox).
func testServer(t *testing.T) (*httptest.Server, func()) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.LurkWindow = 0 // persistent identities in these tests must not lurk

	sessions := session.NewManager(cfg.RateLimit.MsgInterval, cfg.RateLimit.NickInterval)
	rep := reputation.NewMemoryStore(reputation.MinRating)

	allowlist, err := accesslist.Load("")
	if err != nil {
		t.Fatalf("allowlist: %v", err)
	}
	banlist, err := accesslist.Load("")
	if err != nil {
		t.Fatalf("banlist: %v", err)
	}
	firstSeen, err := identity.LoadFirstSeenStore("")
	if err != nil {
		t.Fatalf("firstseen: %v", err)
	}

	st := Stores{
		Sessions:    sessions,
		Channels:    channel.NewStore(cfg.Server.ReplayRingSize),
		Proposals:   proposal.NewStore(rep),
		Reputation:  rep,
		Arbitration: arbitration.NewStore(rep, PoolProvider(sessions, rep)),
		Allowlist:   allowlist,
		Banlist:     banlist,
		Captcha:     captcha.NewStore(cfg.Captcha.Timeout, cfg.Captcha.MaxAttempts),
		Handshake:   identity.NewHandshake(0),
		FirstSeen:   firstSeen,
		Skills:      skills.NewRegistry(),
		Timers:      timer.NewStore(),
		Hooks:       hooks.NewDispatcher(),
		Inbox:       nil,
	}
	srv := New(cfg, st, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.ServeWS)
	ts := httptest.NewServer(mux)

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Run(ctx)

	return ts, func() { cancel(); ts.Close() }
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// recvType reads frames until one with the given "type" field arrives,
// failing the test if none turns up before the deadline.
func recvType(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		if frame["type"] == want {
			return frame
		}
	}
}

func identifyEphemeral(t *testing.T, conn *websocket.Conn, name string) map[string]any {
	t.Helper()
	send(t, conn, map[string]any{"type": "IDENTIFY", "name": name})
	return recvType(t, conn, "WELCOME")
}

// identifyPersistent runs the full pubkey IDENTIFY -> CHALLENGE ->
// VERIFY_IDENTITY handshake with a freshly generated Ed25519 keypair,
// returning the WELCOME frame. Persistent identities are not subject to
// the permanent ephemeral lurk restriction, so this is how tests drive
// anything that requires a non-lurking agent (MSG, PROPOSAL, ...).
func identifyPersistent(t *testing.T, conn *websocket.Conn, name string) map[string]any {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pubkeyB64 := base64.StdEncoding.EncodeToString(pub)

	send(t, conn, map[string]any{"type": "IDENTIFY", "name": name, "pubkey": pubkeyB64})
	challenge := recvType(t, conn, "CHALLENGE")
	challengeID, _ := challenge["challenge_id"].(string)
	nonce, _ := challenge["nonce"].(string)

	timestamp := time.Now().UnixMilli()
	payload := wire.AuthPayload(nonce, challengeID, timestamp)
	sig := ed25519.Sign(priv, []byte(payload))
	sigB64 := base64.StdEncoding.EncodeToString(sig)

	send(t, conn, map[string]any{
		"type": "VERIFY_IDENTITY", "challenge_id": challengeID, "signature": sigB64, "timestamp": timestamp,
	})
	return recvType(t, conn, "WELCOME")
}

func TestIdentifyEphemeralReceivesWelcome(t *testing.T) {
	ts, stop := testServer(t)
	defer stop()

	conn := dial(t, ts)
	defer conn.Close()

	welcome := identifyEphemeral(t, conn, "alice")
	if welcome["name"] != "alice" {
		t.Fatalf("expected name alice, got %v", welcome["name"])
	}
	if welcome["lurk"] != true {
		t.Fatalf("ephemeral identities must start lurking, got %v", welcome["lurk"])
	}
	if verified, _ := welcome["verified"].(bool); verified {
		t.Fatalf("ephemeral identity should not be verified")
	}
}

func TestDoubleIdentifyRejected(t *testing.T) {
	ts, stop := testServer(t)
	defer stop()

	conn := dial(t, ts)
	defer conn.Close()

	identifyEphemeral(t, conn, "alice")
	send(t, conn, map[string]any{"type": "IDENTIFY", "name": "alice-again"})
	errFrame := recvType(t, conn, "ERROR")
	if errFrame["code"] != string(wire.ErrInvalidMsg) {
		t.Fatalf("expected INVALID_MSG error code, got %v", errFrame["code"])
	}
}

// TestChannelJoinAndBroadcast exercises JOIN, the synthetic welcome
// message, and MSG fan-out to a second member, end to end.
func TestChannelJoinAndBroadcast(t *testing.T) {
	ts, stop := testServer(t)
	defer stop()

	a := dial(t, ts)
	defer a.Close()
	b := dial(t, ts)
	defer b.Close()

	welcomeA := identifyPersistent(t, a, "alice")
	if welcomeA["lurk"] != false {
		t.Fatalf("persistent identity past the lurk window should not be lurking, got %v", welcomeA["lurk"])
	}
	identifyPersistent(t, b, "bob")

	send(t, a, map[string]any{"type": "JOIN", "channel": "#lobby"})
	recvType(t, a, "JOINED")
	recvType(t, a, "MSG") // synthetic "welcome to #lobby" from the server

	send(t, b, map[string]any{"type": "JOIN", "channel": "#lobby"})
	recvType(t, b, "JOINED")
	recvType(t, a, "AGENT_JOINED")
	recvType(t, b, "MSG") // synthetic welcome for bob's own join

	send(t, b, map[string]any{"type": "MSG", "to": "#lobby", "content": "hello lobby"})

	gotA := recvType(t, a, "MSG")
	if gotA["content"] != "hello lobby" {
		t.Fatalf("expected relayed content, got %v", gotA["content"])
	}
	gotB := recvType(t, b, "MSG")
	if gotB["content"] != "hello lobby" {
		t.Fatalf("sender should also receive its own echo, got %v", gotB["content"])
	}
}

// TestLurkingAgentCannotMessage checks that a freshly-ephemeral (lurking)
// agent is rejected from sending MSG until it stops lurking.
func TestLurkingAgentCannotMessage(t *testing.T) {
	ts, stop := testServer(t)
	defer stop()

	conn := dial(t, ts)
	defer conn.Close()
	identifyEphemeral(t, conn, "alice")

	send(t, conn, map[string]any{"type": "MSG", "to": "@nobody", "content": "hi"})
	errFrame := recvType(t, conn, "ERROR")
	if errFrame["code"] != string(wire.ErrLurkMode) {
		t.Fatalf("expected LURK_MODE error, got %v", errFrame["code"])
	}
}
