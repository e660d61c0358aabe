// Package server implements the Handler Router: a static message-type
// dispatch table driven by a single event loop, so that handlers mutate
// shared state atomically with respect to each other, grounded on
// internal/bus's single-loop dispatch pattern.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agentchat/server/internal/accesslist"
	"github.com/agentchat/server/internal/arbitration"
	"github.com/agentchat/server/internal/captcha"
	"github.com/agentchat/server/internal/channel"
	"github.com/agentchat/server/internal/config"
	"github.com/agentchat/server/internal/hooks"
	"github.com/agentchat/server/internal/identity"
	"github.com/agentchat/server/internal/inbox"
	"github.com/agentchat/server/internal/proposal"
	"github.com/agentchat/server/internal/reputation"
	"github.com/agentchat/server/internal/session"
	"github.com/agentchat/server/internal/skills"
	"github.com/agentchat/server/internal/timer"
	"github.com/agentchat/server/internal/wire"
)

// pendingVerify is one outstanding VERIFY_REQUEST, tracked centrally
// (not on internal/session.Session) since it spans two agents.
type pendingVerify struct {
	RequestID          string
	From               string // requester's bare agent id
	Target             string // bare agent id being verified
	Nonce              string
	Deadline           time.Time
	RequesterSessionID string // for verify-expire timer cleanup on disconnect
}

// event is one unit of work accepted by the single event loop: either a
// raw inbound frame from a connection, a disconnect notice, or an
// arbitrary closure (used by timers and hooks to re-enter the loop
// instead of mutating state from their own goroutine).
type event struct {
	conn *Conn
	data []byte
	fn   func(*Server)
}

// Server owns every central store and runs the single event loop that
// all connection handlers execute on.
type Server struct {
	cfg *config.Config
	log *slog.Logger

	upgrader websocket.Upgrader

	sessions    *session.Manager
	channels    *channel.Store
	proposals   *proposal.Store
	reputation  reputation.Store
	arbitration *arbitration.Store
	allowlist   *accesslist.List
	banlist     *accesslist.List
	captcha     *captcha.Store
	handshake   *identity.Handshake
	firstSeen   *identity.FirstSeenStore
	skills      *skills.Registry
	timers      *timer.Store
	hooks       *hooks.Dispatcher
	inbox       *inbox.Inbox

	events chan event

	motdMu sync.RWMutex
	motd   string

	openWindowMu    sync.RWMutex
	openWindowUntil time.Time

	verifyReqs map[string]*pendingVerify
}

// Stores bundles every central store the server wires together, built
// by cmd/agentchatd's main before calling New.
type Stores struct {
	Sessions    *session.Manager
	Channels    *channel.Store
	Proposals   *proposal.Store
	Reputation  reputation.Store
	Arbitration *arbitration.Store
	Allowlist   *accesslist.List
	Banlist     *accesslist.List
	Captcha     *captcha.Store
	Handshake   *identity.Handshake
	FirstSeen   *identity.FirstSeenStore
	Skills      *skills.Registry
	Timers      *timer.Store
	Hooks       *hooks.Dispatcher
	Inbox       *inbox.Inbox
}

// New builds a Server around an already-wired set of stores.
func New(cfg *config.Config, st Stores, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg: cfg,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions:    st.Sessions,
		channels:    st.Channels,
		proposals:   st.Proposals,
		reputation:  st.Reputation,
		arbitration: st.Arbitration,
		allowlist:   st.Allowlist,
		banlist:     st.Banlist,
		captcha:     st.Captcha,
		handshake:   st.Handshake,
		firstSeen:   st.FirstSeen,
		skills:      st.Skills,
		timers:      st.Timers,
		hooks:       st.Hooks,
		inbox:       st.Inbox,
		events:      make(chan event, 1024),
		verifyReqs:  make(map[string]*pendingVerify),
	}
}

// ServeWS upgrades an HTTP request to a websocket connection and starts
// its read/write pumps. The returned session id is only useful for logs;
// the connection lifecycle is entirely event-driven from here on.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	c := newConn(s, ws, uuid.NewString())
	s.sessions.Open(c.id, c)
	go c.readPump()
	go c.writePump()
}

// Run starts the single event loop and the background sweepers; it
// blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	go s.sweepLoop(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.handleEvent(ev)
		}
	}
}

// post enqueues a closure to run on the event loop goroutine. Timer
// callbacks and hook-adjacent re-entries use this so state mutation
// never happens off the single loop.
func (s *Server) post(fn func(*Server)) {
	s.events <- event{fn: fn}
}

func (s *Server) handleEvent(ev event) {
	if ev.fn != nil {
		ev.fn(s)
		return
	}
	if ev.conn == nil {
		return
	}
	if ev.data == nil {
		s.handleDisconnect(ev.conn)
		return
	}
	s.dispatch(ev.conn, ev.data)
}

func (s *Server) dispatch(c *Conn, frame []byte) {
	msgType, err := wire.PeekType(frame)
	if err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed frame")
		return
	}
	h, ok := router[msgType]
	if !ok {
		c.sendError(wire.ErrInvalidMsg, "unknown message type: "+string(msgType))
		return
	}
	h(s, c, frame)
}

func (s *Server) handleDisconnect(c *Conn) {
	sess, ok := s.sessions.Get(c.id)
	if !ok {
		return
	}
	if sess.AgentID != "" {
		s.channels.RemoveAgent(sess.AgentID)
		s.skills.Remove(sess.AgentID)
		s.broadcastAgentLeft(sess)
	}
	s.handshake.Resolve(c.id)
	s.captcha.Clear(c.id)
	s.timers.Cancel("verify-expire:" + c.id)
	s.sessions.Close(c.id)
}

// sweepLoop periodically re-enters the event loop to run the
// time-driven sweeps: proposal expiry and arbitration deadlines.
func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.post(func(s *Server) { s.runSweeps(now) })
		}
	}
}

func (s *Server) runSweeps(now time.Time) {
	for _, id := range s.proposals.SweepExpired(now) {
		p, ok := s.proposals.Get(id)
		if !ok {
			continue
		}
		s.notifyProposalParties(p, wire.WithType(wire.TypeProposalExpired, map[string]any{"proposal_id": p.ID}))
	}
}

// PoolProvider builds an arbitration.PoolProvider closed over a session
// manager and reputation store. cmd/agentchatd calls this to build the
// arbitration.Store before the Server exists, since the Server in turn
// needs that store at construction time.
func PoolProvider(sessions *session.Manager, rep reputation.Store) arbitration.PoolProvider {
	return func(ctx context.Context) ([]arbitration.Candidate, error) {
		var out []arbitration.Candidate
		for _, sess := range sessions.All() {
			if !sess.Authenticated() || sess.Ephemeral || sess.PubKey == nil {
				continue
			}
			if sess.Presence != wire.PresenceOnline {
				continue
			}
			rating, err := rep.GetRating(ctx, sess.AgentID)
			if err != nil {
				continue
			}
			out = append(out, arbitration.Candidate{AgentID: sess.AgentID, Rating: rating.Rating, Transactions: rating.Transactions})
		}
		return out, nil
	}
}
