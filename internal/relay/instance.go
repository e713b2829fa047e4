// internal/relay/instance.go
//
// Instance is the per-game message hub pairing two player connections.
//
// Concurrency model:
//   - One goroutine (run) owns conns, peers and pending. Every read pump,
//     timer and query posts a closure onto events and the loop executes them
//     one at a time, so none of that state is locked.
//   - Outbound frames go through each conn's buffered send channel; the loop
//     never blocks on a socket.

package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Capacity is the number of distinct users an instance accepts.
const Capacity = 2

var ErrClosed = errors.New("relay closed")

type event func()

// pendingRequest is an evaluateGuess waiting for the opponent's result.
type pendingRequest struct {
	from   string          // requesting user id
	origID json.RawMessage // id the requester used
	timer  *time.Timer
}

type Instance struct {
	gameID          string
	contractAddress string
	port            int

	log      zerolog.Logger
	upgrader websocket.Upgrader
	timeout  time.Duration
	buffer   int

	events    chan event
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	srv *http.Server
	ln  net.Listener

	// loop-owned
	conns   map[string]*conn
	peers   map[*conn]struct{}
	pending map[string]*pendingRequest
}

type instanceConfig struct {
	timeout     time.Duration
	buffer      int
	checkOrigin func(*http.Request) bool
	log         zerolog.Logger
}

func newInstance(gameID, contractAddress string, port int, cfg instanceConfig) *Instance {
	i := &Instance{
		gameID:          gameID,
		contractAddress: contractAddress,
		port:            port,
		log:             cfg.log.With().Str("gameId", gameID).Int("port", port).Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.checkOrigin,
		},
		timeout: cfg.timeout,
		buffer:  cfg.buffer,
		events:  make(chan event),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		conns:   make(map[string]*conn),
		peers:   make(map[*conn]struct{}),
		pending: make(map[string]*pendingRequest),
	}
	if i.buffer <= 0 {
		i.buffer = 16
	}
	go i.run()
	return i
}

func (i *Instance) GameID() string          { return i.gameID }
func (i *Instance) ContractAddress() string { return i.contractAddress }
func (i *Instance) Port() int               { return i.port }

// Addr is the address of the dedicated listener, nil when not serving.
func (i *Instance) Addr() net.Addr {
	if i.ln == nil {
		return nil
	}
	return i.ln.Addr()
}

// serve accepts websocket upgrades on l until Close.
func (i *Instance) serve(l net.Listener) {
	i.ln = l
	i.srv = &http.Server{Handler: i, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := i.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			i.log.Error().Err(err).Msg("relay listener stopped")
		}
	}()
	i.log.Info().Str("addr", l.Addr().String()).Msg("relay listening")
}

// ServeHTTP upgrades the request and pumps the socket until it closes.
func (i *Instance) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := i.upgrader.Upgrade(w, r, nil)
	if err != nil {
		i.log.Warn().Err(err).Msg("upgrade failed")
		return
	}
	c := newConn(ws, i.buffer, i.log)
	if !i.post(func() { i.peers[c] = struct{}{} }) {
		_ = ws.Close()
		return
	}
	c.log.Info().Msg("client connected")

	go c.writePump()
	c.readPump(func(data []byte) bool {
		return i.post(func() { i.handleFrame(c, data) })
	})
	i.post(func() { i.disconnect(c) })
}

// Close stops the loop, closes every socket and the dedicated listener.
func (i *Instance) Close() error {
	i.closeOnce.Do(func() { close(i.quit) })
	<-i.done
	if i.srv != nil {
		return i.srv.Close()
	}
	return nil
}

// Occupancy is the number of registered users.
func (i *Instance) Occupancy() int {
	n := 0
	i.exec(func() { n = len(i.conns) })
	return n
}

// Users returns the registered user ids, sorted.
func (i *Instance) Users() []string {
	var ids []string
	i.exec(func() {
		for id := range i.conns {
			ids = append(ids, id)
		}
	})
	sort.Strings(ids)
	return ids
}

func (i *Instance) pendingCount() int {
	n := 0
	i.exec(func() { n = len(i.pending) })
	return n
}

func (i *Instance) run() {
	defer close(i.done)
	for {
		select {
		case ev := <-i.events:
			ev()
		case <-i.quit:
			i.shutdown()
			return
		}
	}
}

// post hands ev to the loop; false once the instance is closed. events is
// unbuffered so a successful post means the loop has taken ev.
func (i *Instance) post(ev event) bool {
	select {
	case i.events <- ev:
		return true
	case <-i.done:
		return false
	}
}

// exec runs fn on the loop and waits for it.
func (i *Instance) exec(fn func()) bool {
	ran := make(chan struct{})
	if !i.post(func() { fn(); close(ran) }) {
		return false
	}
	<-ran
	return true
}

func (i *Instance) shutdown() {
	for _, p := range i.pending {
		if p.timer != nil {
			p.timer.Stop()
		}
	}
	for c := range i.peers {
		c.close()
	}
	i.pending = map[string]*pendingRequest{}
	i.conns = map[string]*conn{}
	i.peers = map[*conn]struct{}{}
	i.log.Info().Msg("relay closed")
}

func (i *Instance) disconnect(c *conn) {
	delete(i.peers, c)
	if c.userID != "" && i.conns[c.userID] == c {
		delete(i.conns, c.userID)
		c.log.Info().Str("userId", c.userID).Msg("client disconnected")
		return
	}
	c.log.Debug().Msg("unregistered client disconnected")
}

func (i *Instance) handleFrame(c *conn, data []byte) {
	if _, ok := i.peers[c]; !ok {
		return
	}
	c.log.Debug().Bytes("frame", data).Msg("received")

	f, id, rpcErr := decodeFrame(data)
	switch {
	case rpcErr != nil:
		if c.userID == "" && rpcErr != ErrParse && rpcErr != ErrInvalidRequest {
			rpcErr = ErrNotRegistered
		}
		c.log.Warn().Int("code", rpcErr.Code).Msg(rpcErr.Message)
		c.replyError(id, rpcErr)
	case f.handshake != nil:
		i.handshake(c, *f.handshake)
	case f.response != nil:
		c.log.Debug().Msg("ignoring response frame from client")
	case f.call != nil:
		i.dispatch(c, f.call)
	}
}

func (i *Instance) handshake(c *conn, userID string) {
	if !ValidUserID(userID) {
		c.log.Warn().Str("userId", userID).Msg("invalid handshake")
		c.reject("Invalid userId (must be a hex string) " + userID)
		i.disconnect(c)
		return
	}
	if c.userID == userID {
		c.log.Debug().Str("userId", userID).Msg("repeated handshake")
		return
	}
	if c.userID != "" {
		c.replyError(nil, ErrUserMismatch)
		return
	}

	if old, ok := i.conns[userID]; ok {
		old.userID = ""
		delete(i.peers, old)
		old.close()
		i.conns[userID] = c
		c.userID = userID
		c.log.Info().Str("userId", userID).Msg("client reconnected, previous connection replaced")
		return
	}
	if len(i.conns) >= Capacity {
		c.log.Warn().Str("userId", userID).Msg("game is full")
		c.replyError(nil, ErrGameFull)
		return
	}
	i.conns[userID] = c
	c.userID = userID
	c.log.Info().Str("userId", userID).Msg("registered")
}

func (i *Instance) dispatch(c *conn, call *Call) {
	if c.userID == "" {
		c.replyError(call.ID, ErrNotRegistered)
		return
	}
	if call.Request.Caller() != c.userID {
		c.log.Warn().Str("userId", c.userID).Str("claimed", call.Request.Caller()).Msg("user id mismatch")
		c.replyError(call.ID, ErrUserMismatch)
		return
	}

	switch req := call.Request.(type) {
	case EvaluateGuess:
		i.evaluateGuess(c, call.ID, req)
	case EvaluateGuessResult:
		i.evaluateGuessResult(c, call.ID, req)
	case GetOpponent:
		if opp := i.opponent(c.userID); opp != nil {
			c.reply(call.ID, marshalResult(opp.userID))
			return
		}
		c.replyError(call.ID, ErrNoOpponentFound)
	case GetContractAddress:
		if i.conns[req.UserID] == nil {
			c.replyError(call.ID, ErrUserNotRegistered)
			return
		}
		c.reply(call.ID, marshalResult(i.contractAddress))
	default:
		c.replyError(call.ID, ErrMethodNotFound)
	}
}

func (i *Instance) evaluateGuess(c *conn, id json.RawMessage, req EvaluateGuess) {
	opp := i.opponent(c.userID)
	if opp == nil {
		c.log.Warn().Str("userId", c.userID).Msg("no opponent connected")
		c.replyError(id, ErrNoOpponentConnected)
		return
	}

	fwd := newRequestID()
	if _, taken := i.pending[fwd]; taken {
		c.replyError(id, ErrInternal)
		return
	}
	p := &pendingRequest{from: c.userID, origID: id}
	if i.timeout > 0 {
		p.timer = time.AfterFunc(i.timeout, func() {
			i.post(func() { i.expire(fwd) })
		})
	}
	i.pending[fwd] = p

	c.log.Info().Str("userId", c.userID).Int("guess", req.Guess).Str("requestId", fwd).Msg("forwarding guess")
	opp.write(outboundCall{
		JSONRPC: Version,
		Method:  MethodReceiveGuess,
		Params:  ReceiveGuess{Guess: req.Guess, UserID: c.userID},
		ID:      fwd,
	})
}

func (i *Instance) evaluateGuessResult(c *conn, id json.RawMessage, req EvaluateGuessResult) {
	key, _ := idString(id)
	p, ok := i.pending[key]
	if !ok {
		c.log.Warn().RawJSON("id", nullable(id)).Msg("no pending evaluation")
		return
	}
	if p.from == req.UserID {
		c.log.Warn().Str("userId", req.UserID).Msg("attempt to evaluate own guess")
		c.replyError(id, ErrSelfEvaluation)
		return
	}

	if p.timer != nil {
		p.timer.Stop()
	}
	delete(i.pending, key)

	requester := i.conns[p.from]
	if requester == nil {
		c.log.Warn().Str("userId", p.from).Msg("requester gone, dropping result")
		return
	}
	requester.reply(p.origID, req.Result)
}

func (i *Instance) expire(key string) {
	p, ok := i.pending[key]
	if !ok {
		return
	}
	delete(i.pending, key)
	i.log.Warn().Str("requestId", key).Str("userId", p.from).Msg("evaluation timed out")
	if requester := i.conns[p.from]; requester != nil {
		requester.replyError(p.origID, ErrEvaluationTimeout)
	}
}

func (i *Instance) opponent(userID string) *conn {
	for id, c := range i.conns {
		if id != userID {
			return c
		}
	}
	return nil
}

// newRequestID is a timestamp plus a random suffix.
func newRequestID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), suffix)
}

func nullable(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage(`null`)
	}
	return id
}
