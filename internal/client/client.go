// apps/go-server/internal/client/client.go
//
// Go client for the relay wire protocol.
// Responsibilities:
//   - Dial a relay endpoint and perform the handshake.
//   - Correlate JSON-RPC responses with outstanding calls by id.
//   - Answer relay-originated receiveGuess requests through an Evaluator and
//     reply with evaluateGuessResult.
//   - Bootstrap helper for POST /createGame.

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/numer0n/apps/go-server/internal/relay"
)

var ErrClosed = errors.New("relay connection closed")

// Evaluator answers an opponent's guess. The returned value is sent as the
// evaluateGuessResult result; an error is sent as {"ok":false,"error":...}.
type Evaluator func(ctx context.Context, guesser string, guess int) (any, error)

type Client struct {
	ws     *websocket.Conn
	userID string
	eval   Evaluator
	log    zerolog.Logger

	wmu     sync.Mutex // serializes writes
	mu      sync.Mutex // guards pending and err
	pending map[string]chan relay.Envelope
	err     error

	done chan struct{}
	once sync.Once
}

type Option func(*Client)

// WithEvaluator installs the receiveGuess handler. Without one, incoming
// guesses are answered with an error result.
func WithEvaluator(fn Evaluator) Option { return func(c *Client) { c.eval = fn } }

func WithLogger(l zerolog.Logger) Option { return func(c *Client) { c.log = l } }

// Dial connects to url (ws://host:port or ws://host/ws/{gameId}) and sends
// the handshake for userID.
func Dial(ctx context.Context, url, userID string, opts ...Option) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{
		ws:      ws,
		userID:  userID,
		log:     log.Logger,
		pending: make(map[string]chan relay.Envelope),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With().Str("userId", userID).Logger()

	if err := c.write(relay.Envelope{Type: "handshake", UserID: userID}); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) UserID() string { return c.userID }

// Done is closed when the connection is gone; Err then reports why.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) Close() error {
	c.shutdown(ErrClosed)
	return nil
}

// EvaluateGuess asks the opponent to evaluate guess and returns their raw result.
func (c *Client) EvaluateGuess(ctx context.Context, guess int) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.call(ctx, relay.MethodEvaluateGuess, relay.EvaluateGuess{UserID: c.userID, Guess: guess}, &out)
	return out, err
}

// Opponent returns the other registered user id.
func (c *Client) Opponent(ctx context.Context) (string, error) {
	var out string
	err := c.call(ctx, relay.MethodGetOpponent, relay.GetOpponent{UserID: c.userID}, &out)
	return out, err
}

// ContractAddress returns the game's ledger address.
func (c *Client) ContractAddress(ctx context.Context) (string, error) {
	var out string
	err := c.call(ctx, relay.MethodGetContractAddress, relay.GetContractAddress{UserID: c.userID}, &out)
	return out, err
}

// WaitOpponent polls Opponent until one is registered.
func (c *Client) WaitOpponent(ctx context.Context, every time.Duration) (string, error) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		opp, err := c.Opponent(ctx)
		if err == nil {
			return opp, nil
		}
		if !errors.Is(err, relay.ErrNoOpponentFound) && !errors.Is(err, relay.ErrNotRegistered) {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-c.done:
			return "", c.Err()
		case <-t.C:
		}
	}
}

type request struct {
	JSONRPC string       `json:"jsonrpc"`
	Method  relay.Method `json:"method"`
	Params  any          `json:"params"`
	ID      any          `json:"id"`
}

func (c *Client) call(ctx context.Context, m relay.Method, params any, out any) error {
	id := uuid.NewString()
	ch := make(chan relay.Envelope, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}

	if err := c.write(request{JSONRPC: relay.Version, Method: m, Params: params, ID: id}); err != nil {
		forget()
		return err
	}

	select {
	case env := <-ch:
		if env.Error != nil {
			return env.Error
		}
		if out != nil && env.Result != nil {
			return json.Unmarshal(env.Result, out)
		}
		return nil
	case <-ctx.Done():
		forget()
		return ctx.Err()
	case <-c.done:
		return c.Err()
	}
}

func (c *Client) write(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteJSON(v)
}

func (c *Client) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.shutdown(fmt.Errorf("%w: %v", ErrClosed, err))
			return
		}

		var env relay.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			var n relay.Notice
			if json.Unmarshal(data, &n) == nil && n.Error != "" {
				c.shutdown(fmt.Errorf("handshake rejected: %s", n.Error))
				return
			}
			c.log.Warn().Err(err).Msg("undecodable frame")
			continue
		}

		switch {
		case env.Method == relay.MethodReceiveGuess:
			go c.answer(env)
		case env.Method != "":
			c.log.Warn().Str("method", string(env.Method)).Msg("unknown method from relay")
		default:
			c.deliver(env)
		}
	}
}

func (c *Client) deliver(env relay.Envelope) {
	var id string
	if len(env.ID) == 0 || json.Unmarshal(env.ID, &id) != nil {
		// id-less errors answer a handshake (e.g. game full)
		if env.Error != nil {
			c.log.Warn().Int("code", env.Error.Code).Msg(env.Error.Message)
		}
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if !ok {
		c.log.Debug().Str("id", id).Msg("no pending request")
		return
	}
	ch <- env
}

type failure struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// answer runs the evaluator for one receiveGuess and replies.
func (c *Client) answer(env relay.Envelope) {
	var rg relay.ReceiveGuess
	var result any
	if err := json.Unmarshal(env.Params, &rg); err != nil {
		result = failure{Error: "invalid receiveGuess params"}
	} else if c.eval == nil {
		result = failure{Error: "no evaluator"}
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		v, err := c.eval(ctx, rg.UserID, rg.Guess)
		cancel()
		if err != nil {
			c.log.Warn().Err(err).Int("guess", rg.Guess).Msg("evaluation failed")
			result = failure{Error: err.Error()}
		} else {
			result = v
		}
	}

	err := c.write(request{
		JSONRPC: relay.Version,
		Method:  relay.MethodEvaluateGuessResult,
		Params:  map[string]any{"userId": c.userID, "result": result},
		ID:      env.ID,
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("send evaluateGuessResult")
	}
}

func (c *Client) shutdown(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.pending = map[string]chan relay.Envelope{}
		c.mu.Unlock()
		_ = c.ws.Close()
		close(c.done)
	})
}

// CreateGame calls POST {baseURL}/createGame and returns the relay port.
// token may be empty when the server runs without JWT_SECRET.
func CreateGame(ctx context.Context, baseURL, token, gameID, contractAddress string) (int, error) {
	body, _ := json.Marshal(map[string]string{"gameId": gameID, "contractAddress": contractAddress})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/createGame", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	var out struct {
		GameID string `json:"gameId"`
		Port   int    `json:"port"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode createGame response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("createGame: status %d: %s", res.StatusCode, out.Error)
	}
	return out.Port, nil
}
