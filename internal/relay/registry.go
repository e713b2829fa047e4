// internal/relay/registry.go
//
// Registry owns every live Instance, keyed by game id.
//
// Responsibilities:
//   - Insert-if-absent creation guarded by a mutex held for the whole create.
//   - Port allocation from the Store counter; ports that fail to bind are
//     skipped, never reused.
//   - Persisting a Record per created game and closing everything on shutdown.

package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/numer0n/apps/go-server/internal/store"
)

var (
	ErrDuplicateGame = errors.New("game already exists")
	ErrNotFound      = errors.New("game not found")
)

// maxBindAttempts bounds how many consecutive ports Create will try.
const maxBindAttempts = 16

// ListenFunc opens the listener for an allocated port.
type ListenFunc func(port int) (net.Listener, error)

type Registry struct {
	mu     sync.Mutex
	games  map[string]*Instance
	closed bool

	store  store.Store
	listen ListenFunc
	host   string
	cfg    instanceConfig
}

type Option func(*Registry)

// WithHost sets the interface dedicated relay ports bind to ("" = all).
func WithHost(host string) Option { return func(r *Registry) { r.host = host } }

// WithListen replaces the listener factory.
func WithListen(fn ListenFunc) Option { return func(r *Registry) { r.listen = fn } }

// WithPendingTimeout bounds how long an evaluateGuess waits (0 = forever).
func WithPendingTimeout(d time.Duration) Option {
	return func(r *Registry) { r.cfg.timeout = d }
}

// WithSendBuffer sets the per-connection outbound queue length.
func WithSendBuffer(n int) Option { return func(r *Registry) { r.cfg.buffer = n } }

// WithCheckOrigin sets the websocket origin policy (default: allow all).
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(r *Registry) { r.cfg.checkOrigin = fn }
}

func WithLogger(l zerolog.Logger) Option { return func(r *Registry) { r.cfg.log = l } }

func NewRegistry(st store.Store, opts ...Option) *Registry {
	r := &Registry{
		games: make(map[string]*Instance),
		store: st,
		cfg: instanceConfig{
			timeout:     60 * time.Second,
			buffer:      16,
			checkOrigin: func(*http.Request) bool { return true },
			log:         log.Logger,
		},
	}
	r.listen = func(port int) (net.Listener, error) {
		return net.Listen("tcp", net.JoinHostPort(r.host, strconv.Itoa(port)))
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

/**
 * Create starts a relay for gameID on the next free port.
 *
 * Fails with ErrDuplicateGame when gameID already has a live instance.
 */
func (r *Registry) Create(ctx context.Context, gameID, contractAddress string) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if _, ok := r.games[gameID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateGame, gameID)
	}

	var (
		port int
		ln   net.Listener
		err  error
	)
	for attempt := 0; attempt < maxBindAttempts; attempt++ {
		port, err = r.store.NextPort(ctx)
		if err != nil {
			return nil, fmt.Errorf("allocate port: %w", err)
		}
		ln, err = r.listen(port)
		if err == nil {
			break
		}
		r.cfg.log.Warn().Err(err).Int("port", port).Msg("port unavailable, skipping")
	}
	if err != nil {
		return nil, fmt.Errorf("bind relay for %s: %w", gameID, err)
	}

	inst := newInstance(gameID, contractAddress, port, r.cfg)
	inst.serve(ln)

	rec := store.Record{GameID: gameID, ContractAddress: contractAddress, Port: port, CreatedAt: time.Now()}
	if err := r.store.Save(ctx, rec); err != nil {
		_ = inst.Close()
		return nil, fmt.Errorf("save game %s: %w", gameID, err)
	}

	r.games[gameID] = inst
	r.cfg.log.Info().Str("gameId", gameID).Int("port", port).Msg("game created")
	return inst, nil
}

// Lookup returns the live instance for gameID.
func (r *Registry) Lookup(gameID string) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.games[gameID]; ok {
		return inst, nil
	}
	return nil, ErrNotFound
}

// Record returns the persisted bootstrap record for gameID.
func (r *Registry) Record(ctx context.Context, gameID string) (*store.Record, error) {
	rec, err := r.store.Get(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Close shuts down every instance; later Creates fail with ErrClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	games := r.games
	r.games = map[string]*Instance{}
	r.closed = true
	r.mu.Unlock()

	var errs []error
	for _, inst := range games {
		if err := inst.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
