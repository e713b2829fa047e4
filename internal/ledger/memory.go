// internal/ledger/memory.go
//
// In-memory implementation of Ledger, one instance per deployed game.
//
// Characteristics:
//   - Wraps a game.Game; all access serialized by an RWMutex.
//   - Write-once secrets: a second submission is ErrDuplicateSubmission.
//   - Each secret is committed as SHA3-256(salt || zero-padded digits) with a
//     random 16-byte salt; commitments are public, salts are revealed only
//     after the game is finished so the opponent can check the reveal.
//   - State is lost when the process restarts.

package ledger

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/robalobadob/numer0n/apps/go-server/internal/game"
)

const saltSize = 16

// Memory is a single game contract held in process memory.
type Memory struct {
	mu      sync.RWMutex
	address string
	game    *game.Game
	salts   [2][]byte
	commits [2][]byte
}

// Option configures Deploy.
type Option func(*Memory)

// WithAddress fixes the contract address instead of generating one.
func WithAddress(addr string) Option {
	return func(m *Memory) { m.address = addr }
}

// Deploy creates a game contract owned by player1 and joinable with code.
// isFirst selects player 1 as the first mover of every round.
func Deploy(player1, code string, isFirst bool, opts ...Option) *Memory {
	m := &Memory{}
	for _, o := range opts {
		o(m)
	}
	if m.address == "" {
		m.address = NewAddress()
	}
	m.game = game.New(m.address, player1, code, isFirst)
	return m
}

// DeploySalted is Deploy with the first mover derived from code and salt.
func DeploySalted(player1, code, salt string, opts ...Option) *Memory {
	return Deploy(player1, code, game.FirstMover(code, salt), opts...)
}

// NewAddress returns a random 0x-prefixed 32-byte hex address.
func NewAddress() string {
	var b [32]byte
	_, _ = rand.Read(b[:])
	return "0x" + hex.EncodeToString(b[:])
}

func (m *Memory) Address() string { return m.address }

func (m *Memory) Join(ctx context.Context, player, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return wrap(m.game.Join(player, code))
}

func (m *Memory) SubmitSecret(ctx context.Context, player string, value int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.game.SubmitSecret(player, value); err != nil {
		return wrap(err)
	}
	id, _ := m.game.PlayerOf(player)
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("salt: %w", err)
	}
	m.salts[id-1] = salt
	m.commits[id-1] = Commit(salt, value)
	return nil
}

func (m *Memory) SubmitGuess(ctx context.Context, player string, value int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return wrap(m.game.SubmitGuess(player, value))
}

func (m *Memory) EvaluateGuess(ctx context.Context, evaluator, guesser string, value int) (game.Score, error) {
	if err := ctx.Err(); err != nil {
		return game.Score{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, err := m.game.EvaluateGuess(evaluator, guesser, value)
	return sc, wrap(err)
}

func (m *Memory) GetGame(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Snapshot{View: m.game.View()}
	for i, c := range m.commits {
		if c != nil {
			s.Commitments[i] = hex.EncodeToString(c)
		}
	}
	return s, nil
}

func (m *Memory) GetGuess(ctx context.Context, player string, round int) (game.Guess, error) {
	if err := ctx.Err(); err != nil {
		return game.Guess{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, err := m.game.Guess(player, round)
	return g, wrap(err)
}

func (m *Memory) GetGuesses(ctx context.Context, player string) ([]game.Guess, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	gs, err := m.game.Guesses(player)
	return gs, wrap(err)
}

func (m *Memory) GetSecretNum(ctx context.Context, caller, player string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.secret(caller, player)
}

// Reveal returns player's secret and commitment salt once the game is finished.
func (m *Memory) Reveal(ctx context.Context, caller, player string) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, err := m.secret(caller, player)
	if err != nil {
		return 0, nil, err
	}
	id, _ := m.game.PlayerOf(player)
	salt := make([]byte, len(m.salts[id-1]))
	copy(salt, m.salts[id-1])
	return v, salt, nil
}

// secret applies the privacy rule. Callers hold m.mu.
func (m *Memory) secret(caller, player string) (int, error) {
	if _, err := m.game.PlayerOf(player); err != nil {
		return 0, wrap(err)
	}
	if caller != player && m.game.Status != game.StatusFinished {
		return 0, ErrNotRevealed
	}
	v, ok := m.game.SecretNum(player)
	if !ok {
		return 0, fmt.Errorf("%w: no secret for %s", ErrNotRevealed, player)
	}
	return v, nil
}

// Commit hashes a secret with its salt.
func Commit(salt []byte, value int) []byte {
	h := sha3.New256()
	h.Write(salt)
	h.Write([]byte(game.Pad(value)))
	return h.Sum(nil)
}

// VerifyReveal checks a revealed value and salt against a hex commitment.
func VerifyReveal(commitment string, salt []byte, value int) bool {
	want, err := hex.DecodeString(commitment)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(want, Commit(salt, value)) == 1
}

// wrap maps engine errors onto the ledger's error surface.
func wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, game.ErrAlreadySet):
		return fmt.Errorf("%w: %w", ErrDuplicateSubmission, err)
	case errors.Is(err, game.ErrNotPlayer):
		return fmt.Errorf("%w: %w", ErrNotPlayer, err)
	}
	return err
}
