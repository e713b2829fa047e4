// internal/ledger/ledger.go
//
// The Ledger is the authoritative, privacy-preserving store of one game
// contract: each player's secret and guess history. Clients call it for
// their own moves; the relay never touches it.
//
// Memory (memory.go) is an in-process implementation used by tests, local
// play and the Go client. Any other backend only has to satisfy Ledger.

package ledger

import (
	"context"
	"errors"

	"github.com/robalobadob/numer0n/apps/go-server/internal/game"
)

var (
	ErrDuplicateSubmission = errors.New("duplicate submission")
	ErrNotPlayer           = errors.New("caller is not a player")
	ErrNotRevealed         = errors.New("secret is private until the game is finished")
)

// Ledger is the capability the core consumes. Every method acts on behalf of
// an explicit caller address.
type Ledger interface {
	// Address is the contract address of this game.
	Address() string

	Join(ctx context.Context, player, code string) error
	SubmitSecret(ctx context.Context, player string, value int) error
	SubmitGuess(ctx context.Context, player string, value int) error
	EvaluateGuess(ctx context.Context, evaluator, guesser string, value int) (game.Score, error)

	GetGame(ctx context.Context) (Snapshot, error)
	GetGuess(ctx context.Context, player string, round int) (game.Guess, error)
	GetGuesses(ctx context.Context, player string) ([]game.Guess, error)
	// GetSecretNum returns player's secret to the owner at any time and to
	// anyone else only once the game is finished.
	GetSecretNum(ctx context.Context, caller, player string) (int, error)
}

// Snapshot is the public game projection plus each player's commitment.
type Snapshot struct {
	game.View
	Commitments [2]string `json:"commitments"` // hex, empty until the secret is submitted
}
