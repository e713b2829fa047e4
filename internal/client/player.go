package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/robalobadob/numer0n/apps/go-server/internal/game"
	"github.com/robalobadob/numer0n/apps/go-server/internal/ledger"
)

// Evaluation is the result payload a Player sends back for a guess.
type Evaluation struct {
	OK    bool   `json:"ok"`
	Eat   int    `json:"eat"`
	Bite  int    `json:"bite"`
	Error string `json:"error,omitempty"`
}

// ErrRemoteEvaluation is returned when the opponent could not evaluate a guess.
var ErrRemoteEvaluation = errors.New("opponent failed to evaluate guess")

// LedgerEvaluator evaluates opponents' guesses on l as self.
func LedgerEvaluator(l ledger.Ledger, self string) Evaluator {
	return func(ctx context.Context, guesser string, guess int) (any, error) {
		sc, err := l.EvaluateGuess(ctx, self, guesser, guess)
		if err != nil {
			return nil, err
		}
		return Evaluation{OK: true, Eat: sc.Eat, Bite: sc.Bite}, nil
	}
}

// Player plays one side of a game: ledger writes as Address, opponent
// evaluation through the relay.
type Player struct {
	Address string
	Ledger  ledger.Ledger
	Relay   *Client
}

// Join dials the relay as address and answers incoming guesses from l.
func Join(ctx context.Context, url string, l ledger.Ledger, address string, opts ...Option) (*Player, error) {
	opts = append(opts, WithEvaluator(LedgerEvaluator(l, address)))
	c, err := Dial(ctx, url, address, opts...)
	if err != nil {
		return nil, err
	}
	return &Player{Address: address, Ledger: l, Relay: c}, nil
}

// SetSecret submits the player's secret number.
func (p *Player) SetSecret(ctx context.Context, v int) error {
	return p.Ledger.SubmitSecret(ctx, p.Address, v)
}

// Guess records v on the ledger and has the opponent evaluate it.
func (p *Player) Guess(ctx context.Context, v int) (game.Score, error) {
	if err := p.Ledger.SubmitGuess(ctx, p.Address, v); err != nil {
		return game.Score{}, err
	}
	raw, err := p.Relay.EvaluateGuess(ctx, v)
	if err != nil {
		return game.Score{}, err
	}
	var ev Evaluation
	if err := json.Unmarshal(raw, &ev); err != nil {
		return game.Score{}, fmt.Errorf("decode evaluation: %w", err)
	}
	if !ev.OK {
		return game.Score{}, fmt.Errorf("%w: %s", ErrRemoteEvaluation, ev.Error)
	}
	return game.Score{Eat: ev.Eat, Bite: ev.Bite}, nil
}

func (p *Player) Close() error { return p.Relay.Close() }
