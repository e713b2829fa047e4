// internal/game/engine.go
//
// GameStateMachine for a single Numer0n game.
// Responsibilities:
//   - Seat the second player behind the game's shared join code.
//   - Record each player's write-once secret; start the game once both exist.
//   - Enforce the half-turn order of every round:
//       first mover guesses → opponent evaluates → second mover guesses → first mover evaluates.
//   - Resolve rounds: a single eat == 3 wins, two are a draw, none opens the next round.
//
// Notes:
//   - Status and GuessStatus only move forward.
//   - Scoring goes through ScoreGuess with the evaluator's own secret.
//   - Reads (View, Guess, Guesses, SecretNum) never mutate state.
//   - A Game is not safe for concurrent use; owners serialize access.
package game

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrInvalidCode    = errors.New("invalid game code")
	ErrAlreadyJoined  = errors.New("players have already been set")
	ErrPlayersNotSet  = errors.New("players haven't been set")
	ErrNotPlayer      = errors.New("not player")
	ErrAlreadySet     = errors.New("secret number has already been set")
	ErrNotStarted     = errors.New("game hasn't been started yet")
	ErrFinished       = errors.New("game finished")
	ErrInvalidTurn    = errors.New("invalid turn")
	ErrAlreadyGuessed = errors.New("guess has already been made")
	ErrGuessMismatch  = errors.New("guess does not match the recorded guess")
	ErrNoGuess        = errors.New("no guess record for round")
)

// TurnError reports an out-of-order move by Player.
type TurnError struct {
	Player PlayerID
}

func (e *TurnError) Error() string { return fmt.Sprintf("invalid turn for player %d", e.Player) }

func (e *TurnError) Unwrap() error { return ErrInvalidTurn }

// New constructs a game deployed by player1, joinable with code.
// If id is empty a random one is generated.
func New(id, player1, code string, isFirst bool) *Game {
	if id == "" {
		id = randomID()
	}
	return &Game{
		ID:      id,
		Status:  StatusNull,
		IsFirst: isFirst,
		Players: [2]Player{
			{ID: Player1, Address: player1},
			{ID: Player2},
		},
		code: code,
	}
}

// FirstMover returns the player who guesses first in every round.
func (g *Game) FirstMover() PlayerID {
	if g.IsFirst {
		return Player1
	}
	return Player2
}

// Join seats player 2. NULL → PLAYERS_SET.
func (g *Game) Join(address, code string) error {
	if g.Status != StatusNull {
		return ErrAlreadyJoined
	}
	if code != g.code {
		return ErrInvalidCode
	}
	if address == "" || address == g.Players[0].Address {
		return ErrAlreadyJoined
	}
	g.Players[1].Address = address
	g.Status = StatusPlayersSet
	return nil
}

// SubmitSecret records the caller's secret. PLAYERS_SET → STARTED once both are set.
func (g *Game) SubmitSecret(address string, v int) error {
	p, err := g.player(address)
	if err != nil {
		return err
	}
	if g.Status == StatusNull {
		return ErrPlayersNotSet
	}
	if p.SecretNumber != nil {
		return ErrAlreadySet
	}
	if err := ValidateNumber(v); err != nil {
		return err
	}
	secret := v
	p.SecretNumber = &secret

	if g.Players[0].SecretNumber != nil && g.Players[1].SecretNumber != nil {
		g.Status = StatusStarted
		g.Round = 1
		g.Turn = g.FirstMover()
		g.openRound()
	}
	return nil
}

// SubmitGuess records the caller's guess for the current round. NULL → GUESSED.
func (g *Game) SubmitGuess(address string, v int) error {
	p, err := g.player(address)
	if err != nil {
		return err
	}
	if err := g.requireStarted(); err != nil {
		return err
	}
	if p.ID != g.Turn {
		return &TurnError{Player: p.ID}
	}
	cur := p.current(g.Round)
	if cur.Status != GuessNull {
		return ErrAlreadyGuessed
	}
	if err := ValidateNumber(v); err != nil {
		return err
	}
	cur.GuessNumber = v
	cur.Status = GuessGuessed
	return nil
}

// EvaluateGuess scores guesser's pending guess against evaluator's secret.
// GUESSED → EVALUATED, then either hands the turn to the second mover or
// resolves the round.
func (g *Game) EvaluateGuess(evaluator, guesser string, v int) (Score, error) {
	ev, err := g.player(evaluator)
	if err != nil {
		return Score{}, err
	}
	gu, err := g.player(guesser)
	if err != nil {
		return Score{}, err
	}
	if err := g.requireStarted(); err != nil {
		return Score{}, err
	}
	if ev.ID == gu.ID || gu.ID != g.Turn {
		return Score{}, &TurnError{Player: ev.ID}
	}
	cur := gu.current(g.Round)
	if cur.Status != GuessGuessed {
		return Score{}, &TurnError{Player: ev.ID}
	}
	if cur.GuessNumber != v {
		return Score{}, fmt.Errorf("%w: got %s, recorded %s", ErrGuessMismatch, Pad(v), Pad(cur.GuessNumber))
	}

	score := ScoreGuess(*ev.SecretNumber, v)
	cur.Eat, cur.Bite = score.Eat, score.Bite
	cur.Status = GuessEvaluated

	if gu.ID == g.FirstMover() {
		g.Turn = gu.ID.Opponent()
	} else {
		g.resolveRound()
	}
	return score, nil
}

// resolveRound runs after both guesses of the current round are evaluated.
func (g *Game) resolveRound() {
	hit1 := g.Players[0].current(g.Round).Eat == Digits
	hit2 := g.Players[1].current(g.Round).Eat == Digits

	switch {
	case hit1 && hit2:
		g.finish(Draw)
	case hit1:
		g.finish(Player1)
	case hit2:
		g.finish(Player2)
	default:
		g.Round++
		g.Turn = g.FirstMover()
		g.openRound()
	}
}

func (g *Game) finish(winner PlayerID) {
	g.Winner = winner
	g.Status = StatusFinished
	g.Turn = NoPlayer
}

// openRound appends a fresh NULL record for both players.
func (g *Game) openRound() {
	for i := range g.Players {
		g.Players[i].guesses = append(g.Players[i].guesses, Guess{Round: g.Round, Status: GuessNull})
	}
}

func (g *Game) requireStarted() error {
	switch g.Status {
	case StatusStarted:
		return nil
	case StatusFinished:
		return ErrFinished
	}
	return ErrNotStarted
}

// player resolves an address to its slot.
func (g *Game) player(address string) (*Player, error) {
	if address == "" {
		return nil, ErrNotPlayer
	}
	for i := range g.Players {
		if g.Players[i].Address == address {
			return &g.Players[i], nil
		}
	}
	return nil, ErrNotPlayer
}

func (p *Player) current(round int) *Guess { return &p.guesses[round-1] }

// ----------------------------- projections ---------------------------------

// View returns the public projection of the game.
func (g *Game) View() View {
	v := View{
		ID:             g.ID,
		Status:         g.Status,
		Round:          g.Round,
		TurnOfPlayerID: g.Turn,
		IsFirst:        g.IsFirst,
		Winner:         g.Winner,
	}
	for i, p := range g.Players {
		v.Players[i] = PlayerView{ID: p.ID, Address: p.Address, HasSecret: p.SecretNumber != nil}
	}
	return v
}

// PlayerOf maps an address to its slot id.
func (g *Game) PlayerOf(address string) (PlayerID, error) {
	p, err := g.player(address)
	if err != nil {
		return NoPlayer, err
	}
	return p.ID, nil
}

// Guess returns the record of address for round.
func (g *Game) Guess(address string, round int) (Guess, error) {
	p, err := g.player(address)
	if err != nil {
		return Guess{}, err
	}
	if round < 1 || round > len(p.guesses) {
		return Guess{}, fmt.Errorf("%w %d", ErrNoGuess, round)
	}
	return p.guesses[round-1], nil
}

// Guesses returns a copy of every record of address, oldest round first.
func (g *Game) Guesses(address string) ([]Guess, error) {
	p, err := g.player(address)
	if err != nil {
		return nil, err
	}
	out := make([]Guess, len(p.guesses))
	copy(out, p.guesses)
	return out, nil
}

// SecretNum returns the recorded secret of address, if any.
func (g *Game) SecretNum(address string) (int, bool) {
	p, err := g.player(address)
	if err != nil || p.SecretNumber == nil {
		return 0, false
	}
	return *p.SecretNumber, true
}

// randomID returns a compact 16‑hex‑char identifier.
func randomID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
