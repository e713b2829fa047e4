// internal/game/types.go
//
// Core type definitions for the Numer0n game engine.
// Defines:
//   - Status / GuessStatus: forward-only lifecycle enums.
//   - PlayerID: the two player slots plus the draw sentinel.
//   - Score: eat/bite result of a guess.
//   - Guess, Player, Game: state for a single game contract.
//   - View / PlayerView: read-only projections that never carry secrets.

package game

// Status is the lifecycle of a game. It only ever advances.
type Status int

const (
	StatusNull       Status = iota // deployed, waiting for player 2
	StatusPlayersSet               // both players joined, secrets pending
	StatusStarted                  // both secrets recorded, rounds in progress
	StatusFinished                 // terminal
)

func (s Status) String() string {
	switch s {
	case StatusNull:
		return "null"
	case StatusPlayersSet:
		return "players_set"
	case StatusStarted:
		return "started"
	case StatusFinished:
		return "finished"
	}
	return "unknown"
}

// GuessStatus is the lifecycle of a single (player, round) guess record.
type GuessStatus int

const (
	GuessNull      GuessStatus = iota // opened, nothing submitted
	GuessGuessed                      // number submitted by its owner
	GuessEvaluated                    // eat/bite supplied by the opponent
)

// PlayerID identifies a player slot.
type PlayerID int

const (
	NoPlayer PlayerID = 0
	Player1  PlayerID = 1
	Player2  PlayerID = 2

	// Draw is the winner sentinel when both players hit eat == 3 in the same round.
	Draw PlayerID = 3
)

// Opponent returns the other slot. NoPlayer for anything but 1 or 2.
func (p PlayerID) Opponent() PlayerID {
	switch p {
	case Player1:
		return Player2
	case Player2:
		return Player1
	}
	return NoPlayer
}

// Score is the evaluation of a guess against a secret.
type Score struct {
	Eat  int `json:"eat"`
	Bite int `json:"bite"`
}

// Hit reports an exact match.
func (s Score) Hit() bool { return s.Eat == Digits }

// Guess is the record of one player's guess in one round.
type Guess struct {
	Round       int         `json:"round"`
	GuessNumber int         `json:"guessNumber"`
	Eat         int         `json:"eat"`
	Bite        int         `json:"bite"`
	Status      GuessStatus `json:"status"`
}

// Player holds a slot. SecretNumber is write-once and never leaves the engine
// except through Game.SecretNum.
type Player struct {
	ID           PlayerID
	Address      string
	SecretNumber *int
	guesses      []Guess // index round-1
}

// Game holds the authoritative state of one game contract.
type Game struct {
	ID      string
	Status  Status
	Round   int
	Turn    PlayerID // player whose guess is the current half-turn
	IsFirst bool     // true: player 1 guesses first every round
	Winner  PlayerID
	Players [2]Player

	code string
}

// PlayerView is the public projection of a player slot.
type PlayerView struct {
	ID        PlayerID `json:"id"`
	Address   string   `json:"address"`
	HasSecret bool     `json:"hasSecret"`
}

// View is the public projection of a game.
type View struct {
	ID             string        `json:"id"`
	Status         Status        `json:"status"`
	Round          int           `json:"round"`
	TurnOfPlayerID PlayerID      `json:"turnOfPlayerId"`
	IsFirst        bool          `json:"isFirst"`
	Winner         PlayerID      `json:"winnerId"`
	Players        [2]PlayerView `json:"players"`
}
