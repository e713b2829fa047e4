// internal/game/rules.go
//
// RuleEngine: pure validation and scoring, no state and no I/O.
//
// Numbers are three decimal digits, zero padded (56 → "056"), in the
// inclusive range [12, 987], with pairwise distinct digits. The same rule
// applies to secrets and guesses.

package game

import (
	"errors"
	"fmt"
)

const (
	// Digits is the number of digit positions; eat == Digits is an exact match.
	Digits = 3

	MinNumber = 12
	MaxNumber = 987
)

var (
	ErrInvalidRange    = errors.New("number out of range")
	ErrDuplicateDigits = errors.New("duplicate digits not allowed")
)

// ValidateNumber checks range and digit uniqueness.
func ValidateNumber(v int) error {
	if v < MinNumber || v > MaxNumber {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidRange, v, MinNumber, MaxNumber)
	}
	d := digits(v)
	if d[0] == d[1] || d[1] == d[2] || d[2] == d[0] {
		return fmt.Errorf("%w: %s", ErrDuplicateDigits, Pad(v))
	}
	return nil
}

// Pad renders v as a zero-padded three digit string.
func Pad(v int) string { return fmt.Sprintf("%03d", v) }

// ScoreGuess evaluates guess against secret.
//
// Pass 1 counts exact positions (eat) and tallies the remaining secret digits.
// Pass 2 matches each remaining guess digit against that tally (bite), so a
// digit is counted at most as many times as it is left over in the secret.
func ScoreGuess(secret, guess int) Score {
	s, g := digits(secret), digits(guess)

	var res Score
	var counts [10]int
	for i := 0; i < Digits; i++ {
		if s[i] == g[i] {
			res.Eat++
		} else {
			counts[s[i]]++
		}
	}
	for i := 0; i < Digits; i++ {
		if s[i] == g[i] {
			continue
		}
		if counts[g[i]] > 0 {
			res.Bite++
			counts[g[i]]--
		}
	}
	return res
}

// digits splits the low three decimal digits of v, most significant first.
func digits(v int) [Digits]int {
	if v < 0 {
		v = -v
	}
	return [Digits]int{(v / 100) % 10, (v / 10) % 10, v % 10}
}
