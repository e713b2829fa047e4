package game

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateNumberRange(t *testing.T) {
	for _, v := range []int{-1, 0, 1, 10, 11, 988, 1000, 1023} {
		assert.ErrorIs(t, ValidateNumber(v), ErrInvalidRange, "v=%d", v)
	}
	for _, v := range []int{12, 987} {
		assert.NoError(t, ValidateNumber(v), "v=%d", v)
	}
}

func TestValidateNumberDuplicateDigits(t *testing.T) {
	for _, v := range []int{220, 202, 122, 100, 22, 33, 977} {
		assert.ErrorIs(t, ValidateNumber(v), ErrDuplicateDigits, "v=%d", v)
	}
	// zero padding counts the leading zero as a digit
	for _, v := range []int{56, 12, 98, 109, 609, 250} {
		assert.NoError(t, ValidateNumber(v), "v=%d", v)
	}
}

func TestValidateNumberExhaustive(t *testing.T) {
	for v := -5; v <= 1005; v++ {
		err := ValidateNumber(v)
		if v < MinNumber || v > MaxNumber {
			require.ErrorIs(t, err, ErrInvalidRange, "v=%d", v)
			continue
		}
		s := Pad(v)
		repeated := s[0] == s[1] || s[1] == s[2] || s[0] == s[2]
		if repeated {
			require.ErrorIs(t, err, ErrDuplicateDigits, "v=%d", v)
		} else {
			require.NoError(t, err, "v=%d", v)
		}
	}
}

func TestPad(t *testing.T) {
	assert.Equal(t, "056", Pad(56))
	assert.Equal(t, "012", Pad(12))
	assert.Equal(t, "987", Pad(987))
}

func TestScoreGuess(t *testing.T) {
	cases := []struct {
		secret, guess int
		want          Score
	}{
		{125, 125, Score{Eat: 3, Bite: 0}},
		{125, 293, Score{Eat: 0, Bite: 1}},
		{293, 932, Score{Eat: 0, Bite: 3}},
		{486, 125, Score{Eat: 0, Bite: 0}},
		{406, 25, Score{Eat: 0, Bite: 1}},
		{460, 984, Score{Eat: 0, Bite: 1}},
		{109, 910, Score{Eat: 0, Bite: 3}},
		{109, 901, Score{Eat: 1, Bite: 2}},
		{56, 65, Score{Eat: 1, Bite: 2}},
		{56, 560, Score{Eat: 0, Bite: 3}},
		{123, 143, Score{Eat: 2, Bite: 0}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ScoreGuess(c.secret, c.guess), "secret=%s guess=%s", Pad(c.secret), Pad(c.guess))
	}
}

func TestScoreGuessRepeatedDigitsCountOnce(t *testing.T) {
	// unvalidated operands: a repeated guess digit matches only as often as it remains in the secret
	assert.Equal(t, Score{Eat: 0, Bite: 2}, ScoreGuess(123, 311))
	assert.Equal(t, Score{Eat: 2, Bite: 0}, ScoreGuess(121, 111))
}

func TestScoreGuessProperties(t *testing.T) {
	var valid []int
	for v := MinNumber; v <= MaxNumber; v++ {
		if ValidateNumber(v) == nil {
			valid = append(valid, v)
		}
	}
	require.NotEmpty(t, valid)

	for i, s := range valid {
		require.True(t, ScoreGuess(s, s).Hit())
		// sample against a spread of guesses to keep the run short
		for j := i % 7; j < len(valid); j += 37 {
			g := valid[j]
			sc := ScoreGuess(s, g)
			require.LessOrEqual(t, sc.Eat+sc.Bite, Digits)
			require.Equal(t, sc, ScoreGuess(g, s), "score is symmetric for distinct-digit operands")
			if g != s {
				require.False(t, sc.Hit())
			}
		}
	}
}

func TestFirstMoverIsDeterministic(t *testing.T) {
	a := FirstMover("123", "salt")
	for i := 0; i < 5; i++ {
		assert.Equal(t, a, FirstMover("123", "salt"))
	}

	seen := map[bool]bool{}
	for code := 0; code < 64; code++ {
		seen[FirstMover(strconv.Itoa(code), "salt")] = true
	}
	assert.Len(t, seen, 2, "both orders occur across codes")
}
