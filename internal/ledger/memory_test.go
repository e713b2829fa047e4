package ledger

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/numer0n/apps/go-server/internal/game"
)

const (
	p1 = "0xaaa1"
	p2 = "0xbbb2"
)

func deployed(t *testing.T) *Memory {
	t.Helper()
	ctx := context.Background()
	m := Deploy(p1, "123", true)
	require.NoError(t, m.Join(ctx, p2, "123"))
	return m
}

func TestDeployAddress(t *testing.T) {
	m := Deploy(p1, "123", true)
	assert.True(t, strings.HasPrefix(m.Address(), "0x"))
	assert.Len(t, m.Address(), 66)

	fixed := Deploy(p1, "123", true, WithAddress("0xfeed"))
	assert.Equal(t, "0xfeed", fixed.Address())

	s, err := fixed.GetGame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", s.ID)
}

func TestDeploySaltedFirstMover(t *testing.T) {
	ctx := context.Background()
	want := game.FirstMover("123", "pepper")
	m := DeploySalted(p1, "123", "pepper", WithAddress("0xc1"))
	assert.Equal(t, "0xc1", m.Address())

	s, err := m.GetGame(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, s.IsFirst)
}

func TestSubmitSecretWriteOnce(t *testing.T) {
	ctx := context.Background()
	m := deployed(t)

	require.NoError(t, m.SubmitSecret(ctx, p1, 125))
	err := m.SubmitSecret(ctx, p1, 327)
	assert.ErrorIs(t, err, ErrDuplicateSubmission)
	assert.ErrorIs(t, err, game.ErrAlreadySet)

	assert.ErrorIs(t, m.SubmitSecret(ctx, "0xdead", 125), ErrNotPlayer)
	assert.ErrorIs(t, m.SubmitSecret(ctx, p2, 11), game.ErrInvalidRange)
}

func TestSecretPrivacy(t *testing.T) {
	ctx := context.Background()
	m := deployed(t)
	require.NoError(t, m.SubmitSecret(ctx, p1, 125))
	require.NoError(t, m.SubmitSecret(ctx, p2, 125))

	own, err := m.GetSecretNum(ctx, p1, p1)
	require.NoError(t, err)
	assert.Equal(t, 125, own)

	_, err = m.GetSecretNum(ctx, p2, p1)
	assert.ErrorIs(t, err, ErrNotRevealed)
	_, _, err = m.Reveal(ctx, p2, p1)
	assert.ErrorIs(t, err, ErrNotRevealed)

	require.NoError(t, m.SubmitGuess(ctx, p1, 125))
	sc, err := m.EvaluateGuess(ctx, p2, p1, 125)
	require.NoError(t, err)
	assert.Equal(t, game.Score{Eat: 3}, sc)
	require.NoError(t, m.SubmitGuess(ctx, p2, 293))
	_, err = m.EvaluateGuess(ctx, p1, p2, 293)
	require.NoError(t, err)

	s, err := m.GetGame(ctx)
	require.NoError(t, err)
	assert.Equal(t, game.StatusFinished, s.Status)
	assert.Equal(t, game.Player1, s.Winner)

	v, salt, err := m.Reveal(ctx, p2, p1)
	require.NoError(t, err)
	assert.Equal(t, 125, v)
	assert.True(t, VerifyReveal(s.Commitments[0], salt, v))
	assert.False(t, VerifyReveal(s.Commitments[0], salt, 126))
	assert.False(t, VerifyReveal("not-hex", salt, v))
}

func TestCommitmentsPublishedOnSubmit(t *testing.T) {
	ctx := context.Background()
	m := deployed(t)

	s, err := m.GetGame(ctx)
	require.NoError(t, err)
	assert.Empty(t, s.Commitments[0])

	require.NoError(t, m.SubmitSecret(ctx, p1, 125))
	require.NoError(t, m.SubmitSecret(ctx, p2, 125))
	s, err = m.GetGame(ctx)
	require.NoError(t, err)
	assert.Len(t, s.Commitments[0], 64)
	assert.NotEqual(t, s.Commitments[0], s.Commitments[1], "salts differ even for equal secrets")
}

func TestGuessProjections(t *testing.T) {
	ctx := context.Background()
	m := deployed(t)
	require.NoError(t, m.SubmitSecret(ctx, p1, 125))
	require.NoError(t, m.SubmitSecret(ctx, p2, 345))

	require.NoError(t, m.SubmitGuess(ctx, p1, 678))
	g, err := m.GetGuess(ctx, p1, 1)
	require.NoError(t, err)
	assert.Equal(t, game.GuessGuessed, g.Status)

	_, err = m.GetGuess(ctx, "0xdead", 1)
	assert.ErrorIs(t, err, ErrNotPlayer)

	all, err := m.GetGuesses(ctx, p1)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := Deploy(p1, "123", true)
	assert.ErrorIs(t, m.Join(ctx, p2, "123"), context.Canceled)
}
