package game

import (
	"crypto/hmac"
	"crypto/sha256"
)

// FirstMover derives the isFirst flag for a game from HMAC(salt, code).
// true means player 1 guesses first. The result is stable for a given pair.
func FirstMover(code, salt string) bool {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(code))
	sum := h.Sum(nil)
	return sum[0]&1 == 0
}
