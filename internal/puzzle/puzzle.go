// Package puzzle serves the deterministic daily word scramble.
package puzzle

import (
	"strconv"
	"strings"
	"time"

	"github.com/surewhynot/realtime/internal/domain"
)

// SolveXP is awarded once per identity and day.
const SolveXP = 5

var words = []string{"ORBIT", "LASER", "CLOUD", "STACK", "TOKEN", "ROUTE", "CRYPT"}

type Puzzle struct {
	Day      string `json:"day"`
	Type     string `json:"type"`
	Scramble string `json:"scramble"`
	Hint     string `json:"hint"`
}

func hash(day string, mul uint32) uint32 {
	var h uint32
	for i := 0; i < len(day); i++ {
		h = h*mul + uint32(day[i])
	}
	return h
}

// Answer is the word of day.
func Answer(day string) string {
	return words[hash(day, 31)%uint32(len(words))]
}

// Scramble shuffles word with an LCG seeded from day.
func Scramble(word, day string) string {
	h := hash(day, 33)
	b := []byte(word)
	for i := len(b) - 1; i > 0; i-- {
		h = h*1664525 + 1013904223
		j := h % uint32(i+1)
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// ForDay builds the puzzle for a UTC day key.
func ForDay(day string) Puzzle {
	answer := Answer(day)
	return Puzzle{
		Day:      day,
		Type:     "scramble",
		Scramble: Scramble(answer, day),
		Hint:     strconv.Itoa(len(answer)) + " letters",
	}
}

func Today(now time.Time) Puzzle {
	return ForDay(domain.DayKey(now))
}

// Check compares a guess case-insensitively.
func Check(day, guess string) bool {
	return strings.ToUpper(strings.TrimSpace(guess)) == Answer(day)
}
