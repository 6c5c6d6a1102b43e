package service

import (
	"errors"

	"github.com/surewhynot/realtime/internal/domain"
	"github.com/surewhynot/realtime/internal/presence"
	"github.com/surewhynot/realtime/internal/puzzle"
)

type PuzzleService struct {
	tracker *presence.Tracker
}

func NewPuzzleService(tracker *presence.Tracker) *PuzzleService {
	return &PuzzleService{tracker: tracker}
}

func (s *PuzzleService) Today() puzzle.Puzzle {
	return puzzle.Today(s.tracker.Now())
}

// Solved reports whether id solved today's puzzle.
func (s *PuzzleService) Solved(id string) (day string, solved bool) {
	day = domain.DayKey(s.tracker.Now())
	u, ok := s.tracker.Get(id)
	return day, ok && u.SolvedDay == day
}

type SubmitResult struct {
	Solved  bool            `json:"solved"`
	Already bool            `json:"already"`
	AwardXP int             `json:"awardXp"`
	User    domain.Identity `json:"user"`
}

// Submit checks guess against today's answer and awards XP on the first
// correct guess of the day.
func (s *PuzzleService) Submit(id, guess string) SubmitResult {
	day := domain.DayKey(s.tracker.Now())
	if u, ok := s.tracker.Get(id); ok && u.SolvedDay == day {
		return SubmitResult{Solved: true, Already: true, User: u}
	}
	if !puzzle.Check(day, guess) {
		u, _ := s.tracker.Get(id)
		return SubmitResult{User: u}
	}

	u, err := s.tracker.MarkSolved(id, day, puzzle.SolveXP)
	if errors.Is(err, domain.ErrAlreadySolved) {
		return SubmitResult{Solved: true, Already: true, User: u}
	}
	return SubmitResult{Solved: true, AwardXP: puzzle.SolveXP, User: u}
}
