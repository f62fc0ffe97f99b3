// Package domain holds the pure session state machine for the mine grid game.
//
// A session owns a fixed-size grid with a fixed number of hidden mines. Safe
// reveals accumulate a gem reward; revealing a mine loses the session, and an
// explicit cash-out (or clearing every safe cell) wins it. All mutation
// passes through Reveal and CashOut so terminal states stay absorbing.
package domain

import (
	"fmt"
	"math/rand"
	"time"

	apperrors "github.com/gemfall/arcade/internal/errors"
)

// Grid dimensions are fixed for every session.
const (
	GridSize  = 25
	MineCount = 3
)

// Status is the session lifecycle state.
type Status string

const (
	StatusActive Status = "active"
	StatusLost   Status = "lost"
	StatusWon    Status = "won"
)

// ParseStatus converts a persisted status string back into a Status.
func ParseStatus(value string) (Status, error) {
	switch Status(value) {
	case StatusActive, StatusLost, StatusWon:
		return Status(value), nil
	default:
		return "", fmt.Errorf("unknown session status %q", value)
	}
}

// Session is one play instance from creation to terminal state.
type Session struct {
	ID        string
	PlayerID  string
	GridSize  int
	Mines     []int
	Revealed  []int
	Status    Status
	StartedAt time.Time
	EndedAt   *time.Time
	ClaimedAt *time.Time
}

// NewSession creates an active session with no revealed cells.
func NewSession(id, playerID string, mines []int, startedAt time.Time) Session {
	return Session{
		ID:        id,
		PlayerID:  playerID,
		GridSize:  GridSize,
		Mines:     mines,
		Revealed:  nil,
		Status:    StatusActive,
		StartedAt: startedAt.UTC(),
	}
}

// SampleMines draws MineCount distinct cell indices from [0, GridSize)
// uniformly at random, rejecting collisions and resampling.
func SampleMines(r *rand.Rand) []int {
	mines := make([]int, 0, MineCount)
	for len(mines) < MineCount {
		candidate := r.Intn(GridSize)
		if containsCell(mines, candidate) {
			continue
		}
		mines = append(mines, candidate)
	}
	return mines
}

// IsMine reports whether the cell hides a mine.
func (s *Session) IsMine(cell int) bool {
	return containsCell(s.Mines, cell)
}

// IsRevealed reports whether the cell has already been revealed.
func (s *Session) IsRevealed(cell int) bool {
	return containsCell(s.Revealed, cell)
}

// Reward is the number of revealed safe cells. A mine that ended the session
// is recorded in Revealed but never counts toward the reward.
func (s *Session) Reward() int {
	reward := 0
	for _, cell := range s.Revealed {
		if !s.IsMine(cell) {
			reward++
		}
	}
	return reward
}

// safeCells is the number of non-mine cells on the grid.
func (s *Session) safeCells() int {
	return s.GridSize - len(s.Mines)
}

// RevealOutcome describes the effect of a single reveal.
type RevealOutcome struct {
	IsMine   bool
	GameOver bool
	Won      bool
}

// Reveal uncovers a cell. A mine loses the session; uncovering the last safe
// cell wins it. Terminal sessions reject every further reveal.
func (s *Session) Reveal(cell int, now time.Time) (RevealOutcome, error) {
	if cell < 0 || cell >= s.GridSize {
		return RevealOutcome{}, apperrors.WithMetadata(
			apperrors.CodeCellOutOfRange,
			fmt.Sprintf("cell %d outside grid of %d", cell, s.GridSize),
			map[string]string{"cell": fmt.Sprintf("%d", cell)},
		)
	}
	if s.Status != StatusActive {
		return RevealOutcome{}, apperrors.New(apperrors.CodeSessionEnded, "session already ended")
	}
	if s.IsRevealed(cell) {
		return RevealOutcome{}, apperrors.New(apperrors.CodeCellRevealed, "cell already revealed")
	}

	s.Revealed = append(s.Revealed, cell)

	if s.IsMine(cell) {
		s.end(StatusLost, now)
		return RevealOutcome{IsMine: true, GameOver: true}, nil
	}
	if s.Reward() == s.safeCells() {
		s.end(StatusWon, now)
		return RevealOutcome{GameOver: true, Won: true}, nil
	}
	return RevealOutcome{}, nil
}

// CashOut freezes the session as won, locking in the accumulated reward.
// Cashing out with zero progress is not a valid terminal transition.
func (s *Session) CashOut(now time.Time) error {
	if s.Status != StatusActive {
		return apperrors.New(apperrors.CodeSessionEnded, "session already ended")
	}
	if len(s.Revealed) == 0 {
		return apperrors.New(apperrors.CodeNothingRevealed, "no cells revealed")
	}
	s.end(StatusWon, now)
	return nil
}

func (s *Session) end(status Status, now time.Time) {
	ended := now.UTC()
	s.Status = status
	s.EndedAt = &ended
}

func containsCell(cells []int, cell int) bool {
	for _, c := range cells {
		if c == cell {
			return true
		}
	}
	return false
}
