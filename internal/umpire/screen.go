// Package umpire keeps the live score of a match being umpired.
package umpire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyemirov/shuttleup/internal/league"
)

var (
	// ErrNoMatchSelected indicates a scoring action before a match was chosen.
	ErrNoMatchSelected = errors.New("umpire.no_match_selected")
	// ErrUnknownMatch indicates a match id that is not available for scoring.
	ErrUnknownMatch = errors.New("umpire.unknown_match")
	// ErrGameNotFinished indicates an end-game request the rule rejects.
	ErrGameNotFinished = errors.New("umpire.game_not_finished")
	// ErrNoGamesRecorded indicates a submit without any finished game.
	ErrNoGamesRecorded = errors.New("umpire.no_games_recorded")
	// ErrUnknownSide indicates a side other than A or B.
	ErrUnknownSide = errors.New("umpire.unknown_side")
)

// Side identifies one of the two teams in a match.
type Side int

const (
	SideA Side = iota
	SideB
)

func (side Side) String() string {
	if side == SideB {
		return "B"
	}
	return "A"
}

// ParseSide accepts "a" or "b" in any case.
func ParseSide(raw string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "a":
		return SideA, nil
	case "b":
		return SideB, nil
	default:
		return SideA, fmt.Errorf("%w: %q", ErrUnknownSide, raw)
	}
}

// State is the screen's lifecycle position.
type State int

const (
	StateNotSelected State = iota
	StateInProgress
)

func (state State) String() string {
	if state == StateInProgress {
		return "in_progress"
	}
	return "not_selected"
}

// Tally holds current game points and finished games per side.
type Tally struct {
	PointsA int
	PointsB int
	GamesA  int
	GamesB  int
}

// GameRule decides whether the side with winnerPoints may close the game.
type GameRule interface {
	CanEndGame(winnerPoints int, opponentPoints int) bool
}

// MinimumPointsRule only requires the winner to reach Minimum points. It does
// not enforce a two-point margin or a score cap.
type MinimumPointsRule struct {
	Minimum int
}

func (rule MinimumPointsRule) CanEndGame(winnerPoints int, opponentPoints int) bool {
	return winnerPoints >= rule.Minimum
}

// DefaultGameRule ends a game once a side reaches 21.
var DefaultGameRule GameRule = MinimumPointsRule{Minimum: 21}

// GameEnd describes a finished game.
type GameEnd struct {
	Winner     Side
	WinnerTeam string
	GameNumber int
}

// Result is the final tally of a submitted match.
type Result struct {
	Match  league.UmpireMatch
	GamesA int
	GamesB int
}

// Screen is the scoring state machine for one umpire. It is not safe for
// concurrent use.
type Screen struct {
	matches  []league.UmpireMatch
	rule     GameRule
	selected *league.UmpireMatch
	tally    Tally
}

// NewScreen builds a screen over the scorable matches; a nil rule uses DefaultGameRule.
func NewScreen(matches []league.UmpireMatch, rule GameRule) *Screen {
	if rule == nil {
		rule = DefaultGameRule
	}
	return &Screen{matches: append([]league.UmpireMatch(nil), matches...), rule: rule}
}

// Matches lists the scorable matches.
func (screen *Screen) Matches() []league.UmpireMatch {
	return append([]league.UmpireMatch(nil), screen.matches...)
}

func (screen *Screen) State() State {
	if screen.selected == nil {
		return StateNotSelected
	}
	return StateInProgress
}

// Selected returns the match being scored.
func (screen *Screen) Selected() (league.UmpireMatch, bool) {
	if screen.selected == nil {
		return league.UmpireMatch{}, false
	}
	return *screen.selected, true
}

func (screen *Screen) Tally() Tally {
	return screen.tally
}

// Select picks a match and zeroes the whole tally.
func (screen *Screen) Select(matchID int) error {
	for index := range screen.matches {
		if screen.matches[index].ID == matchID {
			match := screen.matches[index]
			screen.selected = &match
			screen.tally = Tally{}
			return nil
		}
	}
	return fmt.Errorf("umpire.select: %w: %d", ErrUnknownMatch, matchID)
}

func (screen *Screen) Increment(side Side) error {
	if screen.selected == nil {
		return ErrNoMatchSelected
	}
	*screen.points(side)++
	return nil
}

// Decrement removes a point, never going below zero.
func (screen *Screen) Decrement(side Side) error {
	if screen.selected == nil {
		return ErrNoMatchSelected
	}
	points := screen.points(side)
	if *points > 0 {
		*points--
	}
	return nil
}

// ResetPoints zeroes the current game's points and keeps finished games.
func (screen *Screen) ResetPoints() error {
	if screen.selected == nil {
		return ErrNoMatchSelected
	}
	screen.tally.PointsA = 0
	screen.tally.PointsB = 0
	return nil
}

// EndGame awards the game to side when the rule allows it and starts the next game.
func (screen *Screen) EndGame(side Side) (GameEnd, error) {
	if screen.selected == nil {
		return GameEnd{}, ErrNoMatchSelected
	}
	winnerPoints, opponentPoints := screen.tally.PointsA, screen.tally.PointsB
	winnerTeam := screen.selected.TeamA
	if side == SideB {
		winnerPoints, opponentPoints = opponentPoints, winnerPoints
		winnerTeam = screen.selected.TeamB
	}
	if !screen.rule.CanEndGame(winnerPoints, opponentPoints) {
		return GameEnd{}, fmt.Errorf("umpire.end_game: %w: %d-%d", ErrGameNotFinished, winnerPoints, opponentPoints)
	}
	if side == SideB {
		screen.tally.GamesB++
	} else {
		screen.tally.GamesA++
	}
	screen.tally.PointsA = 0
	screen.tally.PointsB = 0
	return GameEnd{
		Winner:     side,
		WinnerTeam: winnerTeam,
		GameNumber: screen.tally.GamesA + screen.tally.GamesB,
	}, nil
}

// Submit reports the finished games and returns the screen to its unselected state.
func (screen *Screen) Submit() (Result, error) {
	if screen.selected == nil {
		return Result{}, ErrNoMatchSelected
	}
	if screen.tally.GamesA+screen.tally.GamesB == 0 {
		return Result{}, ErrNoGamesRecorded
	}
	result := Result{Match: *screen.selected, GamesA: screen.tally.GamesA, GamesB: screen.tally.GamesB}
	screen.selected = nil
	screen.tally = Tally{}
	return result, nil
}

func (screen *Screen) points(side Side) *int {
	if side == SideB {
		return &screen.tally.PointsB
	}
	return &screen.tally.PointsA
}
