package umpire

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const consoleHelp = `commands:
  list              show matches available for scoring
  select <id>       start scoring a match
  a+ | a- | b+ | b- add or remove a point
  reset             zero the current game's points
  end <a|b>         close the game for a side
  submit            submit the final game tally
  status            show the current score
  quit              leave the console`

// Console drives a Screen from line-oriented input.
type Console struct {
	screen *Screen
	input  io.Reader
	output io.Writer
	logger *zap.Logger
}

// NewConsole wires a console. Submitted results are logged through logger.
func NewConsole(screen *Screen, input io.Reader, output io.Writer, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{screen: screen, input: input, output: output, logger: logger}
}

// Run reads commands until quit, end of input, or ctx is cancelled. A cancelled
// ctx returns at once even while a read is pending; the reader goroutine exits
// with its next line.
func (console *Console) Run(ctx context.Context) error {
	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(console.input)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-readCtx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	console.printf("%s\n", consoleHelp)
	console.prompt()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rawLine, ok := <-lines:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := <-scanErr; err != nil {
					return fmt.Errorf("umpire.console: %w", err)
				}
				return nil
			}
			line := strings.TrimSpace(rawLine)
			if line == "quit" || line == "exit" {
				return nil
			}
			if line != "" {
				console.Execute(line)
			}
			console.prompt()
		}
	}
}

// Execute runs a single command and prints its outcome.
func (console *Console) Execute(line string) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return
	}
	var err error
	switch fields[0] {
	case "help":
		console.printf("%s\n", consoleHelp)
	case "list":
		for _, match := range console.screen.Matches() {
			console.printf("%d  %s vs %s (%s)\n", match.ID, match.TeamA, match.TeamB, match.Court)
		}
	case "select":
		err = console.selectMatch(fields[1:])
	case "a+":
		err = console.adjust(console.screen.Increment, SideA)
	case "a-":
		err = console.adjust(console.screen.Decrement, SideA)
	case "b+":
		err = console.adjust(console.screen.Increment, SideB)
	case "b-":
		err = console.adjust(console.screen.Decrement, SideB)
	case "reset":
		if err = console.screen.ResetPoints(); err == nil {
			console.printStatus()
		}
	case "end":
		err = console.endGame(fields[1:])
	case "submit":
		err = console.submit()
	case "status":
		console.printStatus()
	default:
		console.printf("unknown command %q, type help\n", fields[0])
	}
	if err != nil {
		console.printf("%s\n", describe(err))
	}
}

func (console *Console) selectMatch(arguments []string) error {
	if len(arguments) != 1 {
		return fmt.Errorf("usage: select <id>")
	}
	matchID, parseErr := strconv.Atoi(arguments[0])
	if parseErr != nil {
		return fmt.Errorf("usage: select <id>")
	}
	if err := console.screen.Select(matchID); err != nil {
		return err
	}
	console.printStatus()
	return nil
}

func (console *Console) adjust(operation func(Side) error, side Side) error {
	if err := operation(side); err != nil {
		return err
	}
	console.printStatus()
	return nil
}

func (console *Console) endGame(arguments []string) error {
	if len(arguments) != 1 {
		return fmt.Errorf("usage: end <a|b>")
	}
	side, err := ParseSide(arguments[0])
	if err != nil {
		return err
	}
	gameEnd, err := console.screen.EndGame(side)
	if err != nil {
		return err
	}
	console.printf("Game %d ended. Winner: %s\n", gameEnd.GameNumber, gameEnd.WinnerTeam)
	console.printStatus()
	return nil
}

func (console *Console) submit() error {
	result, err := console.screen.Submit()
	if err != nil {
		return err
	}
	console.logger.Info("score submitted",
		zap.Int("match_id", result.Match.ID),
		zap.String("team_a", result.Match.TeamA),
		zap.String("team_b", result.Match.TeamB),
		zap.Int("games_a", result.GamesA),
		zap.Int("games_b", result.GamesB),
	)
	console.printf("Score submitted. Final score for %s vs %s: %d - %d games.\n", result.Match.TeamA, result.Match.TeamB, result.GamesA, result.GamesB)
	return nil
}

func (console *Console) printStatus() {
	match, ok := console.screen.Selected()
	if !ok {
		console.printf("No match selected.\n")
		return
	}
	tally := console.screen.Tally()
	console.printf("%s %d : %d %s | Games: %d - %d | %s\n", match.TeamA, tally.PointsA, tally.PointsB, match.TeamB, tally.GamesA, tally.GamesB, match.Court)
}

func (console *Console) prompt() {
	console.printf("> ")
}

func (console *Console) printf(format string, arguments ...interface{}) {
	_, _ = fmt.Fprintf(console.output, format, arguments...)
}

func describe(err error) string {
	switch {
	case errors.Is(err, ErrNoMatchSelected):
		return "Select a match first."
	case errors.Is(err, ErrUnknownMatch):
		return "No such match."
	case errors.Is(err, ErrGameNotFinished):
		return "A game can only end once the winner has at least 21 points."
	case errors.Is(err, ErrNoGamesRecorded):
		return "Cannot submit: no games have been recorded."
	default:
		return err.Error()
	}
}
