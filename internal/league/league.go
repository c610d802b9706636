// Package league serves the league's rosters, standings and fixtures, and
// searches players by display name.
package league

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/tyemirov/shuttleup/internal/profile"
)

// ErrTeamNotFound indicates an unknown team id.
var ErrTeamNotFound = errors.New("league.team_not_found")

// Team is a roster entry.
type Team struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
	Avatar  string   `json:"avatar"`
}

// TeamStats summarises a team's season.
type TeamStats struct {
	Played  int    `json:"played"`
	Won     int    `json:"won"`
	Lost    int    `json:"lost"`
	WinRate int    `json:"winRate"`
	Rank    int    `json:"rank"`
	Group   string `json:"group"`
}

// RecentMatch is a completed match from one team's perspective.
type RecentMatch struct {
	ID       int    `json:"id"`
	Opponent string `json:"opponent"`
	Result   string `json:"result"`
	Score    string `json:"score"`
	Date     string `json:"date"`
}

// TeamDetail is a team with its statistics and recent results.
type TeamDetail struct {
	Team
	Stats         TeamStats     `json:"stats"`
	RecentMatches []RecentMatch `json:"recentMatches"`
}

// Standing is one row of the league table.
type Standing struct {
	Rank   int    `json:"rank"`
	Team   string `json:"team"`
	Played int    `json:"played"`
	Won    int    `json:"won"`
	Lost   int    `json:"lost"`
	Points int    `json:"points"`
}

// Fixture is a scheduled or completed match.
type Fixture struct {
	ID     int    `json:"id"`
	TeamA  string `json:"teamA"`
	TeamB  string `json:"teamB"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Court  string `json:"court"`
	Status string `json:"status"`
	ScoreA *int   `json:"scoreA,omitempty"`
	ScoreB *int   `json:"scoreB,omitempty"`
}

// Schedule groups fixtures by state.
type Schedule struct {
	Upcoming []Fixture `json:"upcoming"`
	Past     []Fixture `json:"past"`
}

// UmpireMatch is a match an umpire can score.
type UmpireMatch struct {
	ID    int    `json:"id"`
	TeamA string `json:"teamA"`
	TeamB string `json:"teamB"`
	Court string `json:"court"`
}

// Player is a search result.
type Player struct {
	UserID      string             `json:"id"`
	DisplayName string             `json:"displayName"`
	Team        string             `json:"team"`
	SkillLevel  profile.SkillLevel `json:"skillLevel"`
	Avatar      string             `json:"avatar"`
}

// ProfileLister enumerates stored profiles.
type ProfileLister interface {
	List(ctx context.Context) ([]profile.UserProfile, error)
}

// Directory answers league queries.
type Directory struct {
	profiles ProfileLister
}

// NewDirectory wires the directory. profiles may be nil, which disables search.
func NewDirectory(profiles ProfileLister) *Directory {
	return &Directory{profiles: profiles}
}

// Teams returns every roster in id order.
func (directory *Directory) Teams() []Team {
	teams := make([]Team, 0, len(teamDetails))
	for _, detail := range teamDetails {
		teams = append(teams, cloneTeam(detail.Team))
	}
	sort.Slice(teams, func(left, right int) bool {
		return teams[left].ID < teams[right].ID
	})
	return teams
}

// Team returns one team's details.
func (directory *Directory) Team(id int) (TeamDetail, error) {
	detail, ok := teamDetails[id]
	if !ok {
		return TeamDetail{}, ErrTeamNotFound
	}
	detail.Team = cloneTeam(detail.Team)
	detail.RecentMatches = append([]RecentMatch(nil), detail.RecentMatches...)
	return detail, nil
}

// Standings returns the league table ordered by rank.
func (directory *Directory) Standings() []Standing {
	return append([]Standing(nil), standings...)
}

// Schedule returns upcoming and completed fixtures.
func (directory *Directory) Schedule() Schedule {
	return Schedule{
		Upcoming: append([]Fixture(nil), upcomingFixtures...),
		Past:     append([]Fixture(nil), pastFixtures...),
	}
}

// UmpireMatches returns the matches available for scoring.
func (directory *Directory) UmpireMatches() []UmpireMatch {
	return append([]UmpireMatch(nil), umpireMatches...)
}

// SearchPlayers returns profiles whose lower-cased display name contains the
// lower-cased query, excluding the caller. A blank query yields no results.
func (directory *Directory) SearchPlayers(ctx context.Context, query string, callerID string) ([]Player, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" || directory.profiles == nil {
		return []Player{}, nil
	}
	profiles, err := directory.profiles.List(ctx)
	if err != nil {
		return nil, err
	}
	players := []Player{}
	for _, candidate := range profiles {
		if candidate.UserID == callerID {
			continue
		}
		if !strings.Contains(candidate.DisplayNameLower, needle) {
			continue
		}
		players = append(players, Player{
			UserID:      candidate.UserID,
			DisplayName: candidate.DisplayName,
			Team:        candidate.Team,
			SkillLevel:  candidate.SkillLevel,
			Avatar:      candidate.Avatar,
		})
	}
	return players, nil
}

func cloneTeam(team Team) Team {
	team.Members = append([]string(nil), team.Members...)
	return team
}
