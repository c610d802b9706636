package league

func score(value int) *int {
	return &value
}

var teamDetails = map[int]TeamDetail{
	1: {
		Team:  Team{ID: 1, Name: "Team Alpha", Members: []string{"Alice Smith", "Bob Brown"}, Avatar: "https://picsum.photos/seed/alpha/100/100"},
		Stats: TeamStats{Played: 5, Won: 4, Lost: 1, WinRate: 80, Rank: 1, Group: "A"},
		RecentMatches: []RecentMatch{
			{ID: 4, Opponent: "Your Team", Result: "Win", Score: "21-15", Date: "2024-08-08"},
		},
	},
	2: {
		Team:  Team{ID: 2, Name: "Your Team", Members: []string{"You", "Partner"}, Avatar: "https://picsum.photos/seed/yourteam/100/100"},
		Stats: TeamStats{Played: 5, Won: 3, Lost: 2, WinRate: 60, Rank: 2, Group: "A"},
		RecentMatches: []RecentMatch{
			{ID: 4, Opponent: "Team Alpha", Result: "Loss", Score: "15-21", Date: "2024-08-08"},
			{ID: 7, Opponent: "Team Charlie", Result: "Win", Score: "21-18", Date: "2024-08-01"},
			{ID: 8, Opponent: "Team Delta", Result: "Win", Score: "21-19", Date: "2024-07-25"},
		},
	},
	3: {
		Team:  Team{ID: 3, Name: "Team Bravo", Members: []string{"Charlie", "Dana"}, Avatar: "https://picsum.photos/seed/bravo/100/100"},
		Stats: TeamStats{Played: 5, Won: 3, Lost: 2, WinRate: 60, Rank: 3, Group: "A"},
		RecentMatches: []RecentMatch{
			{ID: 5, Opponent: "Team Charlie", Result: "Loss", Score: "18-21", Date: "2024-08-09"},
		},
	},
	4: {
		Team:  Team{ID: 4, Name: "Team Charlie", Members: []string{"Eve", "Frank"}, Avatar: "https://picsum.photos/seed/charlie/100/100"},
		Stats: TeamStats{Played: 5, Won: 2, Lost: 3, WinRate: 40, Rank: 5, Group: "B"},
		RecentMatches: []RecentMatch{
			{ID: 5, Opponent: "Team Bravo", Result: "Win", Score: "21-18", Date: "2024-08-09"},
			{ID: 7, Opponent: "Your Team", Result: "Loss", Score: "18-21", Date: "2024-08-01"},
		},
	},
	5: {
		Team:  Team{ID: 5, Name: "Team Delta", Members: []string{"Grace", "Heidi"}, Avatar: "https://picsum.photos/seed/delta/100/100"},
		Stats: TeamStats{Played: 5, Won: 2, Lost: 3, WinRate: 40, Rank: 4, Group: "B"},
		RecentMatches: []RecentMatch{
			{ID: 8, Opponent: "Your Team", Result: "Loss", Score: "19-21", Date: "2024-07-25"},
		},
	},
	6: {
		Team:          Team{ID: 6, Name: "Team Echo", Members: []string{"Ivan", "Judy"}, Avatar: "https://picsum.photos/seed/echo/100/100"},
		Stats:         TeamStats{Played: 5, Won: 1, Lost: 4, WinRate: 20, Rank: 6, Group: "B"},
		RecentMatches: []RecentMatch{},
	},
}

var standings = []Standing{
	{Rank: 1, Team: "Team Alpha", Played: 5, Won: 4, Lost: 1, Points: 12},
	{Rank: 2, Team: "Your Team", Played: 5, Won: 3, Lost: 2, Points: 9},
	{Rank: 3, Team: "Team Bravo", Played: 5, Won: 3, Lost: 2, Points: 9},
	{Rank: 4, Team: "Team Delta", Played: 5, Won: 2, Lost: 3, Points: 6},
	{Rank: 5, Team: "Team Charlie", Played: 5, Won: 2, Lost: 3, Points: 6},
	{Rank: 6, Team: "Team Echo", Played: 5, Won: 1, Lost: 4, Points: 3},
}

var upcomingFixtures = []Fixture{
	{ID: 1, TeamA: "Team Alpha", TeamB: "Team Bravo", Date: "2024-08-15", Time: "18:00", Court: "Court 1", Status: "Scheduled"},
	{ID: 2, TeamA: "Team Charlie", TeamB: "Team Delta", Date: "2024-08-16", Time: "19:00", Court: "Court 2", Status: "Scheduled"},
	{ID: 3, TeamA: "Your Team", TeamB: "Team Echo", Date: "2024-08-17", Time: "20:00", Court: "Court 1", Status: "Scheduled"},
}

var pastFixtures = []Fixture{
	{ID: 4, TeamA: "Team Alpha", TeamB: "Your Team", Date: "2024-08-08", Time: "18:00", Court: "Court 1", Status: "Completed", ScoreA: score(21), ScoreB: score(15)},
	{ID: 5, TeamA: "Team Bravo", TeamB: "Team Charlie", Date: "2024-08-09", Time: "19:00", Court: "Court 2", Status: "Completed", ScoreA: score(18), ScoreB: score(21)},
}

var umpireMatches = []UmpireMatch{
	{ID: 1, TeamA: "Team Alpha", TeamB: "Team Bravo", Court: "Court 1"},
	{ID: 2, TeamA: "Team Charlie", TeamB: "Team Delta", Court: "Court 2"},
	{ID: 3, TeamA: "Your Team", TeamB: "Team Echo", Court: "Court 1"},
}
