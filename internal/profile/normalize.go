package profile

import "strings"

// Normalize fills defaults and migrates older shapes. Every store applies it
// on read, so callers never see a partially populated record.
func Normalize(profile UserProfile) UserProfile {
	if strings.TrimSpace(profile.Team) == "" {
		profile.Team = DefaultTeam
	}
	if level, ok := ParseSkillLevel(string(profile.SkillLevel)); ok {
		profile.SkillLevel = level
	} else {
		profile.SkillLevel = DefaultSkillLevel
	}
	normalizedStats := make(map[Sport]SportStats, len(Sports))
	for _, sport := range Sports {
		normalizedStats[sport] = clampStats(profile.Stats[sport])
	}
	profile.Stats = normalizedStats
	profile.MatchesPlayed = nonNegative(profile.MatchesPlayed)
	profile.MatchesWon = nonNegative(profile.MatchesWon)
	profile.DisplayNameLower = strings.ToLower(profile.DisplayName)
	profile.SchemaVersion = CurrentSchemaVersion
	return profile
}

// FromDocument decodes an untyped document, including the legacy layout that
// kept the team under stats.team.
func FromDocument(userID string, document map[string]interface{}) UserProfile {
	profile := UserProfile{
		UserID:        userID,
		DisplayName:   stringField(document, "displayName"),
		Email:         stringField(document, "email"),
		Team:          stringField(document, "team"),
		SkillLevel:    SkillLevel(stringField(document, "skillLevel")),
		MatchesPlayed: intField(document, "matchesPlayed"),
		MatchesWon:    intField(document, "matchesWon"),
		Avatar:        stringField(document, "avatar"),
		Stats:         map[Sport]SportStats{},
	}
	if rawStats, ok := document["stats"].(map[string]interface{}); ok {
		if profile.Team == "" {
			profile.Team = stringField(rawStats, "team")
		}
		for _, sport := range Sports {
			sportDocument, ok := rawStats[string(sport)].(map[string]interface{})
			if !ok {
				continue
			}
			profile.Stats[sport] = SportStats{
				MatchesPlayed: intField(sportDocument, "matchesPlayed"),
				MatchesWon:    intField(sportDocument, "matchesWon"),
			}
		}
	}
	return Normalize(profile)
}

func clampStats(stats SportStats) SportStats {
	stats.MatchesPlayed = nonNegative(stats.MatchesPlayed)
	stats.MatchesWon = nonNegative(stats.MatchesWon)
	if stats.MatchesWon > stats.MatchesPlayed {
		stats.MatchesWon = stats.MatchesPlayed
	}
	return stats
}

func nonNegative(value int) int {
	if value < 0 {
		return 0
	}
	return value
}

func stringField(document map[string]interface{}, key string) string {
	value, _ := document[key].(string)
	return value
}

func intField(document map[string]interface{}, key string) int {
	switch value := document[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	default:
		return 0
	}
}
