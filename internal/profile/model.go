// Package profile stores the league-specific per-person record (team, skill,
// match statistics, avatar) keyed by identity id.
package profile

import (
	"errors"
	"strings"
)

// Sport is a discipline tracked in per-sport statistics.
type Sport string

const (
	SportBadminton  Sport = "badminton"
	SportPickleball Sport = "pickleball"
)

// Sports lists every tracked discipline.
var Sports = []Sport{SportBadminton, SportPickleball}

// SkillLevel is the self-declared playing level.
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "Beginner"
	SkillIntermediate SkillLevel = "Intermediate"
	SkillAdvanced     SkillLevel = "Advanced"
)

// SkillLevels lists the accepted skill levels in display order.
var SkillLevels = []SkillLevel{SkillBeginner, SkillIntermediate, SkillAdvanced}

const (
	// DefaultTeam is assigned to newly provisioned profiles.
	DefaultTeam = "Your Team"
	// DefaultSkillLevel is assigned to newly provisioned profiles.
	DefaultSkillLevel = SkillBeginner
	// CurrentSchemaVersion is written by Normalize.
	CurrentSchemaVersion = 2
)

var (
	// ErrNotFound indicates no profile exists for the identity.
	ErrNotFound = errors.New("profile.not_found")
	// ErrEmptyUserID indicates a blank identity id.
	ErrEmptyUserID = errors.New("profile.empty_user_id")
	// ErrInvalidSkillLevel indicates a skill level outside SkillLevels.
	ErrInvalidSkillLevel = errors.New("profile.invalid_skill_level")
	// ErrInvalidTeam indicates an empty or oversized team name.
	ErrInvalidTeam = errors.New("profile.invalid_team")
)

// SportStats counts matches in one sport.
type SportStats struct {
	MatchesPlayed int `json:"matchesPlayed" firestore:"matchesPlayed"`
	MatchesWon    int `json:"matchesWon" firestore:"matchesWon"`
}

// UserProfile is the persisted profile record.
type UserProfile struct {
	UserID           string               `json:"userId" firestore:"userId" gorm:"column:user_id;primaryKey"`
	DisplayName      string               `json:"displayName" firestore:"displayName" gorm:"column:display_name"`
	DisplayNameLower string               `json:"-" firestore:"displayName_lowercase" gorm:"column:display_name_lower;index"`
	Email            string               `json:"email" firestore:"email" gorm:"column:email"`
	Team             string               `json:"team" firestore:"team" gorm:"column:team;not null"`
	SkillLevel       SkillLevel           `json:"skillLevel" firestore:"skillLevel" gorm:"column:skill_level;not null"`
	MatchesPlayed    int                  `json:"matchesPlayed" firestore:"matchesPlayed" gorm:"column:matches_played;not null;default:0"`
	MatchesWon       int                  `json:"matchesWon" firestore:"matchesWon" gorm:"column:matches_won;not null;default:0"`
	Avatar           string               `json:"avatar" firestore:"avatar" gorm:"column:avatar"`
	Stats            map[Sport]SportStats `json:"stats" firestore:"stats" gorm:"column:stats;serializer:json"`
	SchemaVersion    int                  `json:"schemaVersion" firestore:"schemaVersion" gorm:"column:schema_version;not null;default:0"`
}

// TableName binds UserProfile to the user_profiles table.
func (UserProfile) TableName() string {
	return "user_profiles"
}

// Seed is the identity data a profile is provisioned from.
type Seed struct {
	UserID      string
	DisplayName string
	Email       string
	PhotoURL    string
}

// Defaults returns the profile provisioned for a first-time identity.
func Defaults(seed Seed) UserProfile {
	stats := make(map[Sport]SportStats, len(Sports))
	for _, sport := range Sports {
		stats[sport] = SportStats{}
	}
	return UserProfile{
		UserID:           seed.UserID,
		DisplayName:      seed.DisplayName,
		DisplayNameLower: strings.ToLower(seed.DisplayName),
		Email:            seed.Email,
		Team:             DefaultTeam,
		SkillLevel:       DefaultSkillLevel,
		Stats:            stats,
		SchemaVersion:    CurrentSchemaVersion,
	}
}

// DetailsUpdate carries the user-editable fields; nil fields are left untouched.
type DetailsUpdate struct {
	Team       *string     `json:"team"`
	SkillLevel *SkillLevel `json:"skillLevel"`
}

// ParseSkillLevel matches raw case-insensitively against SkillLevels.
func ParseSkillLevel(raw string) (SkillLevel, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, level := range SkillLevels {
		if strings.EqualFold(trimmed, string(level)) {
			return level, true
		}
	}
	return "", false
}

// WinRate returns the percentage of matches won, or zero without matches.
func (stats SportStats) WinRate() int {
	if stats.MatchesPlayed <= 0 {
		return 0
	}
	return stats.MatchesWon * 100 / stats.MatchesPlayed
}
