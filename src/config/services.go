package config

import (
	"log"
	"strings"
	"time"

	"gorm.io/gorm"
)

// TriageConfig holds the question intake and triage settings.
type TriageConfig struct {
	Base
	AIConfig
	ForumChannelID   string
	IntakeChannelIDs []string
	Threshold        float64
	MaxCandidates    int
	PromptTimeout    time.Duration
	Cooldown         time.Duration
	MinLength        int
	AdminRoleID      string
	Enabled          bool
}

// LoadTriageConfig loads triage configuration
func LoadTriageConfig(db *gorm.DB) TriageConfig {
	base := LoadBase(db)
	return TriageConfig{
		Base:             base,
		AIConfig:         LoadAIConfig(),
		ForumChannelID:   GetSetting("forum_channel_id", "FORUM_CHANNEL_ID", ""),
		IntakeChannelIDs: parseCSV(GetSetting("triage_channel_ids", "TRIAGE_CHANNEL_IDS", "")),
		Threshold:        getFloatSetting("similarity_threshold", "SIMILARITY_THRESHOLD", 0.6),
		MaxCandidates:    getIntSetting("triage_max_candidates", "TRIAGE_MAX_CANDIDATES", 5),
		PromptTimeout:    getSecondsSetting("triage_prompt_timeout", "TRIAGE_PROMPT_TIMEOUT", 300*time.Second),
		Cooldown:         getSecondsSetting("triage_cooldown_seconds", "TRIAGE_COOLDOWN_SECONDS", 30*time.Second),
		MinLength:        getIntSetting("triage_min_length", "TRIAGE_MIN_LENGTH", 5),
		AdminRoleID:      GetSetting("triage_admin_role_id", "TRIAGE_ADMIN_ROLE_ID", ""),
		Enabled:          getBoolSetting("enable_triage", "ENABLE_TRIAGE", true),
	}
}

// AcceptsChannel reports whether questions posted in channelID should be triaged.
func (c TriageConfig) AcceptsChannel(channelID string) bool {
	if channelID == "" || channelID == c.ForumChannelID {
		return false
	}
	if len(c.IntakeChannelIDs) == 0 {
		return true
	}
	for _, id := range c.IntakeChannelIDs {
		if id == channelID {
			return true
		}
	}
	return false
}

// LeaderboardConfig holds leaderboard configuration
type LeaderboardConfig struct {
	Base
	ForumChannelID string
	ChannelID      string
	RoleID         string
	Interval       time.Duration
	Location       *time.Location
	AutoStartTag   string
	AutoStart      bool
	Enabled        bool
}

// LoadLeaderboardConfig loads leaderboard configuration
func LoadLeaderboardConfig(db *gorm.DB) LeaderboardConfig {
	base := LoadBase(db)

	tz := GetSetting("leaderboard_timezone", "LEADERBOARD_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown leaderboard_timezone %q, using UTC", tz)
		loc = time.UTC
	}

	return LeaderboardConfig{
		Base:           base,
		ForumChannelID: GetSetting("forum_channel_id", "FORUM_CHANNEL_ID", ""),
		ChannelID:      GetSetting("leaderboard_channel_id", "LEADERBOARD_CHANNEL_ID", ""),
		RoleID:         GetSetting("leaderboard_role_id", "LEADERBOARD_ROLE_ID", ""),
		Interval:       getSecondsSetting("leaderboard_interval_seconds", "LEADERBOARD_INTERVAL_SECONDS", 120*time.Second),
		Location:       loc,
		AutoStartTag:   GetSetting("leaderboard_autostart_tag", "LEADERBOARD_AUTOSTART_TAG", ""),
		AutoStart:      getBoolSetting("leaderboard_autostart", "LEADERBOARD_AUTOSTART", false),
		Enabled:        getBoolSetting("enable_leaderboard", "ENABLE_LEADERBOARD", true),
	}
}

// APIConfig holds admin API configuration
type APIConfig struct {
	Listen      string
	JWTSecret   string
	CORSOrigins []string
	Enabled     bool
}

// LoadAPIConfig loads admin API configuration. The API stays disabled without a
// JWT secret.
func LoadAPIConfig() APIConfig {
	secret := strings.TrimSpace(GetSetting("jwt_secret", "JWT_SECRET", ""))
	return APIConfig{
		Listen:      GetSetting("api_listen", "API_LISTEN", ":8080"),
		JWTSecret:   secret,
		CORSOrigins: parseCSV(GetSetting("api_cors_origins", "API_CORS_ORIGINS", "")),
		Enabled:     getBoolSetting("enable_api", "ENABLE_API", true) && secret != "",
	}
}
