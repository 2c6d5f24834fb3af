package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/stake-plus/forum-triage/src/data"
)

// Base contains common configuration fields
type Base struct {
	Token    string
	GuildID  string
	MySQLDSN string
	RedisURL string
}

// LoadEnvFiles loads .env style files into the process environment. Missing
// files are ignored and existing variables are never overridden.
func LoadEnvFiles(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			log.Printf("config: load %s: %v", p, err)
		}
	}
}

// LoadBase loads common configuration (discord token, guild ID, MySQL DSN). db
// may be nil, in which case only the environment is consulted.
func LoadBase(db *gorm.DB) Base {
	if db != nil {
		if err := data.LoadSettings(db); err != nil {
			log.Printf("config: load settings: %v (using environment)", err)
		}
	}

	dsn, _ := data.GetMySQLDSN()
	return Base{
		Token:    GetSetting("discord_token", "DISCORD_TOKEN", ""),
		GuildID:  GetSetting("guild_id", "GUILD_ID", ""),
		MySQLDSN: dsn,
		RedisURL: GetSetting("redis_url", "REDIS_URL", ""),
	}
}

// GetSetting retrieves a setting with env fallback
func GetSetting(name, envKey, defaultValue string) string {
	val := data.GetSetting(name)
	if val == "" {
		val = os.Getenv(envKey)
	}
	if val == "" {
		val = defaultValue
	}
	return val
}

func getBoolSetting(name, envKey string, defaultValue bool) bool {
	raw := strings.ToLower(strings.TrimSpace(GetSetting(name, envKey, "")))
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getIntSetting(name, envKey string, defaultValue int) int {
	raw := strings.TrimSpace(GetSetting(name, envKey, ""))
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: %s=%q is not an integer, using %d", name, raw, defaultValue)
		return defaultValue
	}
	return v
}

func getFloatSetting(name, envKey string, defaultValue float64) float64 {
	raw := strings.TrimSpace(GetSetting(name, envKey, ""))
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("config: %s=%q is not a number, using %g", name, raw, defaultValue)
		return defaultValue
	}
	return v
}

func getSecondsSetting(name, envKey string, defaultValue time.Duration) time.Duration {
	secs := getIntSetting(name, envKey, 0)
	if secs <= 0 {
		return defaultValue
	}
	return time.Duration(secs) * time.Second
}

func parseCSV(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == ' '
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
