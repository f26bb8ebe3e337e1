// Package plant holds the difficulty calibration table and the status
// evaluator that turns a sensor reading into a plant status label.
package plant

import "strings"

// DifficultyLevel selects a calibration profile.
type DifficultyLevel string

const (
	Easy   DifficultyLevel = "EASY"
	Medium DifficultyLevel = "MEDIUM"
	Hard   DifficultyLevel = "HARD"
)

// DefaultDifficulty is used when a device has no valid difficulty stored.
const DefaultDifficulty = Medium

// Profile holds the thresholds for one difficulty level.
type Profile struct {
	LowMoisture  float64 `json:"lowMoisture"`
	HighMoisture float64 `json:"highMoisture"`
	LowLight     float64 `json:"lowLight"`
	DailyUVQuota float64 `json:"dailyUvQuota"`
}

// LowLight is 2 for every level. Earlier calibrations used 30/50/100; the
// flattening is kept as-is until the hardware team confirms the units.
var profiles = map[DifficultyLevel]Profile{
	Easy:   {LowMoisture: 0.15, HighMoisture: 0.50, LowLight: 2, DailyUVQuota: 1},
	Medium: {LowMoisture: 0.30, HighMoisture: 0.70, LowLight: 2, DailyUVQuota: 2},
	Hard:   {LowMoisture: 0.50, HighMoisture: 0.85, LowLight: 2, DailyUVQuota: 4},
}

var aliases = map[string]DifficultyLevel{
	"FACIL":   Easy,
	"MEDIO":   Medium,
	"DIFICIL": Hard,
}

// Levels returns every difficulty level in ascending order.
func Levels() []DifficultyLevel {
	return []DifficultyLevel{Easy, Medium, Hard}
}

// Valid reports whether d is one of the known levels.
func (d DifficultyLevel) Valid() bool {
	_, ok := profiles[d]
	return ok
}

// ParseDifficulty validates a difficulty label. Canonical names and the
// FACIL/MEDIO/DIFICIL labels are accepted, case-insensitively.
func ParseDifficulty(s string) (DifficultyLevel, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	if level := DifficultyLevel(key); level.Valid() {
		return level, nil
	}
	if level, ok := aliases[key]; ok {
		return level, nil
	}
	return "", &Error{
		Kind:    UnknownDifficulty,
		Field:   "difficulty",
		Message: "must be one of EASY, MEDIUM, HARD",
	}
}

// ProfileFor returns the thresholds for level. Callers validate with
// ParseDifficulty first; anything unknown gets the default profile.
func ProfileFor(level DifficultyLevel) Profile {
	if p, ok := profiles[level]; ok {
		return p
	}
	return profiles[DefaultDifficulty]
}
