package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// AppSetting is one persisted process-wide tunable, stored as a string
// key/value row. Absence of a row is a valid state and falls back to the
// key's default.
type AppSetting struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	UpdatedAt int64  `json:"updatedAt"`
}

// SettingKey enumerates the recognized tunables. Unknown keys are rejected
// on write.
type SettingKey string

const (
	SettingMaxBoardsPerUser SettingKey = "max_boards_per_user"
	SettingMaxCardsPerBoard SettingKey = "max_cards_per_board"
)

// SettingSpec declares the accepted inclusive range and the hardcoded
// default for one recognized key.
type SettingSpec struct {
	Key     SettingKey `json:"key"`
	Min     int        `json:"min"`
	Max     int        `json:"max"`
	Default int        `json:"default"`
}

var settingSpecs = []SettingSpec{
	{Key: SettingMaxBoardsPerUser, Min: 1, Max: 1000, Default: 5},
	{Key: SettingMaxCardsPerBoard, Min: 1, Max: 10000, Default: 100},
}

// SettingSpecs returns the full allow-list of recognized settings.
func SettingSpecs() []SettingSpec {
	out := make([]SettingSpec, len(settingSpecs))
	copy(out, settingSpecs)
	return out
}

// SpecFor looks up the allow-list entry for key.
func SpecFor(key string) (SettingSpec, bool) {
	for _, s := range settingSpecs {
		if string(s.Key) == key {
			return s, true
		}
	}
	return SettingSpec{}, false
}

// NormalizeSettingValue validates value for key against the allow-list and
// returns the canonical stored form.
func NormalizeSettingValue(key, value string) (string, error) {
	spec, ok := SpecFor(key)
	if !ok {
		return "", ValidationError{Field: "key", Msg: "is not a recognized setting"}
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return "", ValidationError{Field: "value", Msg: "must be an integer"}
	}
	if n < spec.Min || n > spec.Max {
		return "", ValidationError{Field: "value", Msg: fmt.Sprintf("must be between %d and %d", spec.Min, spec.Max)}
	}
	return strconv.Itoa(n), nil
}
