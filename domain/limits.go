package domain

import (
	"context"
	"strconv"
	"strings"
)

// SettingsReader provides the persisted value for a setting key. An absent
// key is reported as an empty string, not an error.
type SettingsReader interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

// LimitOverrides carries runtime overrides (environment-style configuration)
// that win over any persisted setting. Values are raw strings; anything that
// does not parse as an integer is ignored.
type LimitOverrides struct {
	MaxBoardsPerUser string
	MaxCardsPerBoard string
}

func (o LimitOverrides) forKey(key SettingKey) string {
	switch key {
	case SettingMaxBoardsPerUser:
		return o.MaxBoardsPerUser
	case SettingMaxCardsPerBoard:
		return o.MaxCardsPerBoard
	}
	return ""
}

// Limits resolves effective numeric limits for the recognized setting keys.
// There is no hidden process-wide cache; every resolver instance carries its
// own overrides and settings source.
type Limits struct {
	overrides LimitOverrides
	settings  SettingsReader
}

func NewLimits(overrides LimitOverrides, settings SettingsReader) *Limits {
	return &Limits{overrides: overrides, settings: settings}
}

// Resolve returns the effective limit for key, applying the
// override > stored setting > default precedence. It always returns a
// usable positive integer: malformed or non-positive stored values, and
// settings-store read failures, silently fall through to the default.
func (l *Limits) Resolve(ctx context.Context, key SettingKey) int {
	spec, ok := SpecFor(string(key))
	if !ok {
		return 0
	}
	stored := ""
	if l.settings != nil {
		if v, err := l.settings.GetSetting(ctx, string(key)); err == nil {
			stored = v
		}
	}
	return resolveLimit(spec, l.overrides.forKey(key), stored)
}

// resolveLimit applies the precedence chain for a single key. An override
// that parses as an integer is used unconditionally; a stored value is used
// only when numeric and strictly positive.
func resolveLimit(spec SettingSpec, override, stored string) int {
	if override != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(override)); err == nil {
			return n
		}
	}
	if stored != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(stored)); err == nil && n > 0 {
			return n
		}
	}
	return spec.Default
}
