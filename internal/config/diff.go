package config

import (
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hyprpal/clusterdock/internal/layout"
)

// DiffSerialized returns a line diff between two serialized documents, or an
// empty string when they match.
func DiffSerialized(previous, current []byte) string {
	return cmp.Diff(splitLines(previous), splitLines(current))
}

// effective is the part of a Config the running engine consumes. Cosmetic
// edits such as comments or key order never show up here.
type effective struct {
	Variant     string
	Params      layout.Params
	SettleDelay time.Duration
	Telemetry   bool
	LogLevel    string
}

func (c *Config) effective() effective {
	return effective{
		Variant:     c.LayoutVariant().String(),
		Params:      c.Params(),
		SettleDelay: c.SettleDelay(),
		Telemetry:   c.Telemetry.Enabled,
		LogLevel:    strings.ToLower(strings.TrimSpace(c.LogLevel)),
	}
}

// DiffEffective reports how the engine-facing settings changed between two
// configs. It is empty when a reload would not change behaviour.
func DiffEffective(previous, current *Config) string {
	if previous == nil || current == nil {
		return ""
	}
	return cmp.Diff(previous.effective(), current.effective())
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return []string{""}
	}
	return strings.Split(text, "\n")
}
