package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/hyprpal/clusterdock/internal/layout"
	"github.com/hyprpal/clusterdock/internal/reflow"
	"github.com/hyprpal/clusterdock/internal/util"
)

// Format identifies the encoding of a configuration document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatForPath picks the encoding from the file extension. Anything that is
// not .toml is treated as YAML.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Config is the top-level configuration document.
type Config struct {
	Variant       string     `yaml:"variant" toml:"variant"`
	Geometry      Geometry   `yaml:"geometry" toml:"geometry"`
	SettleDelayMs int        `yaml:"settleDelayMs" toml:"settleDelayMs"`
	LogLevel      string     `yaml:"logLevel" toml:"logLevel"`
	Telemetry     Telemetry  `yaml:"telemetry" toml:"telemetry"`
	Playground    Playground `yaml:"playground" toml:"playground"`
}

// Geometry overrides individual solver constants. Unset fields keep the
// defaults from layout.DefaultParams.
type Geometry struct {
	SnapThreshold       *float64 `yaml:"snapThreshold" toml:"snapThreshold"`
	EdgeInset           *float64 `yaml:"edgeInset" toml:"edgeInset"`
	RightBuffer         *float64 `yaml:"rightBuffer" toml:"rightBuffer"`
	LeftPadding         *float64 `yaml:"leftPadding" toml:"leftPadding"`
	DeadZoneLeftMargin  *float64 `yaml:"deadZoneLeftMargin" toml:"deadZoneLeftMargin"`
	DeadZoneRightMargin *float64 `yaml:"deadZoneRightMargin" toml:"deadZoneRightMargin"`
	MenuFlipDistance    *float64 `yaml:"menuFlipDistance" toml:"menuFlipDistance"`
}

// Telemetry toggles the anonymous path counters.
type Telemetry struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
}

// Playground describes the simulated toolbar driven by the terminal host.
type Playground struct {
	ContainerWidth    float64 `yaml:"containerWidth" toml:"containerWidth"`
	ClusterWidth      float64 `yaml:"clusterWidth" toml:"clusterWidth"`
	ReservedZoneWidth float64 `yaml:"reservedZoneWidth" toml:"reservedZoneWidth"`
	SubControlWidth   float64 `yaml:"subControlWidth" toml:"subControlWidth"`
	Position          float64 `yaml:"position" toml:"position"`
	CellWidthPx       float64 `yaml:"cellWidthPx" toml:"cellWidthPx"`
}

// rawConfig mirrors Config with the deprecated aliases still accepted.
type rawConfig struct {
	Variant       string     `yaml:"variant" toml:"variant"`
	LegacyVariant string     `yaml:"dragVariant" toml:"dragVariant"`
	Geometry      Geometry   `yaml:"geometry" toml:"geometry"`
	SettleDelayMs *int       `yaml:"settleDelayMs" toml:"settleDelayMs"`
	LogLevel      string     `yaml:"logLevel" toml:"logLevel"`
	Telemetry     Telemetry  `yaml:"telemetry" toml:"telemetry"`
	Playground    Playground `yaml:"playground" toml:"playground"`
}

// UnmarshalYAML handles deprecated fields while decoding configuration files.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw rawConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}
	c.fromRaw(raw)
	return nil
}

func (c *Config) fromRaw(raw rawConfig) {
	c.Geometry = raw.Geometry
	c.LogLevel = raw.LogLevel
	c.Telemetry = raw.Telemetry
	c.Playground = raw.Playground

	switch {
	case raw.Variant != "":
		c.Variant = raw.Variant
	case raw.LegacyVariant != "":
		c.Variant = raw.LegacyVariant
	default:
		c.Variant = ""
	}
	if raw.SettleDelayMs != nil {
		c.SettleDelayMs = *raw.SettleDelayMs
	} else {
		c.SettleDelayMs = -1
	}
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{SettleDelayMs: -1}
	cfg.applyDefaults()
	return cfg
}

// Parse decodes a YAML document and applies defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	return ParseFormat(data, FormatYAML)
}

// ParseFormat decodes data in the given format and applies defaults.
func ParseFormat(data []byte, format Format) (*Config, error) {
	var cfg Config
	switch format {
	case FormatTOML:
		var raw rawConfig
		md, err := toml.Decode(string(data), &raw)
		if err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, key := range undecoded {
				keys = append(keys, key.String())
			}
			sort.Strings(keys)
			return nil, fmt.Errorf("decode config: unknown keys %s", strings.Join(keys, ", "))
		}
		cfg.fromRaw(raw)
	case FormatYAML, "":
		cfg.SettleDelayMs = -1
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseFormat(data, FormatForPath(path))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LintFile parses path and returns every lint problem. Decoding failures are
// returned as the error.
func LintFile(path string) ([]LintError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseFormat(data, FormatForPath(path))
	if err != nil {
		return nil, err
	}
	return cfg.Lint(), nil
}

func (c *Config) applyDefaults() {
	if c.Variant == "" {
		c.Variant = layout.Bounded.String()
	}
	if c.SettleDelayMs < 0 {
		c.SettleDelayMs = int(reflow.DefaultSettleDelay / time.Millisecond)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	p := &c.Playground
	if p.ContainerWidth == 0 {
		p.ContainerWidth = 1000
	}
	if p.ClusterWidth == 0 {
		p.ClusterWidth = 200
	}
	if p.ReservedZoneWidth == 0 {
		p.ReservedZoneWidth = 200
	}
	if p.SubControlWidth == 0 {
		p.SubControlWidth = 60
	}
	if p.CellWidthPx == 0 {
		p.CellWidthPx = 8
	}
}

// Params merges the geometry overrides onto the default solver constants.
func (c *Config) Params() layout.Params {
	p := layout.DefaultParams()
	g := c.Geometry
	override := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	override(&p.SnapThreshold, g.SnapThreshold)
	override(&p.EdgeInset, g.EdgeInset)
	override(&p.RightBuffer, g.RightBuffer)
	override(&p.LeftPadding, g.LeftPadding)
	override(&p.DeadZoneLeftMargin, g.DeadZoneLeftMargin)
	override(&p.DeadZoneRightMargin, g.DeadZoneRightMargin)
	override(&p.MenuFlipDistance, g.MenuFlipDistance)
	return p
}

// LayoutVariant returns the parsed variant, falling back to Bounded.
func (c *Config) LayoutVariant() layout.Variant {
	v, err := layout.ParseVariant(c.Variant)
	if err != nil {
		return layout.Bounded
	}
	return v
}

// SettleDelay returns the reflow debounce window.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// PlaygroundMetrics returns the simulated toolbar measurements.
func (c *Config) PlaygroundMetrics() layout.Metrics {
	return layout.Metrics{
		ContainerWidth:    c.Playground.ContainerWidth,
		ClusterWidth:      c.Playground.ClusterWidth,
		ReservedZoneWidth: c.Playground.ReservedZoneWidth,
	}
}

// Validate returns the first lint error, if any.
func (c *Config) Validate() error {
	if errs := c.Lint(); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// LintError describes a configuration problem at a document path.
type LintError struct {
	Path    string
	Message string
}

func (e LintError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Lint reports every problem found in the configuration.
func (c *Config) Lint() []LintError {
	var errs []LintError
	add := func(path, format string, args ...any) {
		errs = append(errs, LintError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if _, err := layout.ParseVariant(c.Variant); err != nil {
		add("variant", "must be bounded, timeline, free or freeMove (got %q)", c.Variant)
	}
	if c.SettleDelayMs < 0 {
		add("settleDelayMs", "cannot be negative")
	}
	if _, ok := util.LookupLogLevel(c.LogLevel); !ok {
		add("logLevel", "must be trace, debug, info, warn or error (got %q)", c.LogLevel)
	}

	g := c.Geometry
	nonNegative := []struct {
		path  string
		value *float64
	}{
		{"geometry.snapThreshold", g.SnapThreshold},
		{"geometry.edgeInset", g.EdgeInset},
		{"geometry.rightBuffer", g.RightBuffer},
		{"geometry.deadZoneLeftMargin", g.DeadZoneLeftMargin},
		{"geometry.deadZoneRightMargin", g.DeadZoneRightMargin},
		{"geometry.menuFlipDistance", g.MenuFlipDistance},
	}
	for _, field := range nonNegative {
		if field.value == nil {
			continue
		}
		if !layout.Finite(*field.value) || *field.value < 0 {
			add(field.path, "must be a finite, non-negative number")
		}
	}
	if g.LeftPadding != nil && !layout.Finite(*g.LeftPadding) {
		add("geometry.leftPadding", "must be finite")
	}
	params := c.Params()
	if params.EdgeInset > params.SnapThreshold {
		add("geometry.edgeInset", "must not exceed snapThreshold (%.0f > %.0f)", params.EdgeInset, params.SnapThreshold)
	}

	p := c.Playground
	if !positive(p.ContainerWidth) {
		add("playground.containerWidth", "must be positive")
	}
	if !positive(p.ClusterWidth) {
		add("playground.clusterWidth", "must be positive")
	}
	if !layout.Finite(p.ReservedZoneWidth) || p.ReservedZoneWidth < 0 {
		add("playground.reservedZoneWidth", "cannot be negative")
	} else if p.ReservedZoneWidth >= p.ContainerWidth {
		add("playground.reservedZoneWidth", "must be narrower than containerWidth")
	}
	if !layout.Finite(p.SubControlWidth) || p.SubControlWidth < 0 {
		add("playground.subControlWidth", "cannot be negative")
	}
	if !positive(p.CellWidthPx) {
		add("playground.cellWidthPx", "must be positive")
	}
	if positive(p.ContainerWidth) && positive(p.ClusterWidth) && p.ClusterWidth+params.RightBuffer > p.ContainerWidth {
		add("playground.clusterWidth", "cluster plus right buffer (%.0f) exceeds containerWidth (%.0f)", p.ClusterWidth+params.RightBuffer, p.ContainerWidth)
	}
	if !layout.Finite(p.Position) {
		add("playground.position", "must be finite")
	}
	return errs
}

func positive(v float64) bool {
	return layout.Finite(v) && v > 0
}
