package config

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/five82/logsift/internal/record"
)

// Settings is the parsed logsift configuration.
type Settings struct {
	LogFile     string
	ScriptDirs  []string
	TailLines   int
	Colors      Colors
	Rules       []Rule
	Keybindings map[string]string
}

// Colors are the named UI colour pairs.
type Colors struct {
	Normal    ColorPair
	Highlight ColorPair
	Mark      ColorPair
	Details   ColorPair
	Warning   ColorPair
}

// ColorPair is a foreground and background colour name.
type ColorPair struct {
	FG string
	BG string
}

// Rule configures how files matching FilePatterns are parsed and shown.
type Rule struct {
	Name         string
	FilePatterns []string
	Extractors   []string
	Filters      []Filter
	Columns      []Column
}

// Filter is a named query highlighted in the record list.
type Filter struct {
	Name       string
	Expression string
	Highlight  ColorPair
	Gutter     string
}

// Column is one column of the record list.
type Column struct {
	Name  string
	Width int
	Align string // left, right or center
}

const (
	defaultConfigPath = "~/.config/logsift/settings.toml"
	defaultLogFile    = "~/.local/state/logsift/logsift.log"
	defaultScriptDir  = "~/.config/logsift/scripts"

	// DefaultRule names the rule used when no pattern matches.
	DefaultRule = "default"
)

var colorNames = map[string]bool{
	"white": true, "red": true, "green": true, "blue": true,
	"yellow": true, "cyan": true, "magenta": true, "black": true,
}

// DefaultKeybindings maps keys to the Lua run when they are pressed.
var DefaultKeybindings = map[string]string{
	"q":      "quit()",
	"j":      "vmove(1)",
	"down":   "vmove(1)",
	"k":      "vmove(-1)",
	"up":     "vmove(-1)",
	"pgdown": "vmove(app.height)",
	"pgup":   "vmove(-app.height)",
	"home":   "move_top()",
	"end":    "move_bottom()",
	"G":      "move_bottom()",
	"left":   "hmove(-1)",
	"right":  "hmove(1)",
	"n":      "search_next()",
	"N":      "search_prev()",
	"/":      "mode('search')",
	"|":      "mode('filter')",
	":":      "mode('command')",
	"m":      "toggle_mark()",
	"M":      "toggle_mark('red')",
	"ctrl+n": "move_to_next_mark()",
	"ctrl+p": "move_to_prev_mark()",
	"enter":  "toggle_details()",
	"ctrl+l": "refresh_screen()",
	"ctrl+r": "mode('lua_repl')",
	"g": `local line = ask("Go to line:")
local n = tonumber(line)
if n then
	vgoto(n - 1)
else
	warning("Invalid line number: " .. line)
end`,
}

// Defaults returns the settings used when no configuration file exists.
func Defaults() Settings {
	return Settings{
		LogFile:    mustExpand(defaultLogFile),
		ScriptDirs: []string{mustExpand(defaultScriptDir)},
		Colors: Colors{
			Normal:    ColorPair{FG: "white", BG: "black"},
			Highlight: ColorPair{FG: "black", BG: "yellow"},
			Mark:      ColorPair{FG: "black", BG: "yellow"},
			Details:   ColorPair{FG: "white", BG: "blue"},
			Warning:   ColorPair{FG: "white", BG: "red"},
		},
		Rules: []Rule{{
			Name:       DefaultRule,
			Extractors: []string{"logfmt", "autodatetime"},
			Columns: []Column{
				{Name: record.FieldLineNumber, Width: 6, Align: "right"},
				{Name: record.FieldTimestamp, Width: 20, Align: "left"},
			},
		}},
		Keybindings: maps.Clone(DefaultKeybindings),
	}
}

type rawSettings struct {
	LogFile     string            `toml:"log_file" yaml:"log_file"`
	ScriptDirs  []string          `toml:"script_dirs" yaml:"script_dirs"`
	TailLines   int               `toml:"tail_lines" yaml:"tail_lines"`
	Colors      map[string]string `toml:"colors" yaml:"colors"`
	Rules       []rawRule         `toml:"rules" yaml:"rules"`
	Keybindings map[string]string `toml:"keybindings" yaml:"keybindings"`
}

type rawRule struct {
	Name         string      `toml:"name" yaml:"name"`
	FilePatterns []string    `toml:"file_patterns" yaml:"file_patterns"`
	Extractors   []string    `toml:"extractors" yaml:"extractors"`
	Filters      []rawFilter `toml:"filters" yaml:"filters"`
	Columns      []rawColumn `toml:"columns" yaml:"columns"`
}

type rawFilter struct {
	Name       string `toml:"name" yaml:"name"`
	Expression string `toml:"expression" yaml:"expression"`
	Highlight  string `toml:"highlight" yaml:"highlight"`
	Gutter     string `toml:"gutter" yaml:"gutter"`
}

type rawColumn struct {
	Name  string `toml:"name" yaml:"name"`
	Width int    `toml:"width" yaml:"width"`
	Align string `toml:"align" yaml:"align"`
}

// Load reads the settings at path, or the default location when path is
// empty. A missing file yields Defaults. Files ending in .yaml or .yml are
// decoded as YAML, everything else as TOML.
func Load(path string) (Settings, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Settings{}, err
	}

	bytes, err := readFile(resolved)
	if errors.Is(err, os.ErrNotExist) && strings.TrimSpace(path) == "" {
		resolved, bytes, err = legacyYAML(resolved)
	}
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, err
	}

	var raw rawSettings
	switch strings.ToLower(filepath.Ext(resolved)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(bytes, &raw); err != nil {
			return Settings{}, fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := toml.Unmarshal(bytes, &raw); err != nil {
			return Settings{}, fmt.Errorf("parse config: %w", err)
		}
	}
	return raw.settings()
}

func readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return bytes, nil
}

// legacyYAML looks for settings.yaml or settings.yml next to the default
// TOML file.
func legacyYAML(tomlPath string) (string, []byte, error) {
	dir := filepath.Dir(tomlPath)
	for _, name := range []string{"settings.yaml", "settings.yml"} {
		path := filepath.Join(dir, name)
		bytes, err := readFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		return path, bytes, err
	}
	return tomlPath, nil, os.ErrNotExist
}

func (raw rawSettings) settings() (Settings, error) {
	cfg := Defaults()

	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}
	if len(raw.ScriptDirs) > 0 {
		cfg.ScriptDirs = cfg.ScriptDirs[:0]
		for _, dir := range raw.ScriptDirs {
			if dir = strings.TrimSpace(dir); dir != "" {
				cfg.ScriptDirs = append(cfg.ScriptDirs, mustExpand(dir))
			}
		}
	}
	if raw.TailLines < 0 {
		return Settings{}, fmt.Errorf("parse config: tail_lines must not be negative")
	}
	cfg.TailLines = raw.TailLines

	for name, value := range raw.Colors {
		pair, err := ParseColorPair(value)
		if err != nil {
			return Settings{}, fmt.Errorf("parse config: colors.%s: %w", name, err)
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "normal":
			cfg.Colors.Normal = pair
		case "highlight":
			cfg.Colors.Highlight = pair
		case "mark":
			cfg.Colors.Mark = pair
		case "details":
			cfg.Colors.Details = pair
		case "warning":
			cfg.Colors.Warning = pair
		default:
			return Settings{}, fmt.Errorf("parse config: unknown colour %q", name)
		}
	}

	if len(raw.Rules) > 0 {
		cfg.Rules = cfg.Rules[:0]
		for i, rr := range raw.Rules {
			rule, err := rr.rule()
			if err != nil {
				return Settings{}, fmt.Errorf("parse config: rules[%d]: %w", i, err)
			}
			cfg.Rules = append(cfg.Rules, rule)
		}
	}

	for key, src := range raw.Keybindings {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		cfg.Keybindings[key] = src
	}
	return cfg, nil
}

func (rr rawRule) rule() (Rule, error) {
	rule := Rule{
		Name:         strings.TrimSpace(rr.Name),
		FilePatterns: rr.FilePatterns,
		Extractors:   rr.Extractors,
	}
	if rule.Name == "" {
		return Rule{}, fmt.Errorf("name is required")
	}
	for _, pattern := range rule.FilePatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return Rule{}, fmt.Errorf("file pattern %q: %w", pattern, err)
		}
	}
	if _, err := record.ParseLineParsers(rule.Extractors); err != nil {
		return Rule{}, err
	}
	for _, rf := range rr.Filters {
		f := Filter{Name: rf.Name, Expression: rf.Expression, Gutter: strings.TrimSpace(rf.Gutter)}
		if rf.Highlight != "" {
			pair, err := ParseColorPair(rf.Highlight)
			if err != nil {
				return Rule{}, fmt.Errorf("filter %q: %w", rf.Name, err)
			}
			f.Highlight = pair
		}
		if f.Gutter != "" && !colorNames[strings.ToLower(f.Gutter)] {
			return Rule{}, fmt.Errorf("filter %q: invalid gutter colour %q", rf.Name, f.Gutter)
		}
		rule.Filters = append(rule.Filters, f)
	}
	for _, rc := range rr.Columns {
		align := strings.ToLower(strings.TrimSpace(rc.Align))
		switch align {
		case "":
			align = "left"
		case "left", "right", "center":
		default:
			return Rule{}, fmt.Errorf("column %q: invalid alignment %q", rc.Name, rc.Align)
		}
		rule.Columns = append(rule.Columns, Column{Name: rc.Name, Width: rc.Width, Align: align})
	}
	return rule, nil
}

// ParseColorPair parses "fg bg", for example "white red". A single colour
// sets only the foreground.
func ParseColorPair(s string) (ColorPair, error) {
	parts := strings.Fields(strings.ToLower(s))
	if len(parts) == 0 || len(parts) > 2 {
		return ColorPair{}, fmt.Errorf("invalid colour pair %q", s)
	}
	for _, p := range parts {
		if !colorNames[p] {
			return ColorPair{}, fmt.Errorf("invalid colour %q", p)
		}
	}
	pair := ColorPair{FG: parts[0]}
	if len(parts) == 2 {
		pair.BG = parts[1]
	}
	return pair, nil
}

// RuleFor returns the first rule with a file pattern matching filename,
// comparing both the full name and its base name. Without a match it
// returns the rule named "default", or an empty default rule.
func (s Settings) RuleFor(filename string) Rule {
	base := filepath.Base(filename)
	for _, rule := range s.Rules {
		for _, pattern := range rule.FilePatterns {
			if ok, _ := filepath.Match(pattern, filename); ok {
				return rule
			}
			if ok, _ := filepath.Match(pattern, base); ok {
				return rule
			}
		}
	}
	return s.Rule(DefaultRule)
}

// Rule returns the rule called name, or an empty rule with that name.
func (s Settings) Rule(name string) Rule {
	for _, rule := range s.Rules {
		if rule.Name == name {
			return rule
		}
	}
	return Rule{Name: name}
}

// Parsers builds the rule's line parsers.
func (r Rule) Parsers() ([]record.LineParser, error) {
	return record.ParseLineParsers(r.Extractors)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
