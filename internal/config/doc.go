// Package config loads logsift settings.
//
// # Overview
//
// Settings control where logsift writes its own log, which directories hold
// Lua scripts, how many lines to read from the end of a file, UI colours,
// per-file parsing rules and keybindings.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/logsift/settings.toml
//  3. If that file is missing, try settings.yaml and settings.yml in the
//     same directory
//  4. If no file exists, return Defaults
//
// Missing files are not an error. Files ending in .yaml or .yml are decoded
// with gopkg.in/yaml.v3; everything else is TOML.
//
// # TOML Format
//
//	log_file = "~/.local/state/logsift/logsift.log"
//	script_dirs = ["~/.config/logsift/scripts"]
//	tail_lines = 1000
//
//	[colors]
//	highlight = "black yellow"
//
//	[keybindings]
//	o = "exec('xdg-open ' .. escape_shell(current.url))"
//
//	[[rules]]
//	name = "nginx"
//	file_patterns = ["access*.log"]
//	extractors = ["pattern <ip> - - [<_>] \"<method> <path> <_>\" <status> <>"]
//
//	  [[rules.filters]]
//	  name = "server errors"
//	  expression = "status >= 500"
//	  highlight = "white red"
//
// Colours are pairs of "foreground background" names from white, red,
// green, blue, yellow, cyan, magenta and black. Keybindings are merged over
// DefaultKeybindings, so a file only lists the keys it changes. Rules
// replace the built-in default rule when present; RuleFor falls back to a
// rule named "default".
//
// # Validation
//
// Load rejects unknown colours, rules without a name, malformed file
// patterns, extractor specs that record.ParseLineParser cannot build and
// unknown column alignments. Errors are wrapped with "parse config".
//
// # Path Expansion
//
// The settings path, log_file and script_dirs accept a leading ~ and are
// returned as absolute paths.
package config
