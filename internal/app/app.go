package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/five82/logsift/internal/config"
	"github.com/five82/logsift/internal/logtail"
	"github.com/five82/logsift/internal/query"
	"github.com/five82/logsift/internal/record"
	"github.com/five82/logsift/internal/regexcache"
	"github.com/five82/logsift/internal/script"
	"github.com/five82/logsift/internal/state"
	"github.com/five82/logsift/internal/ui"
)

// initScript runs once after startup ingest when a script directory
// provides it, typically to register record processors.
const initScript = "init"

// Options configure the logsift application.
type Options struct {
	ConfigPath string
	Rule       string // empty picks the rule matching the first file
	TailLines  int    // zero uses tail_lines from the settings
	Follow     bool
	Debug      bool
	Files      []string
	Command    []string  // run and stream its output
	Stdin      io.Reader // streamed when non-nil
}

// Run boots the logsift TUI until the user quits or the context is
// cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closeLog, err := openLog(cfg.LogFile, opts.Debug)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rule, err := pickRule(cfg, opts)
	if err != nil {
		return err
	}
	parsers, err := rule.Parsers()
	if err != nil {
		return fmt.Errorf("rule %s: %w", rule.Name, err)
	}
	logger.Info("starting", "rule", rule.Name, "files", len(opts.Files), "follow", opts.Follow)

	re := regexcache.New(regexcache.DefaultCapacity)
	view := record.NewView(re, parsers...)

	rt, err := newRuntime(cfg, re, view, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	tailLines := opts.TailLines
	if tailLines == 0 {
		tailLines = cfg.TailLines
	}

	// Load files before the UI starts so the first frame is complete
	var sources []<-chan record.Event
	for _, path := range opts.Files {
		offset, count, err := loadFile(ctx, view.All, path, tailLines)
		if err != nil {
			return err
		}
		if !opts.Follow {
			continue
		}
		if offset < 0 {
			logger.Warn("cannot follow compressed file", "path", path)
			continue
		}
		follow := logtail.FollowOptions{Logger: logger}
		sources = append(sources, view.All.IngestFollow(ctx, path, offset, count+1, follow))
	}
	if opts.Stdin != nil {
		sources = append(sources, view.All.IngestStreaming(ctx, opts.Stdin, "stdin"))
	}
	if len(opts.Command) > 0 {
		sources = append(sources, view.All.IngestCommand(ctx, opts.Command))
	}

	if rt.Cache().Has(initScript) {
		_, suspended, err := rt.Execute(ctx, initScript)
		if err != nil {
			logger.Warn("init script failed", "error", err)
		}
		if suspended {
			logger.Warn("init script cannot ask for input")
			rt.Cancel()
		}
	}
	for _, rec := range view.All.Records() {
		if err := rt.ProcessRecord(rec); err != nil {
			logger.Warn("record processor failed", "error", err)
			break
		}
	}
	if err := view.SetFilter(ctx, nil); err != nil {
		return fmt.Errorf("build view: %w", err)
	}

	pump := NewPump(PumpOptions{Logger: logger})
	uiOpts := ui.Options{
		Context:  ctx,
		Settings: cfg,
		Rule:     rule,
		View:     view,
		Runtime:  rt,
		Store:    state.New(),
		Regex:    re,
		Logger:   logger,
		Keypress: pump.Keypress,
		InputTTY: opts.Stdin != nil,
	}
	if len(sources) > 0 {
		events := merge(ctx, sources...)
		uiOpts.Feed = func(deliver func([]record.Event)) {
			if err := pump.Run(ctx, events, deliver); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("record pump stopped", "error", err)
			}
		}
	}
	return ui.Run(uiOpts)
}

// openLog returns a logger writing to path. The terminal belongs to the UI,
// so nothing is logged to stderr.
func openLog(path string, debug bool) (*slog.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { _ = f.Close() }, nil
}

// pickRule returns the rule named on the command line, else the rule for
// the first file.
func pickRule(cfg config.Settings, opts Options) (config.Rule, error) {
	if opts.Rule != "" {
		for _, rule := range cfg.Rules {
			if rule.Name == opts.Rule {
				return rule, nil
			}
		}
		return config.Rule{}, fmt.Errorf("unknown rule %q", opts.Rule)
	}
	name := ""
	if len(opts.Files) > 0 {
		name = opts.Files[0]
	}
	return cfg.RuleFor(name), nil
}

// newRuntime loads script directories and compiles the keybindings.
// Broken files in a script directory are logged; a broken keybinding is an
// error because the key would silently do nothing.
func newRuntime(cfg config.Settings, re query.RegexMatcher, view *record.View, logger *slog.Logger) (*script.Runtime, error) {
	cache := script.NewCache()
	for _, dir := range cfg.ScriptDirs {
		cache.AddDir(dir)
	}
	n, err := cache.LoadDirs()
	if err != nil {
		logger.Warn("script load failed", "loaded", n, "error", err)
	}
	for k, src := range cfg.Keybindings {
		if strings.TrimSpace(src) == "" {
			continue
		}
		if err := cache.Compile(ui.BindingScript(k), src); err != nil {
			return nil, fmt.Errorf("keybinding %q: %w", k, err)
		}
	}
	stats := cache.Stats()
	logger.Debug("scripts ready", "scripts", stats.Scripts, "external", stats.External, "bytecode_bytes", stats.BytecodeBytes)

	return script.New(cache, script.Options{
		Logger:  logger,
		Regex:   re,
		Records: view.Visible,
	}), nil
}

// loadFile ingests path, or only its last tail lines, into store. It
// returns the offset a follower should resume from (-1 when the file cannot
// be followed) and the number of lines read.
func loadFile(ctx context.Context, store *record.Store, path string, tail int) (int64, int, error) {
	before := store.Len()
	if tail <= 0 {
		offset, err := store.IngestFile(ctx, path)
		return offset, store.Len() - before, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, fmt.Errorf("stat log: %w", err)
	}
	lines, err := logtail.Read(path, tail)
	if err != nil {
		return 0, 0, err
	}
	if err := store.IngestParallel(ctx, lines, path); err != nil {
		return 0, 0, err
	}
	offset := info.Size()
	if logtail.Compressed(path) {
		offset = -1
	}
	return offset, len(lines), nil
}
