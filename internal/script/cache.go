package script

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// Cache holds compiled scripts by name. It is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	scripts map[string]*compiled
	dirs    []string
}

type compiled struct {
	source string
	proto  *lua.FunctionProto
	path   string
	mtime  time.Time
}

// Stats summarizes the cache contents.
type Stats struct {
	Scripts       int
	BytecodeBytes int
	External      int // scripts loaded from files
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{scripts: make(map[string]*compiled)}
}

func compileSource(name, source string) (*lua.FunctionProto, error) {
	chunk, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		return nil, newCompileError(name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, newCompileError(name, err)
	}
	return proto, nil
}

// Compile compiles source and stores it under name, replacing any previous
// script of that name. On failure the cache is left unchanged.
func (c *Cache) Compile(name, source string) error {
	proto, err := compileSource(name, source)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.scripts[name] = &compiled{source: source, proto: proto}
	c.mu.Unlock()
	return nil
}

// CompileFile compiles the script at path and remembers the file's
// modification time so NeedsReload can detect edits.
func (c *Cache) CompileFile(name, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat script: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	proto, err := compileSource(name, string(data))
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.scripts[name] = &compiled{source: string(data), proto: proto, path: path, mtime: info.ModTime()}
	c.mu.Unlock()
	return nil
}

// NeedsReload reports whether the file behind a file-backed script has a
// different modification time than when it was compiled. Scripts compiled
// from strings never need reloading.
func (c *Cache) NeedsReload(name string) bool {
	c.mu.RLock()
	s, ok := c.scripts[name]
	c.mu.RUnlock()
	if !ok || s.path == "" {
		return false
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return false
	}
	return !info.ModTime().Equal(s.mtime)
}

// ReloadChanged recompiles every stale file-backed script and returns the
// names that were reloaded. A script that no longer compiles keeps its
// previous version; the first such error is returned after all scripts
// have been tried.
func (c *Cache) ReloadChanged() ([]string, error) {
	c.mu.RLock()
	stale := make(map[string]string)
	for name, s := range c.scripts {
		if s.path != "" {
			stale[name] = s.path
		}
	}
	c.mu.RUnlock()

	var (
		reloaded []string
		firstErr error
	)
	for _, name := range sortedKeys(stale) {
		if !c.NeedsReload(name) {
			continue
		}
		if err := c.CompileFile(name, stale[name]); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		reloaded = append(reloaded, name)
	}
	return reloaded, firstErr
}

// AddDir registers a directory of *.lua scripts for LoadDirs.
func (c *Cache) AddDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.dirs {
		if d == dir {
			return
		}
	}
	c.dirs = append(c.dirs, dir)
}

// LoadDirs compiles every *.lua file in the registered directories. Each
// script is named after its file without the extension. Missing
// directories are skipped. It returns the number of scripts loaded and the
// first error encountered.
func (c *Cache) LoadDirs() (int, error) {
	c.mu.RLock()
	dirs := append([]string(nil), c.dirs...)
	c.mu.RUnlock()

	var (
		loaded   int
		firstErr error
	)
	for _, dir := range dirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*.lua"))
		if err != nil {
			return loaded, fmt.Errorf("list scripts: %w", err)
		}
		sort.Strings(matches)
		for _, path := range matches {
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			if err := c.CompileFile(name, path); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			loaded++
		}
	}
	return loaded, firstErr
}

// Source returns the source text of a cached script.
func (c *Cache) Source(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scripts[name]
	if !ok {
		return "", false
	}
	return s.source, true
}

func (c *Cache) proto(name string) (*lua.FunctionProto, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scripts[name]
	if !ok {
		return nil, false
	}
	return s.proto, true
}

// Has reports whether name is cached.
func (c *Cache) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.scripts[name]
	return ok
}

// Remove drops a script.
func (c *Cache) Remove(name string) {
	c.mu.Lock()
	delete(c.scripts, name)
	c.mu.Unlock()
}

// Clear drops every script. Registered directories are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.scripts = make(map[string]*compiled)
	c.mu.Unlock()
}

// Names returns the cached script names in sorted order.
func (c *Cache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.scripts)
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var st Stats
	for _, s := range c.scripts {
		st.Scripts++
		st.BytecodeBytes += protoSize(s.proto)
		if s.path != "" {
			st.External++
		}
	}
	return st
}

// Complete returns script names that fuzzy-match input, best match first.
// Names starting with "key:" are bindings and are not offered.
func (c *Cache) Complete(input string) []string {
	var names []string
	for _, name := range c.Names() {
		if !strings.HasPrefix(name, "key:") {
			names = append(names, name)
		}
	}
	if input == "" {
		return names
	}
	matches := fuzzy.Find(input, names)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Str
	}
	return out
}

func protoSize(p *lua.FunctionProto) int {
	if p == nil {
		return 0
	}
	n := len(p.Code) * 4
	for _, child := range p.FunctionPrototypes {
		n += protoSize(child)
	}
	return n
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
