// Package script embeds the Lua runtime that card behavior is written in.
// The server never hardcodes what a card does: triggers name script
// functions, the host invokes them with a snapshot context, and the scripts
// answer with game action lists.
package script

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"

	"github.com/arcanfell/matchserver/internal/model"
)

// Script call failure kinds.
var (
	ErrFunctionNotFound    = errors.New("script function not found")
	ErrFunctionNotCallable = errors.New("script function not callable")
	ErrInvalidGameActions  = errors.New("script returned invalid game actions")
)

// namespaces are the only script subdirectories that get loaded.
var namespaces = []string{"core", "cards", "effects", "triggers"}

// Manager owns one Lua VM per match. The VM is not reentrant: every call
// into it serializes on the manager's mutex.
type Manager struct {
	mu  sync.Mutex
	vm  *lua.LState
	dir string

	core     map[string]*lua.LFunction
	cards    map[string]*lua.LFunction
	effects  map[string]*lua.LFunction
	triggers map[string]*lua.LFunction
}

// NewManager creates the VM over the given scripts directory.
func NewManager(dir string) *Manager {
	return &Manager{
		vm:       lua.NewState(),
		dir:      dir,
		core:     make(map[string]*lua.LFunction),
		cards:    make(map[string]*lua.LFunction),
		effects:  make(map[string]*lua.LFunction),
		triggers: make(map[string]*lua.LFunction),
	}
}

// Close releases the VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vm.Close()
}

// LoadScripts executes every .lua file found in the namespace
// subdirectories, populating the VM globals. A file that fails to load is
// logged and skipped; the rest of the directory still loads.
func (m *Manager) LoadScripts() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("reading scripts directory %s: %w", m.dir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || !isNamespace(entry.Name()) {
			continue
		}
		slog.Debug("loading script directory", "namespace", entry.Name())
		if err := m.loadDir(filepath.Join(m.dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) loadDir(dir string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading script directory %s: %w", dir, err)
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, file.Name())
		if err := m.vm.DoFile(path); err != nil {
			slog.Error("failed to load script", "file", file.Name(), "error", err)
			continue
		}
		slog.Debug("loaded script", "file", file.Name())
	}
	return nil
}

// SetGlobals indexes the loaded functions into namespace maps. Each .txt
// manifest in the scripts directory lists one global function name per line;
// the filename substring (core/card/effect/trigger) selects the namespace.
func (m *Manager) SetGlobals() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("reading scripts directory %s: %w", m.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".txt" {
			continue
		}
		target := m.namespaceFor(entry.Name())
		if target == nil {
			continue
		}
		if err := m.indexManifest(filepath.Join(m.dir, entry.Name()), target); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) namespaceFor(filename string) map[string]*lua.LFunction {
	switch {
	case strings.Contains(filename, "core"):
		return m.core
	case strings.Contains(filename, "card"):
		return m.cards
	case strings.Contains(filename, "effect"):
		return m.effects
	case strings.Contains(filename, "trigger"):
		return m.triggers
	default:
		return nil
	}
}

func (m *Manager) indexManifest(path string, target map[string]*lua.LFunction) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening manifest %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		fn, ok := m.vm.GetGlobal(name).(*lua.LFunction)
		if !ok {
			slog.Error("manifest names an unknown function", "function", name, "manifest", filepath.Base(path))
			continue
		}
		target[name] = fn
		slog.Debug("registered script function", "function", name, "manifest", filepath.Base(path))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return nil
}

// lookup resolves a qualified "<namespace>:<function>" name.
func (m *Manager) lookup(qualified string) *lua.LFunction {
	parts := strings.SplitN(qualified, ":", 2)
	if len(parts) != 2 {
		return nil
	}
	switch parts[0] {
	case "core":
		return m.core[parts[1]]
	case "cards":
		return m.cards[parts[1]]
	case "effects":
		return m.effects[parts[1]]
	case "triggers":
		return m.triggers[parts[1]]
	default:
		return nil
	}
}

// CallFunction invokes a registered script function with the given context
// and decodes its return value as an ordered game action list. Calls on the
// same manager never overlap.
func (m *Manager) CallFunction(qualified string, ctx *Context) ([]model.GameAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn := m.lookup(qualified)
	if fn == nil {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, qualified)
	}

	err := m.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, ctx.toLuaTable(m.vm))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFunctionNotCallable, qualified, err)
	}

	ret := m.vm.Get(-1)
	m.vm.Pop(1)

	return decodeActions(qualified, ret)
}

func decodeActions(qualified string, ret lua.LValue) ([]model.GameAction, error) {
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %s, want table", ErrInvalidGameActions, qualified, ret.Type())
	}

	actions := make([]model.GameAction, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		entry, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("%w: %s element %d is not a table", ErrInvalidGameActions, qualified, i)
		}

		var action model.GameAction
		if err := gluamapper.Map(entry, &action); err != nil {
			return nil, fmt.Errorf("%w: %s element %d: %v", ErrInvalidGameActions, qualified, i, err)
		}
		if err := action.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s element %d: %v", ErrInvalidGameActions, qualified, i, err)
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func isNamespace(name string) bool {
	for _, ns := range namespaces {
		if name == ns {
			return true
		}
	}
	return false
}
