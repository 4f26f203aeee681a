package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/annelo/cmdblock-server/internal/gameloop"
)

// PluginMeta holds metadata for a plugin
type PluginMeta struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Author      string `json:"author" yaml:"author"`
	Description string `json:"description" yaml:"description"`
}

// HookType defines a named event hook
type HookType string

// Common hook types. Block hooks run after the world changed:
// AfterPlaceBlock with (*game.WorldEvent, Actor), AfterRemoveBlock with
// (*game.WorldEvent, Actor, previous block type int32). PlayerJoin and
// PlayerQuit run with (Actor).
const (
	HookAfterPlaceBlock  HookType = "AfterPlaceBlock"
	HookAfterRemoveBlock HookType = "AfterRemoveBlock"
	HookPlayerJoin       HookType = "PlayerJoin"
	HookPlayerQuit       HookType = "PlayerQuit"
	// Plugin load/unload hook types
	HookBeforePluginLoad   HookType = "BeforePluginLoad"
	HookAfterPluginLoad    HookType = "AfterPluginLoad"
	HookBeforePluginUnload HookType = "BeforePluginUnload"
	HookAfterPluginUnload  HookType = "AfterPluginUnload"
)

// HookFunc is the signature for hook handlers. args can be event-specific.
type HookFunc func(args ...interface{})

// CommandFunc is the signature for admin CLI command handlers.
type CommandFunc func(args []string) (string, error)

// CommandRegistration holds a single CLI command registration.
type CommandRegistration struct {
	// Name is the command name.
	Name string
	// Description is a brief help text for the command.
	Description string
	// Handler executes the command logic.
	Handler CommandFunc
}

// BlockRegistration declares a block type added by a plugin.
type BlockRegistration struct {
	// BlockType is the numeric ID for the block.
	BlockType int32
	// Name is a human readable block name.
	Name string
}

// PluginRegistry allows registration of plugins, event handlers, block types and game systems.
type PluginRegistry interface {
	// RegisterPlugin registers a plugin to be enabled by the PluginManager.
	RegisterPlugin(p Plugin)
	// Plugins returns all registered plugins in registration order.
	Plugins() []Plugin
	// RegisterHandler registers a block event handler.
	RegisterHandler(h Handler)
	// Handlers returns all registered block event handlers.
	Handlers() []Handler
	// RegisterBlockType declares a placeable block type.
	RegisterBlockType(blockType int32, name string)
	// BlockTypes returns all block types declared by plugins.
	BlockTypes() []BlockRegistration
	// RegisterGameSystem registers a game loop system to be ticked every tick.
	RegisterGameSystem(sys gameloop.System)
	// GameSystems returns all registered game loop systems.
	GameSystems() []gameloop.System
	// RegisterPluginMeta registers metadata for a plugin.
	RegisterPluginMeta(meta PluginMeta)
	// PluginMetas returns all registered plugin metadata.
	PluginMetas() []PluginMeta
	// RegisterHook registers a hook handler for a given hook type.
	RegisterHook(hook HookType, fn HookFunc)
	// Hooks returns all handlers registered for a hook type.
	Hooks(hook HookType) []HookFunc
	// RegisterCommand registers an admin CLI command.
	RegisterCommand(name, description string, handler CommandFunc)
	// Commands returns all registered admin CLI commands.
	Commands() []CommandRegistration
	// MarkCore marks the boundary between core and plugin registrations.
	MarkCore()
	// ClearPlugins removes all registrations added after MarkCore.
	ClearPlugins()
	// RegisterPluginConfig registers a sample config struct for a plugin.
	RegisterPluginConfig(name string, sample interface{})
	// LoadPluginConfig loads a plugin's config YAML from the given directory into the registry.
	LoadPluginConfig(name, dir string) error
	// PluginConfig returns the loaded config object for a plugin.
	PluginConfig(name string) interface{}
}

// DefaultRegistry is the default implementation of PluginRegistry.
type DefaultRegistry struct {
	plugins     []Plugin
	handlers    []Handler
	blockTypes  []BlockRegistration
	gameSystems []gameloop.System
	pluginMetas []PluginMeta
	commands    []CommandRegistration
	hooks       map[HookType][]HookFunc
	// configSamples maps plugin name to a sample config struct pointer.
	configSamples map[string]interface{}
	// configs maps plugin name to the loaded config object pointer.
	configs map[string]interface{}
	// mu protects all registry data structures for concurrent access.
	mu sync.RWMutex

	// Sizes of each list at the last MarkCore.
	corePluginCount     int
	coreHandlerCount    int
	coreBlockCount      int
	coreSystemCount     int
	coreCommandCount    int
	corePluginMetaCount int
	coreHooks           map[HookType][]HookFunc
}

// NewDefaultRegistry returns a new DefaultRegistry instance.
func NewDefaultRegistry() *DefaultRegistry {
	return &DefaultRegistry{
		hooks:         make(map[HookType][]HookFunc),
		configSamples: make(map[string]interface{}),
		configs:       make(map[string]interface{}),
	}
}

// RegisterPlugin appends a plugin and its metadata to the registry.
func (r *DefaultRegistry) RegisterPlugin(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = append(r.plugins, p)
	r.pluginMetas = append(r.pluginMetas, p.Meta())
}

// Plugins returns all registered plugins.
func (r *DefaultRegistry) Plugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Plugin(nil), r.plugins...)
}

// RegisterHandler appends a block event handler.
func (r *DefaultRegistry) RegisterHandler(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
}

// Handlers returns all registered handlers.
func (r *DefaultRegistry) Handlers() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Handler(nil), r.handlers...)
}

// RegisterBlockType appends a block type declaration.
func (r *DefaultRegistry) RegisterBlockType(blockType int32, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blockTypes = append(r.blockTypes, BlockRegistration{BlockType: blockType, Name: name})
}

// BlockTypes returns all declared block types.
func (r *DefaultRegistry) BlockTypes() []BlockRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]BlockRegistration(nil), r.blockTypes...)
}

// RegisterGameSystem appends a gameloop.System to the registry.
func (r *DefaultRegistry) RegisterGameSystem(sys gameloop.System) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gameSystems = append(r.gameSystems, sys)
}

// RegisterPluginMeta appends plugin metadata to the registry.
func (r *DefaultRegistry) RegisterPluginMeta(meta PluginMeta) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pluginMetas = append(r.pluginMetas, meta)
}

// RegisterHook appends a hook handler for a given hook type.
func (r *DefaultRegistry) RegisterHook(hook HookType, fn HookFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[hook] = append(r.hooks[hook], fn)
}

// RegisterCommand appends a CLI command registration to the registry.
func (r *DefaultRegistry) RegisterCommand(name, description string, handler CommandFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, CommandRegistration{Name: name, Description: description, Handler: handler})
}

// RegisterPluginConfig registers a sample config struct for a plugin in the registry.
func (r *DefaultRegistry) RegisterPluginConfig(name string, sample interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configSamples[name] = sample
	r.configs[name] = sample
}

// LoadPluginConfig loads a plugin's YAML config from dir/name.yaml into the registry.
// Fields absent from the file keep the values of the registered sample.
func (r *DefaultRegistry) LoadPluginConfig(name, dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sample, ok := r.configSamples[name]
	if !ok {
		return nil
	}
	t := reflect.TypeOf(sample)
	if t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config sample for %s must be a pointer to struct", name)
	}
	path := filepath.Join(dir, name+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	newPtr := reflect.New(t.Elem())
	newPtr.Elem().Set(reflect.ValueOf(sample).Elem())
	if err := yaml.Unmarshal(data, newPtr.Interface()); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	r.configs[name] = newPtr.Interface()
	return nil
}

// PluginConfig returns the loaded config object for a plugin, or default sample.
func (r *DefaultRegistry) PluginConfig(name string) interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.configs[name]
}

// GameSystems returns all registered game systems.
func (r *DefaultRegistry) GameSystems() []gameloop.System {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]gameloop.System(nil), r.gameSystems...)
}

// PluginMetas returns all registered plugin metadata.
func (r *DefaultRegistry) PluginMetas() []PluginMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]PluginMeta(nil), r.pluginMetas...)
}

// Hooks returns all registered hook handlers for the given hook type.
func (r *DefaultRegistry) Hooks(hook HookType) []HookFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]HookFunc(nil), r.hooks[hook]...)
}

// Commands returns all registered CLI command registrations.
func (r *DefaultRegistry) Commands() []CommandRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]CommandRegistration(nil), r.commands...)
}

// MarkCore marks the current registry state as the core, so plugin additions can be cleared later.
func (r *DefaultRegistry) MarkCore() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.corePluginCount = len(r.plugins)
	r.coreHandlerCount = len(r.handlers)
	r.coreBlockCount = len(r.blockTypes)
	r.coreSystemCount = len(r.gameSystems)
	r.coreCommandCount = len(r.commands)
	r.corePluginMetaCount = len(r.pluginMetas)
	// Snapshot hooks map
	r.coreHooks = make(map[HookType][]HookFunc, len(r.hooks))
	for k, v := range r.hooks {
		r.coreHooks[k] = append([]HookFunc{}, v...)
	}
}

// ClearPlugins removes all registrations added after the last core mark.
func (r *DefaultRegistry) ClearPlugins() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.corePluginCount <= len(r.plugins) {
		r.plugins = r.plugins[:r.corePluginCount]
	}
	if r.coreHandlerCount <= len(r.handlers) {
		r.handlers = r.handlers[:r.coreHandlerCount]
	}
	if r.coreBlockCount <= len(r.blockTypes) {
		r.blockTypes = r.blockTypes[:r.coreBlockCount]
	}
	if r.coreSystemCount <= len(r.gameSystems) {
		r.gameSystems = r.gameSystems[:r.coreSystemCount]
	}
	if r.coreCommandCount <= len(r.commands) {
		r.commands = r.commands[:r.coreCommandCount]
	}
	if r.corePluginMetaCount <= len(r.pluginMetas) {
		r.pluginMetas = r.pluginMetas[:r.corePluginMetaCount]
	}
	// Restore hooks to core snapshot
	r.hooks = make(map[HookType][]HookFunc, len(r.coreHooks))
	for k, v := range r.coreHooks {
		r.hooks[k] = append([]HookFunc{}, v...)
	}
}
