package plugin

import (
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"os"
	"path/filepath"
	pluginpkg "plugin"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// PluginAPIVersion defines the current plugin API version.
const PluginAPIVersion = "1"

// Metrics for plugin loading
var (
	pluginLoadCount   = expvar.NewInt("plugins_loaded")
	pluginSkipCount   = expvar.NewInt("plugins_skipped")
	pluginErrorCount  = expvar.NewInt("plugins_errors")
	pluginEnableCount = expvar.NewInt("plugins_enabled")
)

// PluginManager loads plugins from shared object files and drives the
// Enable/Disable lifecycle of every plugin in a registry.
type PluginManager struct {
	// Dir is the directory where plugin .so files and <name>.yaml configs are located.
	Dir string

	log *zap.SugaredLogger
	// mu serializes lifecycle calls.
	mu      sync.Mutex
	enabled []Plugin
}

// NewPluginManager creates a PluginManager for a given directory.
func NewPluginManager(dir string, logger *zap.SugaredLogger) *PluginManager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PluginManager{Dir: dir, log: logger}
}

// LoadPlugins loads all plugins in pm.Dir and invokes their Register function.
// A missing directory is not an error: the server simply runs with built-in plugins.
func (pm *PluginManager) LoadPlugins(reg PluginRegistry) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	files, err := os.ReadDir(pm.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		pluginErrorCount.Add(1)
		return fmt.Errorf("cannot read plugin directory %s: %w", pm.Dir, err)
	}
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".so" {
			continue
		}
		base := strings.TrimSuffix(f.Name(), ".so")
		if !pm.checkMeta(reg, base) {
			pluginSkipCount.Add(1)
			continue
		}
		pm.open(reg, filepath.Join(pm.Dir, f.Name()))
	}
	return nil
}

// checkMeta reads the optional <base>.json or <base>.yaml metadata next to the
// .so file and enforces the API version.
func (pm *PluginManager) checkMeta(reg PluginRegistry, base string) bool {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		metaPath := filepath.Join(pm.Dir, base+ext)
		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}
		var meta PluginMeta
		if ext == ".json" {
			err = json.Unmarshal(data, &meta)
		} else {
			err = yaml.Unmarshal(data, &meta)
		}
		if err != nil {
			pm.log.Warnw("failed to parse plugin metadata", "path", metaPath, "error", err)
			continue
		}
		if meta.Version != PluginAPIVersion {
			pm.log.Warnw("skipping plugin: version mismatch",
				"plugin", meta.Name, "got", meta.Version, "expected", PluginAPIVersion)
			return false
		}
		reg.RegisterPluginMeta(meta)
		return true
	}
	return true
}

func (pm *PluginManager) open(reg PluginRegistry, pluginPath string) {
	for _, h := range reg.Hooks(HookBeforePluginLoad) {
		h(pluginPath)
	}
	p, err := pluginpkg.Open(pluginPath)
	if err != nil {
		pluginErrorCount.Add(1)
		pm.log.Errorw("failed to open plugin", "path", pluginPath, "error", err)
		return
	}
	sym, err := p.Lookup("Register")
	if err != nil {
		pluginErrorCount.Add(1)
		pm.log.Warnw("no Register symbol", "path", pluginPath, "error", err)
		return
	}
	registerFunc, ok := sym.(func(PluginRegistry))
	if !ok {
		pluginErrorCount.Add(1)
		pm.log.Warnw("invalid Register signature", "path", pluginPath)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			pluginErrorCount.Add(1)
			pm.log.Errorw("panic in plugin Register", "path", pluginPath, "panic", r)
		}
	}()
	registerFunc(reg)
	base := strings.TrimSuffix(filepath.Base(pluginPath), ".so")
	if err := reg.LoadPluginConfig(base, pm.Dir); err != nil {
		pluginErrorCount.Add(1)
		pm.log.Warnw("failed to load plugin config", "plugin", base, "error", err)
	}
	pluginLoadCount.Add(1)
	for _, h := range reg.Hooks(HookAfterPluginLoad) {
		h(pluginPath)
	}
}

// EnablePlugins loads the config of every registered plugin and enables it.
// A plugin that fails to enable is skipped; the others are still enabled.
func (pm *PluginManager) EnablePlugins(reg PluginRegistry, api API) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if api.Registry == nil {
		api.Registry = reg
	}
	if api.Logger == nil {
		api.Logger = pm.log
	}
	var errs []error
	for _, p := range reg.Plugins() {
		meta := p.Meta()
		if c, ok := p.(Configurable); ok {
			reg.RegisterPluginConfig(meta.Name, c.DefaultConfig())
			if err := reg.LoadPluginConfig(meta.Name, pm.Dir); err != nil {
				pluginErrorCount.Add(1)
				errs = append(errs, fmt.Errorf("plugin %s: %w", meta.Name, err))
				continue
			}
		}
		pluginAPI := api
		pluginAPI.Logger = api.Logger.With("plugin", meta.Name)
		if err := enableSafely(p, pluginAPI); err != nil {
			pluginErrorCount.Add(1)
			errs = append(errs, fmt.Errorf("plugin %s: %w", meta.Name, err))
			continue
		}
		pm.enabled = append(pm.enabled, p)
		pluginEnableCount.Add(1)
		pm.log.Infow("plugin enabled", "plugin", meta.Name, "version", meta.Version)
	}
	return errors.Join(errs...)
}

func enableSafely(p Plugin, api API) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in Enable: %v", r)
		}
	}()
	return p.Enable(api)
}

// DisablePlugins disables enabled plugins in reverse order and runs the unload hooks.
func (pm *PluginManager) DisablePlugins(reg PluginRegistry) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.UnloadPlugins(reg)
	var errs []error
	for i := len(pm.enabled) - 1; i >= 0; i-- {
		p := pm.enabled[i]
		if err := p.Disable(); err != nil {
			errs = append(errs, fmt.Errorf("plugin %s: %w", p.Meta().Name, err))
			continue
		}
		pm.log.Infow("plugin disabled", "plugin", p.Meta().Name)
	}
	pm.enabled = nil
	return errors.Join(errs...)
}

// Enabled returns the currently enabled plugins.
func (pm *PluginManager) Enabled() []Plugin {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return append([]Plugin(nil), pm.enabled...)
}

// UnloadPlugins triggers unload hooks for all registered plugin metadata.
func (pm *PluginManager) UnloadPlugins(reg PluginRegistry) {
	metas := reg.PluginMetas()
	for _, meta := range metas {
		for _, h := range reg.Hooks(HookBeforePluginUnload) {
			h(meta)
		}
	}
	for _, meta := range metas {
		for _, h := range reg.Hooks(HookAfterPluginUnload) {
			h(meta)
		}
	}
}

// ReloadPlugins disables every plugin, drops non-core registrations and then
// loads and enables plugins anew.
func (pm *PluginManager) ReloadPlugins(reg PluginRegistry, api API) error {
	disableErr := pm.DisablePlugins(reg)
	reg.ClearPlugins()
	if err := pm.LoadPlugins(reg); err != nil {
		return errors.Join(disableErr, err)
	}
	return errors.Join(disableErr, pm.EnablePlugins(reg, api))
}
