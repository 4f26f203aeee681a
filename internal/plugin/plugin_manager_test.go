package plugin_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annelo/cmdblock-server/internal/plugin"
)

type fakeConfig struct {
	Greeting string `yaml:"greeting"`
	Value    int    `yaml:"value"`
}

type fakePlugin struct {
	name       string
	enableErr  error
	panics     bool
	configured bool

	enabled  int
	disabled int
	api      plugin.API
	log      *[]string
}

func (p *fakePlugin) Meta() plugin.PluginMeta {
	return plugin.PluginMeta{Name: p.name, Version: plugin.PluginAPIVersion}
}

func (p *fakePlugin) Enable(api plugin.API) error {
	if p.panics {
		panic("boom")
	}
	if p.enableErr != nil {
		return p.enableErr
	}
	p.enabled++
	p.api = api
	if p.log != nil {
		*p.log = append(*p.log, "enable "+p.name)
	}
	return nil
}

func (p *fakePlugin) Disable() error {
	p.disabled++
	if p.log != nil {
		*p.log = append(*p.log, "disable "+p.name)
	}
	return nil
}

type configuredPlugin struct {
	fakePlugin
}

func (p *configuredPlugin) DefaultConfig() interface{} {
	return &fakeConfig{Greeting: "hi", Value: 1}
}

func TestPluginManager_UnloadPlugins_CallsHooks(t *testing.T) {
	reg := plugin.NewDefaultRegistry()
	meta1 := plugin.PluginMeta{Name: "p1", Version: plugin.PluginAPIVersion}
	meta2 := plugin.PluginMeta{Name: "p2", Version: plugin.PluginAPIVersion}
	reg.RegisterPluginMeta(meta1)
	reg.RegisterPluginMeta(meta2)

	calledBefore := []string{}
	calledAfter := []string{}
	reg.RegisterHook(plugin.HookBeforePluginUnload, func(args ...interface{}) {
		if m, ok := args[0].(plugin.PluginMeta); ok {
			calledBefore = append(calledBefore, m.Name)
		}
	})
	reg.RegisterHook(plugin.HookAfterPluginUnload, func(args ...interface{}) {
		if m, ok := args[0].(plugin.PluginMeta); ok {
			calledAfter = append(calledAfter, m.Name)
		}
	})

	pm := plugin.NewPluginManager("", nil)
	pm.UnloadPlugins(reg)

	assert.ElementsMatch(t, []string{"p1", "p2"}, calledBefore, "expected before unload hooks for all plugins")
	assert.ElementsMatch(t, []string{"p1", "p2"}, calledAfter, "expected after unload hooks for all plugins")
}

func TestPluginManager_LoadPlugins_MissingDirIsEmpty(t *testing.T) {
	pm := plugin.NewPluginManager("/nonexistent_directory_for_tests", nil)
	assert.NoError(t, pm.LoadPlugins(plugin.NewDefaultRegistry()))
}

func TestPluginManager_LoadPlugins_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	pm := plugin.NewPluginManager(file, nil)
	assert.Error(t, pm.LoadPlugins(plugin.NewDefaultRegistry()))
}

func TestPluginManager_LoadPlugins_SkipsVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.so"), []byte("not a plugin"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.yaml"), []byte("name: old\nversion: \"0\"\n"), 0644))

	reg := plugin.NewDefaultRegistry()
	opened := false
	reg.RegisterHook(plugin.HookBeforePluginLoad, func(...interface{}) { opened = true })

	pm := plugin.NewPluginManager(dir, nil)
	require.NoError(t, pm.LoadPlugins(reg))
	assert.False(t, opened, "mismatched plugins are never opened")
	assert.Empty(t, reg.PluginMetas())
}

// Test concurrent LoadPlugins calls to ensure no data races and no deadlocks
func TestPluginManager_ConcurrentLoad(t *testing.T) {
	pm := plugin.NewPluginManager(t.TempDir(), nil)
	reg := plugin.NewDefaultRegistry()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = pm.LoadPlugins(reg)
	}()
	go func() {
		defer wg.Done()
		_ = pm.LoadPlugins(reg)
	}()
	wg.Wait()
}

func TestPluginManager_EnableAndDisableOrder(t *testing.T) {
	var log []string
	reg := plugin.NewDefaultRegistry()
	a := &fakePlugin{name: "a", log: &log}
	b := &fakePlugin{name: "b", log: &log}
	reg.RegisterPlugin(a)
	reg.RegisterPlugin(b)

	pm := plugin.NewPluginManager(t.TempDir(), nil)
	require.NoError(t, pm.EnablePlugins(reg, plugin.API{}))
	assert.Len(t, pm.Enabled(), 2)
	assert.Equal(t, reg, a.api.Registry, "registry is filled in when missing")
	assert.NotNil(t, a.api.Logger)

	require.NoError(t, pm.DisablePlugins(reg))
	assert.Equal(t, []string{"enable a", "enable b", "disable b", "disable a"}, log)
	assert.Empty(t, pm.Enabled())
}

func TestPluginManager_EnableFailuresAreIsolated(t *testing.T) {
	reg := plugin.NewDefaultRegistry()
	failing := &fakePlugin{name: "failing", enableErr: errors.New("nope")}
	panicking := &fakePlugin{name: "panicking", panics: true}
	good := &fakePlugin{name: "good"}
	reg.RegisterPlugin(failing)
	reg.RegisterPlugin(panicking)
	reg.RegisterPlugin(good)

	pm := plugin.NewPluginManager(t.TempDir(), nil)
	err := pm.EnablePlugins(reg, plugin.API{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing")
	assert.Contains(t, err.Error(), "panicking")
	assert.Equal(t, 1, good.enabled)
	assert.Equal(t, []plugin.Plugin{good}, pm.Enabled())
}

func TestPluginManager_EnableLoadsConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conf.yaml"), []byte("value: 7\n"), 0644))

	reg := plugin.NewDefaultRegistry()
	p := &configuredPlugin{fakePlugin{name: "conf"}}
	reg.RegisterPlugin(p)

	pm := plugin.NewPluginManager(dir, nil)
	require.NoError(t, pm.EnablePlugins(reg, plugin.API{}))

	cfg, ok := reg.PluginConfig("conf").(*fakeConfig)
	require.True(t, ok)
	assert.Equal(t, 7, cfg.Value)
	assert.Equal(t, "hi", cfg.Greeting)
}

func TestPluginManager_Reload(t *testing.T) {
	reg := plugin.NewDefaultRegistry()
	core := &fakePlugin{name: "core"}
	reg.RegisterPlugin(core)
	reg.MarkCore()

	pm := plugin.NewPluginManager(t.TempDir(), nil)
	require.NoError(t, pm.EnablePlugins(reg, plugin.API{}))
	reg.RegisterCommand("added-on-enable", "", func([]string) (string, error) { return "", nil })

	require.NoError(t, pm.ReloadPlugins(reg, plugin.API{}))
	assert.Equal(t, 2, core.enabled)
	assert.Equal(t, 1, core.disabled)
	assert.Empty(t, reg.Commands(), "registrations made after MarkCore are dropped")
	assert.Len(t, pm.Enabled(), 1)
}
