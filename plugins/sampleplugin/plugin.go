package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/annelo/cmdblock-server/internal/cube"
	"github.com/annelo/cmdblock-server/internal/gameloop"
	"github.com/annelo/cmdblock-server/internal/plugin"
	"github.com/annelo/cmdblock-server/pkg/protocol/game"
)

// SamplePluginConfig is read from sampleplugin.yaml.
type SamplePluginConfig struct {
	Greeting string `yaml:"greeting"`
	Value    int    `yaml:"value"`
}

// greeter greets players who place the sample block.
type greeter struct {
	plugin.NopHandler
	notifier plugin.Notifier
	reg      plugin.PluginRegistry
}

func (g *greeter) HandleBlockPlace(_ *plugin.Context, actor plugin.Actor, _ cube.Pos, blockType int32) {
	if blockType != 100 || g.notifier == nil {
		return
	}
	cfg := g.reg.PluginConfig("sampleplugin").(*SamplePluginConfig)
	g.notifier.Notify(actor.ID, cfg.Greeting)
}

type samplePlugin struct {
	reg plugin.PluginRegistry
}

func (p *samplePlugin) Meta() plugin.PluginMeta {
	return plugin.PluginMeta{Name: "sampleplugin", Version: plugin.PluginAPIVersion, Description: "Example .so plugin"}
}

func (p *samplePlugin) Enable(api plugin.API) error {
	api.Registry.RegisterHandler(&greeter{notifier: api.Notifier, reg: p.reg})
	return nil
}

func (p *samplePlugin) Disable() error { return nil }

// Register is invoked by PluginManager to register block types, systems and handlers
func Register(reg plugin.PluginRegistry) {
	reg.RegisterBlockType(100, "sample_block")

	reg.RegisterGameSystem(gameloop.NewTimeSystem())

	logger := zap.NewExample().Sugar().With("plugin", "sampleplugin")
	reg.RegisterHook(plugin.HookAfterPlaceBlock, func(args ...interface{}) {
		if len(args) > 0 {
			if event, ok := args[0].(*game.WorldEvent); ok {
				logger.Infow("block placed", "player", event.PlayerId, "block", event.Block)
			}
		}
	})

	reg.RegisterPluginConfig("sampleplugin", &SamplePluginConfig{Greeting: "Hello", Value: 0})
	reg.RegisterPlugin(&samplePlugin{reg: reg})

	reg.RegisterCommand("sampleinfo", "Show sample plugin info", func(args []string) (string, error) {
		cfg := reg.PluginConfig("sampleplugin").(*SamplePluginConfig)
		return fmt.Sprintf("Greeting: %s, Value: %d\n", cfg.Greeting, cfg.Value), nil
	})
}

// main is required for `go build ./...`; it is never called when loaded as a plugin.
func main() {}
