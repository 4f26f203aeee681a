package commandblock

import (
	"github.com/annelo/cmdblock-server/internal/cube"
	"github.com/annelo/cmdblock-server/internal/plugin"
	"github.com/annelo/cmdblock-server/pkg/protocol/game"
)

// registerHooks keeps the registry in step with the world: records are
// created and removed only after the block change has been applied.
func (p *Plugin) registerHooks(reg plugin.PluginRegistry) {
	reg.RegisterHook(plugin.HookAfterPlaceBlock, func(args ...interface{}) {
		event, actor, ok := blockHookArgs(args)
		if !ok || event.Block == nil {
			return
		}
		p.OnPlaced(actor, cube.FromProto(event.Position), event.Block.Type)
	})
	reg.RegisterHook(plugin.HookAfterRemoveBlock, func(args ...interface{}) {
		event, actor, ok := blockHookArgs(args)
		if !ok || len(args) < 3 {
			return
		}
		prev, ok := args[2].(int32)
		if !ok {
			return
		}
		p.OnBreak(actor, cube.FromProto(event.Position), prev)
	})
	reg.RegisterHook(plugin.HookPlayerQuit, func(args ...interface{}) {
		if len(args) == 0 {
			return
		}
		if actor, ok := args[0].(plugin.Actor); ok {
			p.OnQuit(actor)
		}
	})
}

func blockHookArgs(args []interface{}) (*game.WorldEvent, plugin.Actor, bool) {
	if len(args) < 2 {
		return nil, plugin.Actor{}, false
	}
	event, ok := args[0].(*game.WorldEvent)
	if !ok || event == nil || event.Position == nil {
		return nil, plugin.Actor{}, false
	}
	actor, ok := args[1].(plugin.Actor)
	return event, actor, ok
}
