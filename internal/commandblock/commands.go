package commandblock

import (
	"errors"
	"fmt"
	"strings"

	"github.com/annelo/cmdblock-server/internal/cube"
	"github.com/annelo/cmdblock-server/internal/plugin"
)

var errDisabled = errors.New("command block plugin is disabled")

func (p *Plugin) registerCommands(reg plugin.PluginRegistry) {
	reg.RegisterCommand("cmdblocks", "List command blocks", func(args []string) (string, error) {
		r := p.registry.Load()
		if r == nil {
			return "", errDisabled
		}
		entries := r.Entries()
		if len(entries) == 0 {
			return "No command blocks\n", nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%d command block(s):\n", len(entries))
		for _, e := range entries {
			fmt.Fprintf(&b, "  %s %s\n", e.Pos, formatRecord(e.Record))
		}
		return b.String(), nil
	})

	reg.RegisterCommand("cmdblock", "Show a command block: cmdblock <world:x:y:z>", func(args []string) (string, error) {
		if len(args) != 1 {
			return "", errors.New("usage: cmdblock <world:x:y:z>")
		}
		pos, err := cube.ParsePos(args[0])
		if err != nil {
			return "", err
		}
		r := p.registry.Load()
		if r == nil {
			return "", errDisabled
		}
		rec, ok := r.Get(pos)
		if !ok {
			return fmt.Sprintf("No command block at %s\n", pos), nil
		}
		return fmt.Sprintf("%s %s\n", pos, formatRecord(rec)), nil
	})
}

func formatRecord(rec Record) string {
	return fmt.Sprintf("mode=%s conditional=%t needs_redstone=%t command=%q",
		rec.Mode, rec.Conditional, rec.NeedsRedstone, rec.Command)
}
