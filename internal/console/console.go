// Package console is the operator command line: a stdin REPL that dispatches
// to the commands in a plugin registry, plus the built-in server commands.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/annelo/cmdblock-server/internal/gameloop"
	"github.com/annelo/cmdblock-server/internal/permission"
	"github.com/annelo/cmdblock-server/internal/plugin"
)

// ErrUnknownCommand is returned by Dispatch for a name no one registered.
var ErrUnknownCommand = errors.New("неизвестная команда")

// reloadTimeout bounds how long a reload waits for the game loop.
const reloadTimeout = 10 * time.Second

// Dispatch runs one command line. An empty line yields empty output.
func Dispatch(reg plugin.PluginRegistry, line string) (string, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", nil
	}
	name, args := parts[0], parts[1:]
	for _, cmd := range reg.Commands() {
		if cmd.Name == name {
			return cmd.Handler(args)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownCommand, name)
}

// Run reads commands from in until EOF or ctx is cancelled.
func Run(ctx context.Context, reg plugin.PluginRegistry, in io.Reader, out io.Writer) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	for {
		fmt.Fprint(out, "> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			res, err := Dispatch(reg, line)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			fmt.Fprint(out, res)
		}
	}
}

// Server is what the built-in commands act on.
type Server struct {
	Registry    plugin.PluginRegistry
	Plugins     *plugin.PluginManager
	API         plugin.API
	Loop        *gameloop.Loop
	Permissions *permission.Store
	// Stop shuts the server down.
	Stop func()
}

// RegisterBuiltins registers help, plugins, config, reload, stop, grant,
// revoke and caps. Call it before MarkCore so reloads keep them.
func RegisterBuiltins(s Server) {
	reg := s.Registry
	reg.RegisterCommand("help", "List commands", func(args []string) (string, error) {
		cmds := reg.Commands()
		sort.SliceStable(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
		var sb strings.Builder
		for _, cmd := range cmds {
			fmt.Fprintf(&sb, "%s - %s\n", cmd.Name, cmd.Description)
		}
		return sb.String(), nil
	})
	reg.RegisterCommand("plugins", "List loaded plugins", func(args []string) (string, error) {
		metas := reg.PluginMetas()
		if len(metas) == 0 {
			return "No plugins\n", nil
		}
		var sb strings.Builder
		for _, meta := range metas {
			fmt.Fprintf(&sb, "%s v%s by %s: %s\n", meta.Name, meta.Version, meta.Author, meta.Description)
		}
		return sb.String(), nil
	})
	reg.RegisterCommand("config", "Show plugin config: config <pluginName>", func(args []string) (string, error) {
		if len(args) != 1 {
			return "Usage: config <pluginName>\n", nil
		}
		cfg := reg.PluginConfig(args[0])
		if cfg == nil {
			return fmt.Sprintf("No config for plugin %s\n", args[0]), nil
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return "", err
		}
		return string(data), nil
	})
	if s.Plugins != nil {
		reg.RegisterCommand("reload", "Reload plugins", func(args []string) (string, error) {
			ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
			defer cancel()
			var reloadErr error
			// обработчики читаются в петле, поэтому перезагрузка идет там же
			reload := func() { reloadErr = s.Plugins.ReloadPlugins(reg, s.API) }
			if s.Loop == nil {
				reload()
			} else if err := s.Loop.Do(ctx, reload); err != nil {
				return "", err
			}
			if reloadErr != nil {
				return "", reloadErr
			}
			return "Plugins reloaded successfully\n", nil
		})
	}
	if s.Stop != nil {
		reg.RegisterCommand("stop", "Stop server", func(args []string) (string, error) {
			s.Stop()
			return "Server stopping\n", nil
		})
	}
	if s.Permissions != nil {
		perms := s.Permissions
		reg.RegisterCommand("grant", "Grant a capability: grant <player> <capability>", func(args []string) (string, error) {
			if len(args) != 2 {
				return "", errors.New("usage: grant <player> <capability>")
			}
			perms.Grant(args[0], args[1])
			return fmt.Sprintf("Granted %s to %s\n", args[1], args[0]), nil
		})
		reg.RegisterCommand("revoke", "Revoke a capability: revoke <player> <capability>", func(args []string) (string, error) {
			if len(args) != 2 {
				return "", errors.New("usage: revoke <player> <capability>")
			}
			perms.Revoke(args[0], args[1])
			return fmt.Sprintf("Revoked %s from %s\n", args[1], args[0]), nil
		})
		reg.RegisterCommand("caps", "List capabilities: caps <player>", func(args []string) (string, error) {
			if len(args) != 1 {
				return "", errors.New("usage: caps <player>")
			}
			if perms.IsOperator(args[0]) {
				return fmt.Sprintf("%s: operator\n", args[0]), nil
			}
			return fmt.Sprintf("%s: %s\n", args[0], strings.Join(perms.Capabilities(args[0]), ", ")), nil
		})
	}
}
