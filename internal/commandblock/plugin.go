package commandblock

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/annelo/cmdblock-server/internal/cube"
	"github.com/annelo/cmdblock-server/internal/form"
	"github.com/annelo/cmdblock-server/internal/permission"
	"github.com/annelo/cmdblock-server/internal/plugin"
)

// Name is the plugin name and the base name of its config file.
const Name = "commandblock"

// Capabilities checked by the plugin.
const (
	CapabilityUse  = "commandblock.use"
	CapabilityEdit = "commandblock.edit"
)

// DefaultBlockID is the command block type ID used when the config sets none.
const DefaultBlockID int32 = 77777

// Messages are the texts sent to players.
type Messages struct {
	NoPlacePermission string `yaml:"no_place_permission"`
	NoEditPermission  string `yaml:"no_edit_permission"`
	Cancelled         string `yaml:"cancelled"`
	Updated           string `yaml:"updated"`
	Removed           string `yaml:"removed"`
}

// Config is read from commandblock.yaml in the plugin directory.
type Config struct {
	BlockID  int32    `yaml:"block_id"`
	Messages Messages `yaml:"messages"`
}

// DefaultConfigValues returns the built-in configuration.
func DefaultConfigValues() Config {
	return Config{
		BlockID: DefaultBlockID,
		Messages: Messages{
			NoPlacePermission: "You do not have permission to place Command Blocks!",
			NoEditPermission:  "You do not have permission to edit Command Blocks!",
			Cancelled:         "Command editing cancelled.",
			Updated:           "Command Block updated successfully!",
			Removed:           "This Command Block no longer exists.",
		},
	}
}

// Plugin lets players place command blocks and edit them with a form.
type Plugin struct {
	cfg      Config
	registry atomic.Pointer[Registry]
	edits    editSessions

	perms    permission.Checker
	forms    form.Presenter
	notifier plugin.Notifier
	log      *zap.SugaredLogger
}

var (
	_ plugin.Plugin       = (*Plugin)(nil)
	_ plugin.Configurable = (*Plugin)(nil)
	_ plugin.Handler      = (*Plugin)(nil)
)

// New returns a disabled plugin.
func New() *Plugin {
	return &Plugin{cfg: DefaultConfigValues(), log: zap.NewNop().Sugar()}
}

func (p *Plugin) Meta() plugin.PluginMeta {
	return plugin.PluginMeta{
		Name:        Name,
		Version:     plugin.PluginAPIVersion,
		Author:      "annelo",
		Description: "Configurable command blocks",
	}
}

func (p *Plugin) DefaultConfig() interface{} {
	cfg := DefaultConfigValues()
	return &cfg
}

// Enable creates an empty registry and registers the handler, the block
// hooks, the block type and the admin commands.
func (p *Plugin) Enable(api plugin.API) error {
	p.cfg = DefaultConfigValues()
	if cfg, ok := api.Registry.PluginConfig(Name).(*Config); ok && cfg != nil {
		p.cfg = *cfg
	}
	if p.cfg.BlockID == 0 {
		p.cfg.BlockID = DefaultBlockID
	}
	p.perms = api.Permissions
	p.forms = api.Forms
	p.notifier = api.Notifier
	if api.Logger != nil {
		p.log = api.Logger
	}

	api.Registry.RegisterBlockType(p.cfg.BlockID, "command_block")
	api.Registry.RegisterHandler(p)
	p.registerHooks(api.Registry)
	p.registerCommands(api.Registry)

	p.edits.reset()
	p.registry.Store(NewRegistry())
	p.log.Infow("command blocks enabled", "block_id", p.cfg.BlockID)
	return nil
}

// Disable drops every record and every open settings form.
func (p *Plugin) Disable() error {
	p.edits.reset()
	if r := p.registry.Swap(nil); r != nil {
		p.log.Infow("command blocks disabled", "records", r.Len())
	}
	return nil
}

// BlockID returns the configured command block type ID.
func (p *Plugin) BlockID() int32 { return p.cfg.BlockID }

// Registry returns the live registry, or nil while the plugin is disabled.
func (p *Plugin) Registry() *Registry { return p.registry.Load() }

// Get returns the record at pos. It reports false while the plugin is
// disabled.
func (p *Plugin) Get(pos cube.Pos) (Record, bool) {
	r := p.registry.Load()
	if r == nil {
		return Record{}, false
	}
	return r.Get(pos)
}

// Entries lists all records. It is empty while the plugin is disabled.
func (p *Plugin) Entries() []Entry {
	r := p.registry.Load()
	if r == nil {
		return []Entry{}
	}
	return r.Entries()
}

func (p *Plugin) notify(actor plugin.Actor, text string) {
	if p.notifier != nil && text != "" {
		p.notifier.Notify(actor.ID, text)
	}
}

func (p *Plugin) allowed(actor plugin.Actor, capability string) bool {
	return p.perms != nil && p.perms.HasCapability(actor.Name, capability)
}

// HandleBlockPlace implements plugin.Handler.
func (p *Plugin) HandleBlockPlace(ctx *plugin.Context, actor plugin.Actor, pos cube.Pos, blockType int32) {
	p.OnPlace(ctx, actor, pos, blockType)
}

// HandleBlockBreak implements plugin.Handler. Breaking is never vetoed; the
// record goes away in the AfterRemoveBlock hook.
func (p *Plugin) HandleBlockBreak(ctx *plugin.Context, actor plugin.Actor, pos cube.Pos, blockType int32) {
}

// HandleBlockInteract implements plugin.Handler.
func (p *Plugin) HandleBlockInteract(ctx *plugin.Context, actor plugin.Actor, pos cube.Pos, blockType int32) {
	p.OnInteract(ctx, actor, pos, blockType)
}
