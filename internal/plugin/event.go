package plugin

import (
	"go.uber.org/zap"

	"github.com/annelo/cmdblock-server/internal/cube"
	"github.com/annelo/cmdblock-server/internal/form"
	"github.com/annelo/cmdblock-server/internal/permission"
)

// Actor is the player that caused an event.
type Actor struct {
	ID   string
	Name string
}

// Context is shared by all handlers of one event. Cancelling it vetoes the
// action: the world is left unchanged and the After* hooks do not run.
type Context struct {
	cancelled bool
}

// Cancel vetoes the action.
func (c *Context) Cancel() {
	c.cancelled = true
}

// Cancelled reports whether any handler vetoed the action.
func (c *Context) Cancelled() bool {
	return c.cancelled
}

// Handler receives block events. Handlers run on the game loop goroutine, one
// event at a time, in registration order, and must not block.
type Handler interface {
	// HandleBlockPlace is called before blockType is placed at pos.
	HandleBlockPlace(ctx *Context, actor Actor, pos cube.Pos, blockType int32)
	// HandleBlockBreak is called before the block of blockType at pos is broken.
	HandleBlockBreak(ctx *Context, actor Actor, pos cube.Pos, blockType int32)
	// HandleBlockInteract is called when actor uses the block at pos.
	HandleBlockInteract(ctx *Context, actor Actor, pos cube.Pos, blockType int32)
}

// NopHandler implements Handler with no-ops, for embedding.
type NopHandler struct{}

var _ Handler = NopHandler{}

func (NopHandler) HandleBlockPlace(*Context, Actor, cube.Pos, int32)    {}
func (NopHandler) HandleBlockBreak(*Context, Actor, cube.Pos, int32)    {}
func (NopHandler) HandleBlockInteract(*Context, Actor, cube.Pos, int32) {}

// Notifier sends a text message to a single player. Delivery is best effort.
type Notifier interface {
	Notify(playerID, text string)
}

// API is what the server hands to a plugin when it is enabled.
type API struct {
	Registry    PluginRegistry
	Permissions permission.Checker
	Forms       form.Presenter
	Notifier    Notifier
	Logger      *zap.SugaredLogger
}

// Plugin is a unit of functionality that the server enables at start and
// disables at shutdown or reload. Plugins keep their state between Enable and
// Disable only.
type Plugin interface {
	Meta() PluginMeta
	Enable(api API) error
	Disable() error
}

// Configurable plugins provide a default config, which is then overridden by
// <name>.yaml in the plugin directory.
type Configurable interface {
	DefaultConfig() interface{}
}
