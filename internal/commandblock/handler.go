package commandblock

import (
	"github.com/annelo/cmdblock-server/internal/cube"
	"github.com/annelo/cmdblock-server/internal/form"
	"github.com/annelo/cmdblock-server/internal/plugin"
)

// Form element order. Answers are read back by these indexes.
const (
	fieldCommand = iota
	fieldMode
	fieldConditional
	fieldNeedsRedstone
)

// OnPlace vetoes the placement of a command block by a player without the
// use capability. The record is created by OnPlaced once the block is in the
// world.
func (p *Plugin) OnPlace(ctx *plugin.Context, actor plugin.Actor, pos cube.Pos, blockType int32) {
	if blockType != p.cfg.BlockID {
		return
	}
	if !p.allowed(actor, CapabilityUse) {
		ctx.Cancel()
		p.notify(actor, p.cfg.Messages.NoPlacePermission)
	}
}

// OnPlaced stores a default record for a command block that was placed.
func (p *Plugin) OnPlaced(actor plugin.Actor, pos cube.Pos, blockType int32) {
	if blockType != p.cfg.BlockID {
		return
	}
	if r := p.registry.Load(); r != nil {
		r.Init(pos)
		p.log.Debugw("command block placed", "player", actor.Name, "pos", pos)
	}
}

// OnBreak removes the record of a command block that was broken. Settings
// forms still open for it are invalidated.
func (p *Plugin) OnBreak(actor plugin.Actor, pos cube.Pos, blockType int32) {
	if blockType != p.cfg.BlockID {
		return
	}
	if n := p.edits.dropPos(pos); n > 0 {
		p.log.Debugw("open settings forms invalidated", "pos", pos, "forms", n)
	}
	if r := p.registry.Load(); r != nil && r.Remove(pos) {
		p.log.Debugw("command block removed", "player", actor.Name, "pos", pos)
	}
}

// OnQuit forgets the open settings forms of a player who left.
func (p *Plugin) OnQuit(actor plugin.Actor) {
	p.edits.dropPlayer(actor.ID)
}

// OnInteract opens the settings form pre-filled with the current record.
// The default interaction of a command block is always vetoed.
func (p *Plugin) OnInteract(ctx *plugin.Context, actor plugin.Actor, pos cube.Pos, blockType int32) {
	if blockType != p.cfg.BlockID {
		return
	}
	ctx.Cancel()
	if !p.allowed(actor, CapabilityEdit) {
		p.notify(actor, p.cfg.Messages.NoEditPermission)
		return
	}
	r := p.registry.Load()
	if r == nil || p.forms == nil {
		return
	}
	name := actor.Name
	edit := p.edits.open(actor.ID, pos)
	err := p.forms.Send(actor.ID, SettingsForm(r.Lookup(pos)), func(playerID string, resp *form.Response) {
		submitter := plugin.Actor{ID: playerID, Name: name}
		if !p.edits.close(edit) {
			p.log.Debugw("settings form for a removed command block", "player", name, "pos", pos)
			p.notify(submitter, p.cfg.Messages.Removed)
			return
		}
		p.OnFormSubmit(submitter, pos, resp)
	})
	if err != nil {
		p.edits.close(edit)
		p.log.Warnw("send settings form", "player", actor.Name, "pos", pos, "error", err)
	}
}

// OnFormSubmit stores the answer of a settings form. A nil response means
// the player closed the form.
func (p *Plugin) OnFormSubmit(actor plugin.Actor, pos cube.Pos, resp *form.Response) {
	if resp == nil {
		p.notify(actor, p.cfg.Messages.Cancelled)
		return
	}
	r := p.registry.Load()
	if r == nil {
		return
	}
	rec := RecordFromResponse(resp)
	r.Set(pos, rec)
	p.log.Debugw("command block updated", "player", actor.Name, "pos", pos, "command", rec.Command, "mode", rec.Mode)
	p.notify(actor, p.cfg.Messages.Updated)
}

// SettingsForm builds the edit form for rec.
func SettingsForm(rec Record) form.Custom {
	mode := rec.Mode
	if !mode.Valid() {
		mode = Impulse
	}
	return form.NewCustom("Command Block Settings",
		form.Input{Text: "Command:", Placeholder: "e.g., say Hello, World!", Default: rec.Command},
		form.Dropdown{Text: "Block Type:", Options: append([]string(nil), modeNames...), Default: int(mode)},
		form.Toggle{Text: "Conditional?", Default: rec.Conditional},
		form.Toggle{Text: "Needs Redstone?", Default: rec.NeedsRedstone},
	)
}

// RecordFromResponse builds a record from form answers. Each missing or
// malformed answer takes the value of DefaultRecord.
func RecordFromResponse(resp *form.Response) Record {
	def := DefaultRecord()
	mode := Mode(resp.Choice(fieldMode, int(def.Mode)))
	if !mode.Valid() {
		mode = def.Mode
	}
	return Record{
		Command:       resp.String(fieldCommand, def.Command),
		Mode:          mode,
		Conditional:   resp.Bool(fieldConditional, def.Conditional),
		NeedsRedstone: resp.Bool(fieldNeedsRedstone, def.NeedsRedstone),
	}
}
