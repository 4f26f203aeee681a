package service

import (
	"errors"
	"fmt"

	"github.com/annelo/cmdblock-server/internal/block"
	"github.com/annelo/cmdblock-server/internal/cube"
	"github.com/annelo/cmdblock-server/internal/form"
	"github.com/annelo/cmdblock-server/internal/plugin"
	"github.com/annelo/cmdblock-server/pkg/protocol/game"
)

// ErrCancelled is reported when a plugin vetoed the action.
var ErrCancelled = errors.New("action cancelled")

// handleBlockAction queues a block action on the game loop and reports the
// outcome to the player.
func (s *WorldService) handleBlockAction(actor plugin.Actor, action *game.BlockAction) {
	err := s.loop.Submit(func() {
		res := s.ApplyBlockAction(actor, action)
		_ = s.sendToPlayer(actor.ID, &game.ServerMessage{ActionResult: res})
	})
	if err != nil {
		s.logger.Debugw("block action dropped", "player", actor.Name, "error", err)
	}
}

// ApplyBlockAction runs one block action through the plugin handlers and
// applies it to the world unless a handler vetoed it. It must run on the
// game loop.
func (s *WorldService) ApplyBlockAction(actor plugin.Actor, action *game.BlockAction) *game.ActionResult {
	res := &game.ActionResult{Action: action.Action, Position: action.Position}
	if action.Position == nil {
		return s.reject(actor, res, errors.New("missing position"))
	}
	pos := cube.FromProto(action.Position)
	if pos.World == "" {
		pos.World = s.spawn.World
		res.Position = pos.ToProto()
	}

	var err error
	switch action.Action {
	case game.ActionPlace:
		err = s.placeBlock(actor, pos, action.BlockType)
	case game.ActionDestroy:
		err = s.breakBlock(actor, pos)
	case game.ActionInteract:
		s.interactBlock(actor, pos)
	default:
		err = fmt.Errorf("unknown action %d", action.Action)
	}
	if err != nil {
		return s.reject(actor, res, err)
	}
	actionsApplied.Add(1)
	res.Success = true
	return res
}

func (s *WorldService) reject(actor plugin.Actor, res *game.ActionResult, err error) *game.ActionResult {
	actionsRejected.Add(1)
	s.logger.Debugw("block action rejected", "player", actor.Name, "action", res.Action, "error", err)
	res.Success = false
	res.Message = err.Error()
	return res
}

func (s *WorldService) placeBlock(actor plugin.Actor, pos cube.Pos, blockType int32) error {
	if blockType == block.TypeAir {
		return block.ErrInvalidBlockType
	}
	if current := s.blockManager.BlockAt(pos); current != block.TypeAir {
		return fmt.Errorf("place at %s: %w", pos, block.ErrOccupied)
	}

	ctx := &plugin.Context{}
	for _, h := range s.registry.Handlers() {
		h.HandleBlockPlace(ctx, actor, pos, blockType)
	}
	if ctx.Cancelled() {
		return ErrCancelled
	}

	event, err := s.blockManager.Place(pos, blockType, actor.ID)
	if err != nil {
		return err
	}
	for _, h := range s.registry.Hooks(plugin.HookAfterPlaceBlock) {
		h(event, actor)
	}
	return nil
}

func (s *WorldService) breakBlock(actor plugin.Actor, pos cube.Pos) error {
	current := s.blockManager.BlockAt(pos)
	if current == block.TypeAir {
		return fmt.Errorf("break at %s: %w", pos, block.ErrNothingToBreak)
	}

	ctx := &plugin.Context{}
	for _, h := range s.registry.Handlers() {
		h.HandleBlockBreak(ctx, actor, pos, current)
	}
	if ctx.Cancelled() {
		return ErrCancelled
	}

	prev, event, err := s.blockManager.Break(pos, actor.ID)
	if err != nil {
		return err
	}
	for _, h := range s.registry.Hooks(plugin.HookAfterRemoveBlock) {
		h(event, actor, prev)
	}
	return nil
}

// interactBlock never changes the world; handlers may still veto the default use.
func (s *WorldService) interactBlock(actor plugin.Actor, pos cube.Pos) {
	current := s.blockManager.BlockAt(pos)
	ctx := &plugin.Context{}
	for _, h := range s.registry.Handlers() {
		h.HandleBlockInteract(ctx, actor, pos, current)
	}
}

// handleFormResponse resolves a pending form on the game loop.
func (s *WorldService) handleFormResponse(actor plugin.Actor, answer *game.FormResponse) {
	var resp *form.Response
	if !answer.Cancelled {
		resp = form.ParseResponse(answer.Data)
	}
	err := s.loop.Submit(func() {
		if err := s.forms.Resolve(actor.ID, answer.FormId, resp); err != nil {
			s.logger.Debugw("form response ignored", "player", actor.Name, "form_id", answer.FormId, "error", err)
		}
	})
	if err != nil {
		s.logger.Debugw("form response dropped", "player", actor.Name, "error", err)
	}
}
