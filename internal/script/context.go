package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/arcanfell/matchserver/internal/model"
)

// Context is the snapshot record handed to every script invocation. Scripts
// never see live game state; they get copies and answer with actions.
type Context struct {
	Event      string
	ActionName string

	ActorID    string
	ActorView  model.CardView
	TargetID   string
	TargetView *model.CardView

	GameState StateView
}

// StateView is the private game-state slice exposed to scripts.
type StateView struct {
	Turn       uint32
	RedPlayer  model.PlayerView
	BluePlayer model.PlayerView
}

// toLuaTable marshals the context into a native Lua table. Field names
// follow the wire convention (snake_case).
func (c *Context) toLuaTable(vm *lua.LState) *lua.LTable {
	tbl := vm.NewTable()
	tbl.RawSetString("event", lua.LString(c.Event))
	tbl.RawSetString("action_name", lua.LString(c.ActionName))
	tbl.RawSetString("actor_id", lua.LString(c.ActorID))
	tbl.RawSetString("actor_view", cardViewTable(vm, c.ActorView))
	if c.TargetID != "" {
		tbl.RawSetString("target_id", lua.LString(c.TargetID))
	}
	if c.TargetView != nil {
		tbl.RawSetString("target_view", cardViewTable(vm, *c.TargetView))
	}

	state := vm.NewTable()
	state.RawSetString("turn", lua.LNumber(c.GameState.Turn))
	state.RawSetString("red_player", playerViewTable(vm, c.GameState.RedPlayer))
	state.RawSetString("blue_player", playerViewTable(vm, c.GameState.BluePlayer))
	tbl.RawSetString("game_state", state)

	return tbl
}

func cardViewTable(vm *lua.LState, view model.CardView) *lua.LTable {
	tbl := vm.NewTable()
	tbl.RawSetString("id", lua.LString(view.ID))
	tbl.RawSetString("name", lua.LString(view.Name))
	tbl.RawSetString("attack", lua.LNumber(view.Attack))
	tbl.RawSetString("health", lua.LNumber(view.Health))
	tbl.RawSetString("play_cost", lua.LNumber(view.PlayCost))
	tbl.RawSetString("owner_id", lua.LString(view.OwnerID))
	if view.Position != "" {
		tbl.RawSetString("position", lua.LString(view.Position))
	}

	effects := vm.NewTable()
	for _, effect := range view.Effects {
		effects.Append(lua.LString(effect))
	}
	tbl.RawSetString("effects", effects)

	tbl.RawSetString("in_deck", lua.LBool(view.InDeck))
	tbl.RawSetString("in_hand", lua.LBool(view.InHand))
	tbl.RawSetString("in_board", lua.LBool(view.InBoard))
	tbl.RawSetString("in_graveyard", lua.LBool(view.InGraveyard))
	tbl.RawSetString("is_exhausted", lua.LBool(view.IsExhausted))
	return tbl
}

func playerViewTable(vm *lua.LState, view model.PlayerView) *lua.LTable {
	tbl := vm.NewTable()
	tbl.RawSetString("id", lua.LString(view.ID))
	tbl.RawSetString("health", lua.LNumber(view.Health))
	tbl.RawSetString("mana", lua.LNumber(view.Mana))
	tbl.RawSetString("hand_size", lua.LNumber(view.HandSize()))
	tbl.RawSetString("deck_size", lua.LNumber(view.DeckSize))

	// Hand keeps its slot indices: slot N maps to key N+1, empty slots are
	// simply absent.
	hand := vm.NewTable()
	for i, card := range view.CurrentHand {
		if card != nil {
			hand.RawSetInt(i+1, cardViewTable(vm, *card))
		}
	}
	tbl.RawSetString("current_hand", hand)

	tbl.RawSetString("board", boardTable(vm, view.Board))
	tbl.RawSetString("graveyard_size", lua.LNumber(view.GraveyardSize))
	tbl.RawSetString("graveyard", graveyardTable(vm, view.Graveyard))
	return tbl
}

func boardTable(vm *lua.LState, board model.BoardView) *lua.LTable {
	tbl := vm.NewTable()
	tbl.RawSetString("creatures", refSlotsTable(vm, board.Creatures[:]))
	tbl.RawSetString("artifacts", refSlotsTable(vm, board.Artifacts[:]))
	tbl.RawSetString("enchantments", refSlotsTable(vm, board.Enchantments[:]))
	return tbl
}

func graveyardTable(vm *lua.LState, graveyard model.GraveyardView) *lua.LTable {
	tbl := vm.NewTable()
	tbl.RawSetString("creatures", refListTable(vm, graveyard.Creatures))
	tbl.RawSetString("artifacts", refListTable(vm, graveyard.Artifacts))
	tbl.RawSetString("enchantments", refListTable(vm, graveyard.Enchantments))
	return tbl
}

func refSlotsTable(vm *lua.LState, slots []*model.CardRef) *lua.LTable {
	tbl := vm.NewTable()
	for i, ref := range slots {
		if ref != nil {
			tbl.RawSetInt(i+1, refTable(vm, *ref))
		}
	}
	return tbl
}

func refListTable(vm *lua.LState, refs []model.CardRef) *lua.LTable {
	tbl := vm.NewTable()
	for _, ref := range refs {
		tbl.Append(refTable(vm, ref))
	}
	return tbl
}

func refTable(vm *lua.LState, ref model.CardRef) *lua.LTable {
	tbl := vm.NewTable()
	tbl.RawSetString("id", lua.LString(ref.ID))
	tbl.RawSetString("amount", lua.LNumber(ref.Amount))
	return tbl
}
