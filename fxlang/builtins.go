package fxlang

import lua "github.com/Shopify/go-lua"

// registerBuiltins installs the fixed builtin function library available
// to every fxlang program, closing over ctx so each builtin can reach the
// Host without a global registry of contexts.
func registerBuiltins(state *lua.State, ctx *Context) {
	lua.Register(state, "damage", func(l *lua.State) int {
		target := uint64(lua.CheckInteger(l, 1))
		amount := int64(lua.CheckInteger(l, 2))
		dealt, err := ctx.Host.Damage(ctx, target, amount, ctx.EffectID)
		if err != nil {
			lua.Errorf(l, "%v", err)
			return 0
		}
		l.PushInteger(int(dealt))
		return 1
	})

	lua.Register(state, "heal", func(l *lua.State) int {
		target := uint64(lua.CheckInteger(l, 1))
		amount := int64(lua.CheckInteger(l, 2))
		healed, err := ctx.Host.Heal(ctx, target, amount)
		if err != nil {
			lua.Errorf(l, "%v", err)
			return 0
		}
		l.PushInteger(int(healed))
		return 1
	})

	lua.Register(state, "boost", func(l *lua.State) int {
		target := uint64(lua.CheckInteger(l, 1))
		stat := lua.CheckString(l, 2)
		stages := int64(lua.CheckInteger(l, 3))
		applied, err := ctx.Host.Boost(ctx, target, stat, stages)
		if err != nil {
			lua.Errorf(l, "%v", err)
			return 0
		}
		l.PushInteger(int(applied))
		return 1
	})

	lua.Register(state, "add_volatile", func(l *lua.State) int {
		target := uint64(lua.CheckInteger(l, 1))
		id := lua.CheckString(l, 2)
		applied, err := ctx.Host.AddVolatile(ctx, target, id)
		if err != nil {
			lua.Errorf(l, "%v", err)
			return 0
		}
		l.PushBoolean(applied)
		return 1
	})

	lua.Register(state, "remove_volatile", func(l *lua.State) int {
		target := uint64(lua.CheckInteger(l, 1))
		id := lua.CheckString(l, 2)
		removed, err := ctx.Host.RemoveVolatile(ctx, target, id)
		if err != nil {
			lua.Errorf(l, "%v", err)
			return 0
		}
		l.PushBoolean(removed)
		return 1
	})

	lua.Register(state, "has_volatile", func(l *lua.State) int {
		target := uint64(lua.CheckInteger(l, 1))
		id := lua.CheckString(l, 2)
		l.PushBoolean(ctx.Host.HasVolatile(ctx, target, id))
		return 1
	})

	lua.Register(state, "set_status", func(l *lua.State) int {
		target := uint64(lua.CheckInteger(l, 1))
		id := lua.CheckString(l, 2)
		applied, err := ctx.Host.SetStatus(ctx, target, id)
		if err != nil {
			lua.Errorf(l, "%v", err)
			return 0
		}
		l.PushBoolean(applied)
		return 1
	})

	lua.Register(state, "cure_status", func(l *lua.State) int {
		target := uint64(lua.CheckInteger(l, 1))
		if err := ctx.Host.CureStatus(ctx, target); err != nil {
			lua.Errorf(l, "%v", err)
		}
		return 0
	})

	lua.Register(state, "flinch", func(l *lua.State) int {
		target := uint64(lua.CheckInteger(l, 1))
		if err := ctx.Host.Flinch(ctx, target); err != nil {
			lua.Errorf(l, "%v", err)
		}
		return 0
	})

	lua.Register(state, "stat", func(l *lua.State) int {
		target := uint64(lua.CheckInteger(l, 1))
		name := lua.CheckString(l, 2)
		l.PushInteger(int(ctx.Host.Stat(ctx, target, name)))
		return 1
	})

	lua.Register(state, "chance", func(l *lua.State) int {
		num := int64(lua.CheckInteger(l, 1))
		den := int64(lua.CheckInteger(l, 2))
		l.PushBoolean(ctx.Host.Chance(ctx, num, den))
		return 1
	})

	lua.Register(state, "random", func(l *lua.State) int {
		lo := int64(lua.CheckInteger(l, 1))
		hi := int64(lua.CheckInteger(l, 2))
		l.PushInteger(int(ctx.Host.RandomRange(ctx, lo, hi)))
		return 1
	})

	lua.Register(state, "type_eff", func(l *lua.State) int {
		attacking := lua.CheckString(l, 1)
		lua.CheckType(l, 2, lua.TypeTable)
		maxIndex := 0
		l.PushNil()
		for l.Next(2) {
			if idx, ok := l.ToInteger(-2); ok && idx > maxIndex {
				maxIndex = idx
			}
			l.Pop(1)
		}
		defending := make([]string, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			l.RawGetInt(2, i)
			if s, ok := l.ToString(-1); ok {
				defending = append(defending, s)
			}
			l.Pop(1)
		}
		num, den := ctx.Host.TypeEffectiveness(ctx, attacking, defending)
		l.PushInteger(int(num))
		l.PushInteger(int(den))
		return 2
	})

	lua.Register(state, "log", func(l *lua.State) int {
		tag := lua.CheckString(l, 1)
		parts := map[string]string{}
		if l.TypeOf(2) == lua.TypeTable {
			l.PushNil()
			for l.Next(2) {
				if l.TypeOf(-2) == lua.TypeString {
					key, _ := l.ToString(-2)
					if val, ok := l.ToString(-1); ok {
						parts[key] = val
					}
				}
				l.Pop(1)
			}
		}
		ctx.Host.Log(ctx, tag, parts)
		return 0
	})

	lua.Register(state, "fail", func(l *lua.State) int {
		ctx.Failed = true
		return 0
	})

	lua.Register(state, "stop", func(l *lua.State) int {
		ctx.Failed = true
		ctx.FailReason = lua.OptString(l, 1, "")
		return 0
	})
}
