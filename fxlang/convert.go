package fxlang

import lua "github.com/Shopify/go-lua"

// pushValue pushes a fxlang Value onto the Lua stack as the equivalent Lua
// value, so scripts can read it via the `input` global.
func pushValue(state *lua.State, v Value) {
	switch v.Kind() {
	case KindNil:
		state.PushNil()
	case KindInt:
		n, _ := v.Int()
		state.PushInteger(int(n))
	case KindBool:
		b, _ := v.Bool()
		state.PushBoolean(b)
	case KindString:
		s, _ := v.Str()
		state.PushString(s)
	case KindFraction:
		f, _ := v.Fraction()
		state.NewTable()
		state.PushInteger(int(f.Num))
		state.SetField(-2, "num")
		state.PushInteger(int(f.Den))
		state.SetField(-2, "den")
	case KindMonRef, KindMoveRef:
		h, _ := v.Handle()
		state.PushInteger(int(h))
	case KindEffectRef:
		id, _ := v.EffectID()
		state.PushString(id)
	case KindList:
		items, _ := v.Items()
		state.NewTable()
		for i, item := range items {
			pushValue(state, item)
			state.RawSetInt(-2, i+1)
		}
	case KindObject:
		fields, _ := v.Fields()
		state.NewTable()
		for key, field := range fields {
			pushValue(state, field)
			state.SetField(-2, key)
		}
	default:
		state.PushNil()
	}
}

// toValue converts the Lua value at index into a fxlang Value.
func toValue(state *lua.State, index int) Value {
	switch state.TypeOf(index) {
	case lua.TypeNil, lua.TypeNone:
		return Nil
	case lua.TypeBoolean:
		return Bool(state.ToBoolean(index))
	case lua.TypeNumber:
		if n, ok := state.ToInteger(index); ok {
			return Int(int64(n))
		}
		n, _ := state.ToNumber(index)
		return Int(int64(n))
	case lua.TypeString:
		s, _ := state.ToString(index)
		return String(s)
	case lua.TypeTable:
		return tableToValue(state, index)
	default:
		return Nil
	}
}

func tableToValue(state *lua.State, index int) Value {
	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) != lua.TypeNumber {
			isArray = false
		} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
			count++
			if idx > maxIndex {
				maxIndex = idx
			}
		} else {
			isArray = false
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		items := make([]Value, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			items = append(items, toValue(state, -1))
			state.Pop(1)
		}
		return List(items)
	}

	fields := map[string]Value{}
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			fields[key] = toValue(state, -1)
		}
		state.Pop(1)
	}
	return Object(fields)
}
