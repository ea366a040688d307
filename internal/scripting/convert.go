package scripting

import (
	"encoding/json"

	lua "github.com/yuin/gopher-lua"
)

// goToLua converts a decoded-JSON value tree into Lua values.
func goToLua(ls *lua.LState, v interface{}) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case float64:
		return lua.LNumber(val)
	case int:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []interface{}:
		t := ls.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, goToLua(ls, item))
		}
		return t
	case map[string]interface{}:
		t := ls.NewTable()
		for k, item := range val {
			t.RawSetString(k, goToLua(ls, item))
		}
		return t
	default:
		return lua.LNil
	}
}

// luaToGo converts a Lua value into a JSON-encodable value tree. Tables with
// a dense 1..n integer sequence become arrays, everything else becomes maps.
func luaToGo(v lua.LValue) interface{} {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		n := val.MaxN()
		if n > 0 {
			arr := make([]interface{}, 0, n)
			for i := 1; i <= n; i++ {
				arr = append(arr, luaToGo(val.RawGetInt(i)))
			}
			return arr
		}
		m := make(map[string]interface{})
		val.ForEach(func(k, item lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = luaToGo(item)
			}
		})
		return m
	default:
		return nil
	}
}

// luaTableToJSON marshals a Lua table for the command buffer.
func luaTableToJSON(t *lua.LTable) (json.RawMessage, error) {
	return json.Marshal(luaToGo(t))
}

// jsonToLua decodes raw JSON into Lua values; nil on decode failure.
func jsonToLua(ls *lua.LState, raw json.RawMessage) lua.LValue {
	if len(raw) == 0 {
		return lua.LNil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return lua.LNil
	}
	return goToLua(ls, v)
}
