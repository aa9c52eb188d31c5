// Package lua hosts hook handlers written in Lua.
//
// Each script runs in its own sandboxed gopher-lua state. Only the base,
// table, string and math libraries are opened, and the loaders that could
// read other files (dofile, loadfile, load, loadstring, require) are
// removed.
//
// A script becomes a handler by defining a global function, conventionally
// named handle:
//
//	-- @hook user.created
//	-- @priority 5
//	function handle(user)
//	    return "welcome " .. user.name
//	end
//
// Host implements hook.Resolver, so a handler is referenced as
// hook.Ref(scriptName, "handle") and resolved when the hook fires.
//
// A Lua function may signal failure by raising an error or by returning
// nil followed by an error message.
package lua
