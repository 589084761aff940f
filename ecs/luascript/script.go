// Package luascript runs entity scripts written in Lua. Each Script owns its own
// gopher-lua VM, so scripts cannot see each other's globals.
package luascript

import (
	"os"
	"reflect"
	"time"

	"github.com/plus3/arkecs/ecs"
	"github.com/plus3/arkecs/ecs/inspect"
	"github.com/rotisserie/eris"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Options configures a Script.
type Options struct {
	// Name identifies the script in log output.
	Name   string
	Logger *zap.Logger
}

// Script is an ecs.Script whose callbacks are the Lua globals init, update,
// on_input and destroyed. Missing globals are skipped.
type Script struct {
	ecs.ScriptBase
	vm   *lua.LState
	name string
	log  *zap.Logger
}

// New compiles and runs source, which should define the callback globals.
func New(source string, opts Options) (*Script, error) {
	s := newScript(opts)
	if err := s.vm.DoString(source); err != nil {
		s.vm.Close()
		return nil, eris.Wrapf(err, "load lua script %q", s.name)
	}
	return s, nil
}

// NewFromFile is New for a script on disk.
func NewFromFile(path string, opts Options) (*Script, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read lua script %s", path)
	}
	if opts.Name == "" {
		opts.Name = path
	}
	return New(string(source), opts)
}

func newScript(opts Options) *Script {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Script{
		vm:   lua.NewState(),
		name: opts.Name,
		log:  log.With(zap.String("script", opts.Name)),
	}
	s.vm.SetGlobal("API_VERSION", lua.LNumber(1))
	s.vm.SetGlobal("entity_name", s.vm.NewFunction(s.luaEntityName))
	s.vm.SetGlobal("remove_self", s.vm.NewFunction(s.luaRemoveSelf))
	s.vm.SetGlobal("get", s.vm.NewFunction(s.luaGet))
	s.vm.SetGlobal("set", s.vm.NewFunction(s.luaSet))
	s.vm.SetGlobal("log", s.vm.NewFunction(s.luaLog))
	return s
}

func (s *Script) Init() {
	s.call("init")
}

func (s *Script) Update(dt float64) {
	s.call("update", lua.LNumber(dt))
}

func (s *Script) HandleInput(ev ecs.InputEvent) {
	s.call("on_input", lua.LString(ev.Kind.String()), lua.LNumber(ev.X), lua.LNumber(ev.Y))
}

// Destroyed runs the Lua destroyed callback and closes the VM.
func (s *Script) Destroyed() {
	s.call("destroyed")
	s.vm.Close()
}

// Global reads a Lua global, mostly for tests and tooling.
func (s *Script) Global(name string) lua.LValue {
	return s.vm.GetGlobal(name)
}

func (s *Script) call(name string, args ...lua.LValue) {
	fn := s.vm.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return
	}
	if err := s.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...); err != nil {
		s.log.Error("lua callback failed", zap.String("callback", name), zap.Error(err))
	}
}

func (s *Script) luaEntityName(L *lua.LState) int {
	L.Push(lua.LString(s.Entity().Name()))
	return 1
}

func (s *Script) luaRemoveSelf(L *lua.LState) int {
	s.Remove()
	return 0
}

// get(component, field) returns a number, string or boolean field value.
func (s *Script) luaGet(L *lua.LState) int {
	component, err := inspect.Component(s.Entity(), L.CheckString(1))
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	value, err := inspect.GetField(component, L.CheckString(2))
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(toLua(value))
	return 1
}

// set(component, field, value) writes through inspect.SetField.
func (s *Script) luaSet(L *lua.LState) int {
	component, err := inspect.Component(s.Entity(), L.CheckString(1))
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	value, err := fromLua(L.CheckAny(3))
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	if err := inspect.SetField(component, L.CheckString(2), value); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func (s *Script) luaLog(L *lua.LState) int {
	s.log.Info(L.CheckString(1), zap.Stringer("entity", s.Entity()))
	return 0
}

func toLua(v any) lua.LValue {
	if d, ok := v.(time.Duration); ok {
		return lua.LNumber(d.Seconds())
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return lua.LBool(rv.Bool())
	case reflect.String:
		return lua.LString(rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return lua.LNumber(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(rv.Float())
	}
	return lua.LNil
}

func fromLua(v lua.LValue) (any, error) {
	switch x := v.(type) {
	case lua.LBool:
		return bool(x), nil
	case lua.LString:
		return string(x), nil
	case lua.LNumber:
		return float64(x), nil
	}
	if v == lua.LNil {
		return nil, nil
	}
	return nil, eris.Errorf("cannot assign a Lua %s to a component field", v.Type())
}
