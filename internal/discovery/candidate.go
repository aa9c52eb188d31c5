package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dshills/hookwire/internal/hook"
	"github.com/dshills/hookwire/internal/lua"
)

// Kind is the origin of a candidate.
type Kind int

// Candidate kinds.
const (
	KindGo Kind = iota
	KindDescriptorFile
	KindLua
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindGo:
		return "go"
	case KindDescriptorFile:
		return "file"
	case KindLua:
		return "lua"
	}
	return "unknown"
}

// Candidate is one handler definition awaiting registration.
type Candidate struct {
	Kind Kind

	// Source identifies the candidate in reports: a file path, or the Go
	// type name for catalog values.
	Source string

	// Ident is the identifier a name is synthesized from.
	Ident string

	// Value is the catalog value for KindGo.
	Value any

	// Fields is the decoded content of a descriptor file.
	Fields map[string]any

	// Script is the loaded script for KindLua.
	Script *lua.Script

	// Handler is the invocable to register.
	Handler hook.Invocable
}

// goCandidate builds a candidate from a catalog value.
func goCandidate(v any) (*Candidate, error) {
	rt := reflect.TypeOf(v)
	if rt == nil {
		return nil, fmt.Errorf("%w: nil value", ErrNotHandler)
	}
	ident := rt.String()
	base := rt
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Name() != "" {
		ident = base.Name()
	}

	if _, ok := v.(Handler); !ok {
		return &Candidate{Kind: KindGo, Source: rt.String(), Ident: ident}, ErrNotHandler
	}
	return &Candidate{
		Kind:    KindGo,
		Source:  rt.String(),
		Ident:   ident,
		Value:   v,
		Handler: hook.Method(v, "Handle"),
	}, nil
}

// descriptorExts lists the recognized descriptor file suffixes.
var descriptorExts = []string{".hook.toml", ".hook.yaml", ".hook.yml", ".hook.json"}

// isCandidateFile reports whether path looks like a hook definition.
func isCandidateFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	for _, ext := range descriptorExts {
		if strings.HasSuffix(base, ext) {
			return true
		}
	}
	return strings.HasSuffix(base, ".lua")
}

// stripExt removes a descriptor or Lua suffix from a base name.
func stripExt(base string) string {
	lowerBase := strings.ToLower(base)
	for _, ext := range append(descriptorExts, ".lua") {
		if strings.HasSuffix(lowerBase, ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return base
}

// fileCandidate decodes a descriptor file.
func fileCandidate(path string) (*Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	switch lowerExt := strings.ToLower(filepath.Ext(path)); lowerExt {
	case ".toml":
		err = toml.Unmarshal(data, &fields)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fields)
	case ".json":
		err = json.Unmarshal(data, &fields)
	default:
		err = fmt.Errorf("unsupported descriptor format %s", lowerExt)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}

	c := &Candidate{
		Kind:   KindDescriptorFile,
		Source: path,
		Ident:  stripExt(filepath.Base(path)),
		Fields: fields,
	}

	callback, _ := fields["handler"].(string)
	if callback == "" {
		return c, ErrNoHandler
	}
	h, err := hook.ParseCallback(callback)
	if err != nil {
		return c, err
	}
	c.Handler = h
	return c, nil
}

// luaCandidate loads a Lua script into host under scriptName.
func luaCandidate(host *lua.Host, scriptName, path string) (*Candidate, error) {
	c := &Candidate{
		Kind:   KindLua,
		Source: path,
		Ident:  stripExt(filepath.Base(path)),
	}

	s, err := host.LoadFile(scriptName, path)
	if err != nil {
		return c, err
	}
	if !s.HasFunction(luaEntryPoint) {
		host.Unload(scriptName)
		return c, ErrNoHandleFunction
	}
	c.Script = s
	c.Handler = hook.Ref(scriptName, luaEntryPoint)
	return c, nil
}

// luaEntryPoint is the global function a Lua hook must define.
const luaEntryPoint = "handle"
