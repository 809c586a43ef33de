// Package luaext implements the scripted extractor: an embedded Lua
// runtime exposing a sandboxed DOM/selector/log API to a user script that
// defines a global `extract` function.
//
// Reference-counted DOM handles. The original design problem this backend
// must solve is "a script may retain a node handle in global state across
// calls; the document behind it must stay valid for exactly as long as that
// handle is reachable." In a garbage-collected host that invariant falls
// out of the runtime for free: every luaNode holds a plain pointer into the
// parsed tree, and the tree's root is reachable from any node in it (via
// Parent/PrevSibling/NextSibling), so holding one node keeps the whole
// document alive without any refcounting field. Only iterator *position* -
// not document lifetime - needs to be tracked per handle, which is exactly
// what the closures below do.
package luaext

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/feedgen/feedgen/internal/date"
	"github.com/feedgen/feedgen/internal/extract"
	"github.com/feedgen/feedgen/internal/htmldom"
	"github.com/feedgen/feedgen/internal/logging"
)

// Config is the parsed `kind = "lua"` extractor subtable.
type Config struct {
	Path string
}

// Extractor hosts one Lua VM per configured script. The VM is created once
// and its top level run once, at New, so the script's init phase (e.g.
// precompiling selectors into globals) happens a single time.
type Extractor struct {
	mu     sync.Mutex
	ls     *lua.LState
	path   string
	logger *slog.Logger
}

// New loads and runs path's top level, then verifies it defined a callable
// global `extract`.
func New(cfg Config, logger *slog.Logger) (*Extractor, error) {
	src, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("could not read script %q: %w", cfg.Path, err)
	}

	ls := lua.NewState()
	e := &Extractor{ls: ls, path: cfg.Path, logger: logger}
	registerHostAPI(ls, logger)

	if err := ls.DoString(string(src)); err != nil {
		ls.Close()
		return nil, fmt.Errorf("could not run script %q: %w", cfg.Path, err)
	}
	if fn, ok := ls.GetGlobal("extract").(*lua.LFunction); !ok || fn == nil {
		ls.Close()
		return nil, fmt.Errorf("script %q does not define a global `extract` function", cfg.Path)
	}
	return e, nil
}

// Close releases the underlying Lua VM.
func (e *Extractor) Close() {
	e.ls.Close()
}

// Extract implements extract.Extractor. The VM is not goroutine-safe, so a
// per-feed mutex serializes calls; in practice the scheduler never runs two
// cycles of the same feed concurrently anyway (§5), so this never blocks.
func (e *Extractor) Extract(body []byte, sourceURL *url.URL) ([]extract.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ls := e.ls
	fn := ls.GetGlobal("extract")

	buf := newBuffer(ls, body)
	if err := ls.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, buf); err != nil {
		return nil, extract.Fail("lua", err)
	}
	ret := ls.Get(-1)
	ls.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, extract.Fail("lua", fmt.Errorf("extract returned %s, expected a table", ret.Type().String()))
	}

	n := tbl.Len()
	entries := make([]extract.Entry, 0, n)
	for i := 1; i <= n; i++ {
		v := tbl.RawGetInt(i)
		row, ok := v.(*lua.LTable)
		if !ok {
			return nil, extract.Fail("lua", fmt.Errorf("entry %d is not a table", i))
		}
		entry, err := entryFromTable(ls, row, sourceURL)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// stringify converts v to a string the way the script's own __tostring
// hook (if any) would, matching the "stringification" the API functions
// and the entry-table id/title fields are specified against.
func stringify(ls *lua.LState, v lua.LValue) string {
	return ls.ToStringMeta(v).String()
}

func entryFromTable(ls *lua.LState, t *lua.LTable, sourceURL *url.URL) (extract.Entry, error) {
	idv := t.RawGetString("id")
	if idv == lua.LNil {
		return extract.Entry{}, extract.Fail("id", fmt.Errorf("missing"))
	}
	id := stringify(ls, idv)
	if id == "" {
		return extract.Entry{}, extract.Fail("id", fmt.Errorf("empty after stringification"))
	}

	titlev := t.RawGetString("title")
	if titlev == lua.LNil {
		return extract.Entry{}, extract.Fail("title", fmt.Errorf("missing"))
	}
	title := stringify(ls, titlev)
	if title == "" {
		return extract.Entry{}, extract.Fail("title", fmt.Errorf("empty after stringification"))
	}

	description := ""
	if descv := t.RawGetString("description"); descv != lua.LNil {
		description = stringify(ls, descv)
	}

	urlv := t.RawGetString("url")
	if urlv == lua.LNil {
		return extract.Entry{}, extract.Fail("url", fmt.Errorf("missing"))
	}
	rawURL := stringify(ls, urlv)
	if rawURL == "" {
		return extract.Entry{}, extract.Fail("url", fmt.Errorf("empty after stringification"))
	}
	resolved, err := date.ResolveURL(sourceURL, rawURL)
	if err != nil {
		return extract.Entry{}, extract.Fail("url", err)
	}

	author := ""
	if authorv := t.RawGetString("author"); authorv != lua.LNil {
		author = stringify(ls, authorv)
	}

	entry := extract.Entry{
		ID:          id,
		Title:       title,
		Description: description,
		URL:         resolved.String(),
		Author:      author,
	}

	if pdv := t.RawGetString("pubDate"); pdv != lua.LNil {
		pubDate, err := parsePubDate(pdv)
		if err != nil {
			return extract.Entry{}, extract.Fail("pubDate", err)
		}
		entry.Published = &pubDate
	}

	return entry, nil
}

func parsePubDate(v lua.LValue) (time.Time, error) {
	t, ok := v.(*lua.LTable)
	if !ok {
		return time.Time{}, fmt.Errorf("pubDate must be a table")
	}

	getInt := func(key string) (int, error) {
		n, ok := t.RawGetString(key).(lua.LNumber)
		if !ok {
			return 0, fmt.Errorf("pubDate.%s is required and must be a number", key)
		}
		return int(n), nil
	}

	year, err := getInt("year")
	if err != nil {
		return time.Time{}, err
	}
	month, err := getInt("month")
	if err != nil {
		return time.Time{}, err
	}
	day, err := getInt("day")
	if err != nil {
		return time.Time{}, err
	}
	hour, err := getInt("hour")
	if err != nil {
		return time.Time{}, err
	}
	minute, err := getInt("minute")
	if err != nil {
		return time.Time{}, err
	}
	second, err := getInt("second")
	if err != nil {
		return time.Time{}, err
	}

	var loc *time.Location
	if tzv := t.RawGetString("tz"); tzv != lua.LNil {
		name, ok := tzv.(lua.LString)
		if !ok {
			return time.Time{}, fmt.Errorf("pubDate.tz must be a string")
		}
		loc, err = time.LoadLocation(string(name))
		if err != nil {
			return time.Time{}, fmt.Errorf("pubDate.tz %q is not a known timezone: %w", name, err)
		}
	} else if offv := t.RawGetString("utcOffset"); offv != lua.LNil {
		off, ok := offv.(lua.LNumber)
		if !ok {
			return time.Time{}, fmt.Errorf("pubDate.utcOffset must be a number")
		}
		loc = time.FixedZone("", int(off)*60)
	} else {
		return time.Time{}, fmt.Errorf("pubDate requires either tz or utcOffset")
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc), nil
}

// --- host API ---------------------------------------------------------

func registerHostAPI(ls *lua.LState, logger *slog.Logger) {
	registerNodeType(ls)
	registerSelectorType(ls)
	registerBufferType(ls)

	mod := ls.NewTable()
	ls.SetGlobal("feedgen", mod)
	ls.SetField(mod, "parseSelector", ls.NewFunction(hostParseSelector))
	ls.SetField(mod, "parseHtml", ls.NewFunction(hostParseHtml))

	logMod := ls.NewTable()
	ls.SetField(mod, "log", logMod)
	levels := map[string]slog.Level{
		"trace": logging.LevelTrace,
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for name, level := range levels {
		level := level
		ls.SetField(logMod, name, ls.NewFunction(makeLogFunc(logger, level)))
	}

	ls.SetGlobal("print", ls.NewFunction(makeLogFunc(logger, slog.LevelInfo)))
	ls.SetGlobal("warn", ls.NewFunction(makeLogFunc(logger, slog.LevelWarn)))
}

func makeLogFunc(logger *slog.Logger, level slog.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			parts = append(parts, stringify(L, L.Get(i)))
		}
		msg := strings.Join(parts, " ")
		logger.Log(context.Background(), level, msg)
		return 0
	}
}

// --- buffer (source handle) --------------------------------------------

const bufferTypeName = "buffer"

type luaBuffer struct {
	data []byte
}

func registerBufferType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(bufferTypeName)
	ls.SetField(mt, "__index", ls.SetFuncs(ls.NewTable(), map[string]lua.LGFunction{
		"len": func(L *lua.LState) int {
			buf := checkBuffer(L, 1)
			L.Push(lua.LNumber(len(buf.data)))
			return 1
		},
		"string": func(L *lua.LState) int {
			buf := checkBuffer(L, 1)
			L.Push(lua.LString(string(buf.data)))
			return 1
		},
	}))
	ls.SetField(mt, "__tostring", ls.NewFunction(func(L *lua.LState) int {
		buf := checkBuffer(L, 1)
		L.Push(lua.LString(string(buf.data)))
		return 1
	}))
	ls.SetField(mt, "__len", ls.NewFunction(func(L *lua.LState) int {
		buf := checkBuffer(L, 1)
		L.Push(lua.LNumber(len(buf.data)))
		return 1
	}))
}

func newBuffer(ls *lua.LState, data []byte) *lua.LUserData {
	ud := ls.NewUserData()
	ud.Value = &luaBuffer{data: data}
	ud.Metatable = ls.GetTypeMetatable(bufferTypeName)
	return ud
}

func checkBuffer(L *lua.LState, idx int) *luaBuffer {
	ud, ok := L.CheckUserData(idx).Value.(*luaBuffer)
	if !ok {
		L.ArgError(idx, "expected a buffer")
	}
	return ud
}

// --- selector -----------------------------------------------------------

const selectorTypeName = "selector"

func registerSelectorType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(selectorTypeName)
	ls.SetField(mt, "__tostring", ls.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString("selector"))
		return 1
	}))
}

func hostParseSelector(L *lua.LState) int {
	s := L.CheckString(1)
	sel, err := htmldom.ParseSelector(s)
	if err != nil {
		L.RaiseError("%s", err.Error())
	}
	ud := L.NewUserData()
	ud.Value = sel
	ud.Metatable = L.GetTypeMetatable(selectorTypeName)
	L.Push(ud)
	return 1
}

func selectorFromArg(L *lua.LState, idx int) *htmldom.Selector {
	v := L.Get(idx)
	switch t := v.(type) {
	case lua.LString:
		sel, err := htmldom.ParseSelector(string(t))
		if err != nil {
			L.RaiseError("%s", err.Error())
		}
		return sel
	case *lua.LUserData:
		sel, ok := t.Value.(*htmldom.Selector)
		if !ok {
			L.ArgError(idx, "expected a selector or string")
		}
		return sel
	default:
		L.ArgError(idx, "expected a selector or string")
		return nil
	}
}

// --- document parsing -----------------------------------------------------

func hostParseHtml(L *lua.LState) int {
	v := L.Get(1)
	var data []byte
	switch t := v.(type) {
	case lua.LString:
		data = []byte(string(t))
	case *lua.LUserData:
		buf, ok := t.Value.(*luaBuffer)
		if !ok {
			L.ArgError(1, "expected a buffer or string")
		}
		data = buf.data
	default:
		L.ArgError(1, "expected a buffer or string")
	}
	root, err := htmldom.ParseBytes(data, "")
	if err != nil {
		L.RaiseError("%s", err.Error())
	}
	L.Push(pushNode(L, root))
	return 1
}

// --- DOM node -------------------------------------------------------------

const nodeTypeName = "node"

func pushNode(L *lua.LState, n *htmldom.Node) lua.LValue {
	if n == nil {
		return lua.LNil
	}
	ud := L.NewUserData()
	ud.Value = n
	ud.Metatable = L.GetTypeMetatable(nodeTypeName)
	return ud
}

func checkNode(L *lua.LState, idx int) *htmldom.Node {
	n, ok := L.CheckUserData(idx).Value.(*htmldom.Node)
	if !ok {
		L.ArgError(idx, "expected a node")
	}
	return n
}

func nodeTypeString(n *htmldom.Node) string {
	switch n.Type() {
	case htmldom.TypeDocument:
		return "document"
	case htmldom.TypeDocumentFragment:
		return "document-fragment"
	case htmldom.TypeDoctype:
		return "doctype"
	case htmldom.TypeComment:
		return "comment"
	case htmldom.TypeText:
		return "text"
	case htmldom.TypeElement:
		return "element"
	default:
		return "processing-instruction"
	}
}

func makeNodeIterator(nodes []*htmldom.Node) lua.LGFunction {
	i := 0
	return func(L *lua.LState) int {
		if i >= len(nodes) {
			L.Push(lua.LNil)
			return 1
		}
		n := nodes[i]
		i++
		L.Push(pushNode(L, n))
		return 1
	}
}

func makeStringIterator(values []string) lua.LGFunction {
	i := 0
	return func(L *lua.LState) int {
		if i >= len(values) {
			L.Push(lua.LNil)
			return 1
		}
		v := values[i]
		i++
		L.Push(lua.LString(v))
		return 1
	}
}

func makeAttrIterator(attrs []htmldom.Attr) lua.LGFunction {
	i := 0
	return func(L *lua.LState) int {
		if i >= len(attrs) {
			L.Push(lua.LNil)
			return 1
		}
		a := attrs[i]
		i++
		L.Push(lua.LString(a.Name))
		L.Push(lua.LString(a.Value))
		return 2
	}
}

func registerNodeType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(nodeTypeName)
	methods := map[string]lua.LGFunction{
		"type": func(L *lua.LState) int {
			L.Push(lua.LString(nodeTypeString(checkNode(L, 1))))
			return 1
		},
		"parent": func(L *lua.LState) int {
			L.Push(pushNode(L, checkNode(L, 1).Parent()))
			return 1
		},
		"prevSibling": func(L *lua.LState) int {
			L.Push(pushNode(L, checkNode(L, 1).PrevSibling()))
			return 1
		},
		"nextSibling": func(L *lua.LState) int {
			L.Push(pushNode(L, checkNode(L, 1).NextSibling()))
			return 1
		},
		"firstChildNode": func(L *lua.LState) int {
			L.Push(pushNode(L, checkNode(L, 1).FirstChild()))
			return 1
		},
		"lastChildNode": func(L *lua.LState) int {
			L.Push(pushNode(L, checkNode(L, 1).LastChild()))
			return 1
		},
		"childNodes": func(L *lua.LState) int {
			n := checkNode(L, 1)
			L.Push(L.NewFunction(makeNodeIterator(n.ChildNodes())))
			return 1
		},
		"descendantNodes": func(L *lua.LState) int {
			n := checkNode(L, 1)
			L.Push(L.NewFunction(makeNodeIterator(n.DescendantNodes())))
			return 1
		},
		"name": func(L *lua.LState) int {
			L.Push(lua.LString(checkNode(L, 1).TagName()))
			return 1
		},
		"html": func(L *lua.LState) int {
			s, err := checkNode(L, 1).HTML()
			if err != nil {
				L.RaiseError("%s", err.Error())
			}
			L.Push(lua.LString(s))
			return 1
		},
		"innerHtml": func(L *lua.LState) int {
			s, err := checkNode(L, 1).InnerHTML()
			if err != nil {
				L.RaiseError("%s", err.Error())
			}
			L.Push(lua.LString(s))
			return 1
		},
		"attr": func(L *lua.LState) int {
			name := L.CheckString(2)
			v, ok := checkNode(L, 1).Attr(name)
			if !ok {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(lua.LString(v))
			return 1
		},
		"attrs": func(L *lua.LState) int {
			n := checkNode(L, 1)
			L.Push(L.NewFunction(makeAttrIterator(n.Attrs())))
			return 1
		},
		"hasClass": func(L *lua.LState) int {
			name := L.CheckString(2)
			L.Push(lua.LBool(checkNode(L, 1).HasClass(name)))
			return 1
		},
		"classes": func(L *lua.LState) int {
			n := checkNode(L, 1)
			L.Push(L.NewFunction(makeStringIterator(n.Classes())))
			return 1
		},
		"text": func(L *lua.LState) int {
			L.Push(lua.LString(checkNode(L, 1).Text()))
			return 1
		},
		"childElements": func(L *lua.LState) int {
			n := checkNode(L, 1)
			L.Push(L.NewFunction(makeNodeIterator(n.ChildElements())))
			return 1
		},
		"descendantElements": func(L *lua.LState) int {
			n := checkNode(L, 1)
			L.Push(L.NewFunction(makeNodeIterator(n.DescendantElements())))
			return 1
		},
		"select": func(L *lua.LState) int {
			n := checkNode(L, 1)
			sel := selectorFromArg(L, 2)
			L.Push(L.NewFunction(makeNodeIterator(n.Select(sel))))
			return 1
		},
	}
	ls.SetField(mt, "__index", ls.SetFuncs(ls.NewTable(), methods))
	ls.SetField(mt, "__tostring", ls.NewFunction(func(L *lua.LState) int {
		n := checkNode(L, 1)
		L.Push(lua.LString(fmt.Sprintf("<%s node>", nodeTypeString(n))))
		return 1
	}))
}
