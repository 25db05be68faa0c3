//go:build js && wasm

package browser

import (
	"net/http"
	"strconv"
	"sync"
	"syscall/js"

	"github.com/vorma-dev/vorma/pkg/client"
)

// Env bundles the live browser bindings for client.Config.
type Env struct {
	DOM     client.DOM
	History client.HistoryStack
	Storage client.Storage
	HTTP    client.Doer
}

// NewEnv binds against the global window object.
func NewEnv() *Env {
	return &Env{
		DOM:     &domBinding{},
		History: newHistoryBinding(),
		Storage: &sessionStorage{},
		HTTP:    http.DefaultClient,
	}
}

// =============================================================================
// DOM
// =============================================================================

type domBinding struct{}

func window() js.Value {
	return js.Global()
}

func document() js.Value {
	return js.Global().Get("document")
}

func (d *domBinding) Href() string {
	return window().Get("location").Get("href").String()
}

func (d *domBinding) Assign(href string) {
	window().Get("location").Call("assign", href)
}

func (d *domBinding) SetTitle(title string) {
	document().Set("title", title)
}

func (d *domBinding) ScrollTo(x, y float64) {
	window().Call("scrollTo", x, y)
}

func (d *domBinding) ScrollToID(id string) bool {
	el := document().Call("getElementById", id)
	if el.IsNull() || el.IsUndefined() {
		return false
	}
	el.Call("scrollIntoView")
	return true
}

func (d *domBinding) ScrollPosition() (x, y float64) {
	return window().Get("scrollX").Float(), window().Get("scrollY").Float()
}

func (d *domBinding) HasModulePreload(href string) bool {
	sel := `link[rel="modulepreload"][href=` + strconv.Quote(href) + `]`
	return !document().Call("querySelector", sel).IsNull()
}

func (d *domBinding) InsertModulePreload(href string) {
	link := document().Call("createElement", "link")
	link.Set("rel", "modulepreload")
	link.Set("href", href)
	document().Get("head").Call("appendChild", link)
}

func (d *domBinding) InsertCSSPreload(href string) <-chan error {
	done := make(chan error, 1)
	link := document().Call("createElement", "link")
	link.Set("rel", "preload")
	link.Set("as", "style")
	link.Set("href", href)

	var onLoad, onError js.Func
	release := func() {
		onLoad.Release()
		onError.Release()
	}
	onLoad = js.FuncOf(func(js.Value, []js.Value) any {
		done <- nil
		close(done)
		release()
		return nil
	})
	onError = js.FuncOf(func(js.Value, []js.Value) any {
		done <- &cssLoadError{href: href}
		close(done)
		release()
		return nil
	})
	link.Call("addEventListener", "load", onLoad)
	link.Call("addEventListener", "error", onError)
	document().Get("head").Call("appendChild", link)
	return done
}

type cssLoadError struct{ href string }

func (e *cssLoadError) Error() string {
	return "css preload failed: " + e.href
}

func (d *domBinding) HasStylesheet(bundle string) bool {
	sel := `link[rel="stylesheet"][data-vorma-css-bundle=` + strconv.Quote(bundle) + `]`
	return !document().Call("querySelector", sel).IsNull()
}

func (d *domBinding) AppendStylesheet(bundle, href string) {
	link := document().Call("createElement", "link")
	link.Set("rel", "stylesheet")
	link.Set("href", href)
	link.Call("setAttribute", "data-vorma-css-bundle", bundle)
	document().Get("head").Call("appendChild", link)
}

func (d *domBinding) RequestAnimationFrame(fn func()) {
	var cb js.Func
	cb = js.FuncOf(func(js.Value, []js.Value) any {
		fn()
		cb.Release()
		return nil
	})
	window().Call("requestAnimationFrame", cb)
}

func (d *domBinding) StartViewTransition(commit func()) (<-chan struct{}, bool) {
	start := document().Get("startViewTransition")
	if start.IsUndefined() {
		return nil, false
	}

	finished := make(chan struct{})
	var commitCb, finishCb js.Func
	commitCb = js.FuncOf(func(js.Value, []js.Value) any {
		commit()
		commitCb.Release()
		return nil
	})
	transition := document().Call("startViewTransition", commitCb)
	finishCb = js.FuncOf(func(js.Value, []js.Value) any {
		close(finished)
		finishCb.Release()
		return nil
	})
	transition.Get("finished").Call("then", finishCb)
	return finished, true
}

func (d *domBinding) SetManualScrollRestoration() {
	window().Get("history").Set("scrollRestoration", "manual")
}

// =============================================================================
// History
// =============================================================================

// historyBinding wraps window.history, tagging each entry with a key so
// scroll positions survive back/forward.
type historyBinding struct {
	mu        sync.Mutex
	listeners []func(client.HistoryUpdate)
	popFn     js.Func
}

func newHistoryBinding() *historyBinding {
	h := &historyBinding{}
	h.ensureKey()
	h.popFn = js.FuncOf(func(js.Value, []js.Value) any {
		h.dispatch(client.HistoryUpdate{Action: client.ActionPop, Location: h.Location()})
		return nil
	})
	window().Call("addEventListener", "popstate", h.popFn)
	return h
}

func (h *historyBinding) Location() client.Location {
	loc := window().Get("location")
	state := window().Get("history").Get("state")
	key := ""
	var userState any
	if state.Type() == js.TypeObject {
		if k := state.Get("__vormaKey"); k.Type() == js.TypeString {
			key = k.String()
		}
		if u := state.Get("__vormaState"); !u.IsUndefined() {
			userState = jsToAny(u)
		}
	}
	return client.Location{
		Pathname: loc.Get("pathname").String(),
		Search:   loc.Get("search").String(),
		Hash:     loc.Get("hash").String(),
		Key:      key,
		State:    userState,
	}
}

func (h *historyBinding) Push(href string, state any) {
	window().Get("history").Call("pushState", wrapState(state), "", href)
	h.dispatch(client.HistoryUpdate{Action: client.ActionPush, Location: h.Location()})
}

func (h *historyBinding) Replace(href string, state any) {
	window().Get("history").Call("replaceState", wrapState(state), "", href)
	h.dispatch(client.HistoryUpdate{Action: client.ActionReplace, Location: h.Location()})
}

func (h *historyBinding) Listen(fn func(client.HistoryUpdate)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
	idx := len(h.listeners) - 1
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.listeners[idx] = nil
	}
}

func (h *historyBinding) dispatch(update client.HistoryUpdate) {
	h.mu.Lock()
	listeners := append([]func(client.HistoryUpdate)(nil), h.listeners...)
	h.mu.Unlock()
	for _, fn := range listeners {
		if fn != nil {
			fn(update)
		}
	}
}

// ensureKey tags the current entry when it has no key yet (initial load).
func (h *historyBinding) ensureKey() {
	state := window().Get("history").Get("state")
	if state.Type() == js.TypeObject && state.Get("__vormaKey").Type() == js.TypeString {
		return
	}
	window().Get("history").Call("replaceState", wrapState(nil), "")
}

var keyCounter int
var keyMu sync.Mutex

func nextKey() string {
	keyMu.Lock()
	defer keyMu.Unlock()
	keyCounter++
	return "k" + strconv.Itoa(keyCounter)
}

func wrapState(state any) js.Value {
	obj := js.Global().Get("Object").New()
	obj.Set("__vormaKey", nextKey())
	if state != nil {
		obj.Set("__vormaState", js.ValueOf(state))
	}
	return obj
}

func jsToAny(v js.Value) any {
	switch v.Type() {
	case js.TypeString:
		return v.String()
	case js.TypeNumber:
		return v.Float()
	case js.TypeBoolean:
		return v.Bool()
	default:
		return nil
	}
}

// =============================================================================
// Session Storage
// =============================================================================

type sessionStorage struct{}

func storage() js.Value {
	return window().Get("sessionStorage")
}

func (s *sessionStorage) Get(key string) (string, bool) {
	v := storage().Call("getItem", key)
	if v.IsNull() {
		return "", false
	}
	return v.String(), true
}

func (s *sessionStorage) Set(key, value string) {
	storage().Call("setItem", key, value)
}

func (s *sessionStorage) Remove(key string) {
	storage().Call("removeItem", key)
}
