package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Fake Browser Environment
// =============================================================================

type fakeDOM struct {
	mu sync.Mutex

	href     string
	title    string
	scrollX  float64
	scrollY  float64
	assigned []string

	modulePreloads []string
	stylesheets    map[string]string
	scrolledToIDs  []string

	// cssFailures lists hrefs whose preload settles with an error.
	cssFailures map[string]bool

	viewTransitions      int
	supportsTransitions  bool
	manualRestorationSet bool
}

func newFakeDOM(href string) *fakeDOM {
	return &fakeDOM{
		href:        href,
		stylesheets: map[string]string{},
		cssFailures: map[string]bool{},
	}
}

func (d *fakeDOM) Href() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.href
}

func (d *fakeDOM) setHref(href string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.href = href
}

func (d *fakeDOM) Assign(href string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assigned = append(d.assigned, href)
}

func (d *fakeDOM) SetTitle(title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.title = title
}

func (d *fakeDOM) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title
}

func (d *fakeDOM) ScrollTo(x, y float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scrollX, d.scrollY = x, y
}

func (d *fakeDOM) ScrollToID(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scrolledToIDs = append(d.scrolledToIDs, id)
	return true
}

func (d *fakeDOM) ScrollPosition() (float64, float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scrollX, d.scrollY
}

func (d *fakeDOM) HasModulePreload(href string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range d.modulePreloads {
		if h == href {
			return true
		}
	}
	return false
}

func (d *fakeDOM) InsertModulePreload(href string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.modulePreloads = append(d.modulePreloads, href)
}

func (d *fakeDOM) InsertCSSPreload(href string) <-chan error {
	d.mu.Lock()
	fail := d.cssFailures[href]
	d.mu.Unlock()

	ch := make(chan error, 1)
	if fail {
		ch <- &StatusError{Code: 404}
	} else {
		ch <- nil
	}
	close(ch)
	return ch
}

func (d *fakeDOM) HasStylesheet(bundle string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.stylesheets[bundle]
	return ok
}

func (d *fakeDOM) AppendStylesheet(bundle, href string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stylesheets[bundle] = href
}

func (d *fakeDOM) RequestAnimationFrame(fn func()) {
	fn()
}

func (d *fakeDOM) StartViewTransition(commit func()) (<-chan struct{}, bool) {
	d.mu.Lock()
	supported := d.supportsTransitions
	if supported {
		d.viewTransitions++
	}
	d.mu.Unlock()
	if !supported {
		return nil, false
	}
	commit()
	finished := make(chan struct{})
	close(finished)
	return finished, true
}

func (d *fakeDOM) SetManualScrollRestoration() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.manualRestorationSet = true
}

// =============================================================================
// Fake History
// =============================================================================

type histEntry struct {
	href  string
	key   string
	state any
}

// fakeHistory keeps the fake DOM's href in lockstep with the stack, the
// way the real browser does.
type fakeHistory struct {
	mu        sync.Mutex
	dom       *fakeDOM
	entries   []histEntry
	idx       int
	keyN      int
	listeners []func(HistoryUpdate)
}

func newFakeHistory(dom *fakeDOM) *fakeHistory {
	h := &fakeHistory{dom: dom}
	h.entries = []histEntry{{href: dom.Href(), key: h.nextKey()}}
	return h
}

func (h *fakeHistory) nextKey() string {
	h.keyN++
	return "key" + strconv.Itoa(h.keyN)
}

func (h *fakeHistory) Location() Location {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.locationLocked()
}

func (h *fakeHistory) locationLocked() Location {
	entry := h.entries[h.idx]
	u, _ := url.Parse(entry.href)
	return Location{
		Pathname: u.Path,
		Search:   u.RawQuery,
		Hash:     u.Fragment,
		Key:      entry.key,
		State:    entry.state,
	}
}

func (h *fakeHistory) Push(href string, state any) {
	h.mu.Lock()
	abs := h.resolveLocked(href)
	h.entries = append(h.entries[:h.idx+1], histEntry{href: abs, key: h.nextKey(), state: state})
	h.idx = len(h.entries) - 1
	loc := h.locationLocked()
	h.mu.Unlock()
	h.dom.setHref(abs)
	h.dispatch(HistoryUpdate{Action: ActionPush, Location: loc})
}

func (h *fakeHistory) Replace(href string, state any) {
	h.mu.Lock()
	abs := h.resolveLocked(href)
	h.entries[h.idx] = histEntry{href: abs, key: h.nextKey(), state: state}
	loc := h.locationLocked()
	h.mu.Unlock()
	h.dom.setHref(abs)
	h.dispatch(HistoryUpdate{Action: ActionReplace, Location: loc})
}

// Back pops one entry, like the browser back button.
func (h *fakeHistory) Back() {
	h.mu.Lock()
	if h.idx == 0 {
		h.mu.Unlock()
		return
	}
	h.idx--
	entry := h.entries[h.idx]
	loc := h.locationLocked()
	h.mu.Unlock()
	h.dom.setHref(entry.href)
	h.dispatch(HistoryUpdate{Action: ActionPop, Location: loc})
}

func (h *fakeHistory) Listen(fn func(HistoryUpdate)) func() {
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

func (h *fakeHistory) dispatch(update HistoryUpdate) {
	h.mu.Lock()
	listeners := append([]func(HistoryUpdate){}, h.listeners...)

	h.mu.Unlock()
	for _, fn := range listeners {
		if fn != nil {
			fn(update)
		}
	}
}

func (h *fakeHistory) resolveLocked(href string) string {
	base, err := url.Parse(h.entries[h.idx].href)
	if err != nil {
		return href
	}
	abs, err := base.Parse(href)
	if err != nil {
		return href
	}
	return abs.String()
}

// =============================================================================
// Memory Storage, Modules, Render Recorder
// =============================================================================

type memStorage struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemStorage() *memStorage {
	return &memStorage{data: map[string]string{}}
}

func (s *memStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *memStorage) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func (s *memStorage) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

type fakeModule struct {
	exports map[string]any
}

func (m *fakeModule) Export(key string) (any, bool) {
	v, ok := m.exports[key]
	return v, ok
}

type fakeModuleLoader struct {
	mu      sync.Mutex
	loaded  []string
	failing map[string]bool
}

func newFakeModuleLoader() *fakeModuleLoader {
	return &fakeModuleLoader{failing: map[string]bool{}}
}

func (l *fakeModuleLoader) Load(ctx context.Context, u string) (Module, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failing[u] {
		return nil, &StatusError{Code: 404}
	}
	l.loaded = append(l.loaded, u)
	return &fakeModule{exports: map[string]any{
		"default":       "component:" + u,
		"ErrorBoundary": "boundary:" + u,
	}}, nil
}

type renderRecorder struct {
	mu    sync.Mutex
	calls []*RouteData
	fail  bool
}

func (r *renderRecorder) render(data *RouteData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return &StatusError{Code: 500}
	}
	r.calls = append(r.calls, data)
	return nil
}

func (r *renderRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// =============================================================================
// Test Harness
// =============================================================================

type testEnv struct {
	rt      *Runtime
	dom     *fakeDOM
	history *fakeHistory
	storage *memStorage
	modules *fakeModuleLoader
	render  *renderRecorder
	server  *httptest.Server
}

// newTestEnv assembles a runtime against an httptest server that plays
// the Vorma route handler. The fake DOM starts on the server's origin so
// fetches, origin checks, and history stay consistent.
func newTestEnv(t *testing.T, handler http.Handler) *testEnv {
	return newTestEnvAt(t, handler, "/")
}

// newTestEnvAt starts the fake page on a specific path.
func newTestEnvAt(t *testing.T, handler http.Handler, path string) *testEnv {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	dom := newFakeDOM(server.URL + path)
	history := newFakeHistory(dom)
	storage := newMemStorage()
	modules := newFakeModuleLoader()
	render := &renderRecorder{}

	rt, err := New(Config{
		DOM:        dom,
		History:    history,
		Storage:    storage,
		HTTPClient: server.Client(),
		Modules:    modules,
		Render:     render.render,
		Logf:       t.Logf,
		BuildID:    "build-1",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rt.Init()
	t.Cleanup(rt.Close)

	return &testEnv{
		rt:      rt,
		dom:     dom,
		history: history,
		storage: storage,
		modules: modules,
		render:  render,
		server:  server,
	}
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// payloadHandler serves a minimal successful route payload.
func payloadHandler(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Vorma-Build-Id", "build-1")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"matchedPatterns": ["/"],
			"loadersData": [null],
			"importURLs": ["root.js"],
			"exportKeys": ["default"],
			"errorExportKeys": [""],
			"hasRootData": false,
			"params": {},
			"splatValues": [],
			"title": {"dangerousInnerHTML": ` + strconv.Quote(title) + `}
		}`))
	}
}
