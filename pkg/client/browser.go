package client

import (
	"context"
	"net/http"
)

// =============================================================================
// Browser Environment Interfaces
// =============================================================================

// DOM abstracts the parts of the document the navigation core touches.
// The js/wasm build binds this to the real document; tests use fakes.
type DOM interface {
	// Href returns the current location as an absolute URL string.
	Href() string

	// Assign performs a full-document navigation (window.location assignment).
	Assign(href string)

	// SetTitle assigns document.title.
	SetTitle(title string)

	// ScrollTo scrolls the viewport to absolute coordinates.
	ScrollTo(x, y float64)

	// ScrollToID scrolls the element with the given id into view.
	// Returns false when no such element exists.
	ScrollToID(id string) bool

	// ScrollPosition returns the current viewport scroll offsets.
	ScrollPosition() (x, y float64)

	// HasModulePreload reports whether a modulepreload link for href is
	// already present in the document head.
	HasModulePreload(href string) bool

	// InsertModulePreload appends a modulepreload link to the head.
	InsertModulePreload(href string)

	// InsertCSSPreload appends a style preload link and returns a channel
	// that receives nil on load or an error on failure, then closes.
	InsertCSSPreload(href string) <-chan error

	// HasStylesheet reports whether a stylesheet link tagged with the given
	// bundle identifier is already applied.
	HasStylesheet(bundle string) bool

	// AppendStylesheet appends a stylesheet link tagged with bundle.
	AppendStylesheet(bundle, href string)

	// RequestAnimationFrame schedules fn for the next animation frame.
	RequestAnimationFrame(fn func())

	// StartViewTransition wraps commit in a view transition when the
	// platform supports it. ok is false when unsupported, in which case
	// commit has not been run and the caller performs a plain commit.
	// When ok, finished is closed once the transition settles.
	StartViewTransition(commit func()) (finished <-chan struct{}, ok bool)

	// SetManualScrollRestoration switches the browser's own scroll
	// restoration off so the core can manage positions itself.
	SetManualScrollRestoration()
}

// HistoryAction describes how a history transition happened.
type HistoryAction int

const (
	ActionPush HistoryAction = iota
	ActionReplace
	ActionPop
)

// Location is a snapshot of one history entry.
type Location struct {
	Pathname string
	Search   string
	Hash     string
	Key      string
	State    any
}

// SameDocumentPath reports whether two locations share pathname and search.
func (l Location) SameDocumentPath(other Location) bool {
	return l.Pathname == other.Pathname && l.Search == other.Search
}

// HistoryUpdate is delivered to history listeners on every transition.
type HistoryUpdate struct {
	Action   HistoryAction
	Location Location
}

// HistoryStack abstracts the browser history. Push and Replace notify
// listeners; the browser's own back/forward surfaces as ActionPop updates.
type HistoryStack interface {
	Location() Location
	Push(href string, state any)
	Replace(href string, state any)
	Listen(fn func(HistoryUpdate)) (unlisten func())
}

// Storage is a thin session-storage wrapper.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// Doer issues HTTP requests. http.Client satisfies it; the wasm build
// wraps the platform fetch.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Module is a loaded code module exposing named exports.
type Module interface {
	Export(key string) (any, bool)
}

// ModuleLoader resolves an import URL to a loaded module.
type ModuleLoader interface {
	Load(ctx context.Context, url string) (Module, error)
}

// RenderFunc is the host-supplied re-render callback. It is invoked with
// the committed route data and is opaque to the core beyond its error.
type RenderFunc func(data *RouteData) error

// HeadUpdateFunc receives the payload's head elements after a commit.
// The actual head diffing lives outside the core.
type HeadUpdateFunc func(meta, rest []HeadEl)

// Logger is the core's logging hook. Defaults to log.Printf.
type Logger func(format string, args ...any)
