package client

import (
	"net/url"
	"sync"

	"github.com/vorma-dev/vorma/pkg/protocol"
)

// =============================================================================
// History Adapter
// =============================================================================

// HistoryAdapter wraps the browser history stack. It tracks the last known
// location, emits the location event on key changes, and turns POP
// transitions into browserHistory navigations (or bare hash scrolls when
// only the fragment moved).
type HistoryAdapter struct {
	stack  HistoryStack
	bus    *EventBus
	scroll *ScrollStateStore

	// navigate re-enters the state manager for POP-driven navigations.
	navigate func(props NavigateProps)

	mu   sync.Mutex
	last Location

	unlisten func()
}

// NewHistoryAdapter wraps a history stack. Call Init before use.
func NewHistoryAdapter(stack HistoryStack, bus *EventBus, scroll *ScrollStateStore, navigate func(props NavigateProps)) *HistoryAdapter {
	return &HistoryAdapter{
		stack:    stack,
		bus:      bus,
		scroll:   scroll,
		navigate: navigate,
	}
}

// Init switches scroll restoration to manual, strips any vorma_reload
// query parameter via a silent replace, and starts listening.
func (h *HistoryAdapter) Init(dom DOM) {
	dom.SetManualScrollRestoration()

	loc := h.stack.Location()
	if cleaned, changed := stripReloadParam(loc); changed {
		h.stack.Replace(cleaned, loc.State)
		loc = h.stack.Location()
	}

	h.mu.Lock()
	h.last = loc
	h.mu.Unlock()

	h.unlisten = h.stack.Listen(h.handleUpdate)
}

// Close stops listening.
func (h *HistoryAdapter) Close() {
	if h.unlisten != nil {
		h.unlisten()
		h.unlisten = nil
	}
}

// Location returns the last known location.
func (h *HistoryAdapter) Location() Location {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Push adds a history entry and remembers it as the last known location.
func (h *HistoryAdapter) Push(href string, state any) {
	h.stack.Push(href, state)
}

// Replace swaps the current history entry.
func (h *HistoryAdapter) Replace(href string, state any) {
	h.stack.Replace(href, state)
}

func (h *HistoryAdapter) handleUpdate(update HistoryUpdate) {
	h.mu.Lock()
	prev := h.last
	h.last = update.Location
	h.mu.Unlock()

	if update.Location.Key != prev.Key {
		h.bus.emitLocation()
	}

	if update.Action != ActionPop {
		return
	}

	if update.Location.SameDocumentPath(prev) {
		// Hash-only movement: no fetch, just scroll.
		if update.Location.Hash != prev.Hash {
			hash := update.Location.Hash
			if hash != "" {
				h.scroll.Apply(&ScrollState{Hash: hash})
			}
		}
		return
	}

	var saved *ScrollState
	if state, ok := h.scroll.Get(update.Location.Key); ok {
		saved = &state
	}
	h.navigate(NavigateProps{
		Href:                 locationHref(update.Location),
		Type:                 NavBrowserHistory,
		ScrollStateToRestore: saved,
	})
}

// locationHref reassembles a location into a relative href.
func locationHref(loc Location) string {
	href := loc.Pathname
	if loc.Search != "" {
		if loc.Search[0] != '?' {
			href += "?"
		}
		href += loc.Search
	}
	if loc.Hash != "" {
		if loc.Hash[0] != '#' {
			href += "#"
		}
		href += loc.Hash
	}
	return href
}

// stripReloadParam removes the vorma_reload query parameter left behind by
// a forced-internal redirect. changed is false when the parameter was not
// present.
func stripReloadParam(loc Location) (href string, changed bool) {
	search := loc.Search
	if search == "" {
		return "", false
	}
	values, err := url.ParseQuery(trimLeadingQuestion(search))
	if err != nil {
		return "", false
	}
	if !values.Has(protocol.QueryReload) {
		return "", false
	}
	values.Del(protocol.QueryReload)

	cleaned := Location{
		Pathname: loc.Pathname,
		Search:   values.Encode(),
		Hash:     loc.Hash,
	}
	return locationHref(cleaned), true
}

func trimLeadingQuestion(s string) string {
	if len(s) > 0 && s[0] == '?' {
		return s[1:]
	}
	return s
}
