package client

import (
	"net/url"
	"sync"
	"time"
)

// defaultPrefetchDelay is how long a hover or focus must last before a
// prefetch begins.
const defaultPrefetchDelay = 100 * time.Millisecond

// =============================================================================
// Link Click Handling
// =============================================================================

// ClickEvent is the distilled anchor click the wasm layer forwards.
type ClickEvent struct {
	// Href is the anchor's href, absolute or relative.
	Href string

	// Target is the anchor's target attribute, empty for none.
	Target string

	// HasDownload reports a download attribute on the anchor.
	HasDownload bool

	MetaKey  bool
	CtrlKey  bool
	ShiftKey bool
	AltKey   bool

	// Button is the mouse button; 0 is primary.
	Button int
}

// HandleClick applies the link filtering rules and, when the core takes
// the navigation, returns true so the caller prevents the default
// browser handling. Fragment-only movements update history and scroll
// without a fetch; everything else becomes a user navigation.
func (m *NavigationStateManager) HandleClick(e ClickEvent) bool {
	if e.MetaKey || e.CtrlKey || e.ShiftKey || e.AltKey {
		return false
	}
	if e.Button != 0 {
		return false
	}
	if e.Target != "" && e.Target != "_self" {
		return false
	}
	if e.HasDownload {
		return false
	}

	current, err := url.Parse(m.dom.Href())
	if err != nil {
		return false
	}
	target, err := current.Parse(e.Href)
	if err != nil {
		return false
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return false
	}
	if !sameOrigin(current, target) {
		return false
	}

	if fragmentOnlyChange(current, target) {
		m.scroll.SaveCurrent(m.history.Location().Key)
		m.history.Push(target.String(), nil)
		if target.Fragment != "" {
			m.scroll.Apply(&ScrollState{Hash: target.Fragment})
		}
		return true
	}

	go m.runNavigation(NavigateProps{Href: target.String(), Type: NavUser})
	return true
}

// fragmentOnlyChange reports whether two URLs differ only in fragment,
// with at least one of the two carrying a fragment.
func fragmentOnlyChange(current, target *url.URL) bool {
	if target.Fragment == "" && current.Fragment == "" {
		return false
	}
	c := *current
	t := *target
	c.Fragment = ""
	t.Fragment = ""
	return c.String() == t.String()
}

// =============================================================================
// Prefetch Handlers
// =============================================================================

// PrefetchOpts configure a prefetch handler set for one link.
type PrefetchOpts struct {
	Href string

	// Delay before the prefetch begins. Zero means the default 100ms.
	Delay time.Duration

	// BeforeBegin runs just before the prefetch is slotted.
	BeforeBegin func()

	// BeforeRender runs on click, before the upgraded navigation renders.
	BeforeRender func()

	// AfterRender runs on click, after the navigation settles.
	AfterRender func()
}

// PrefetchHandlers bind hover/focus/click for one link. Start schedules
// the delayed prefetch, Stop cancels the pending delay, and OnClick
// upgrades the prefetch (if any) into the user navigation.
type PrefetchHandlers struct {
	m    *NavigationStateManager
	opts PrefetchOpts

	mu    sync.Mutex
	timer *time.Timer
}

// GetPrefetchHandlers builds the handler set for a link.
func (m *NavigationStateManager) GetPrefetchHandlers(opts PrefetchOpts) *PrefetchHandlers {
	if opts.Delay <= 0 {
		opts.Delay = defaultPrefetchDelay
	}
	return &PrefetchHandlers{m: m, opts: opts}
}

// Start schedules the prefetch after the configured delay. Repeated calls
// while a delay is pending are no-ops.
func (h *PrefetchHandlers) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		return
	}
	h.timer = time.AfterFunc(h.opts.Delay, h.begin)
}

// Stop cancels a pending delay. An already-started prefetch keeps running
// so its result can still serve a later click.
func (h *PrefetchHandlers) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

func (h *PrefetchHandlers) begin() {
	h.mu.Lock()
	h.timer = nil
	h.mu.Unlock()

	if h.opts.BeforeBegin != nil {
		h.opts.BeforeBegin()
	}

	ctl := h.m.BeginNavigation(NavigateProps{Href: h.opts.Href, Type: NavPrefetch})
	go func() {
		out, err := ctl.Await()
		if err != nil {
			return
		}
		success, ok := out.(OutcomeSuccess)
		if !ok || ctl.entry == nil {
			return
		}
		// Only warm while still a prefetch; an upgrade hands processing to
		// the click-driven navigation.
		h.m.mu.Lock()
		stillPrefetch := ctl.entry.intent == IntentNone
		h.m.mu.Unlock()
		if !stillPrefetch {
			return
		}
		_ = h.m.processSuccessfulNavigation(ctl.entry, success, false)
	}()
}

// OnClick cancels any pending delay and navigates. An in-flight prefetch
// for the same URL is upgraded in place, reusing its fetch.
func (h *PrefetchHandlers) OnClick() {
	h.Stop()
	go func() {
		if h.opts.BeforeRender != nil {
			h.opts.BeforeRender()
		}
		h.m.runNavigation(NavigateProps{Href: h.opts.Href, Type: NavUser})
		if h.opts.AfterRender != nil {
			h.opts.AfterRender()
		}
	}()
}
