package client

import (
	"context"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// revalidationCoalesce merges revalidation requests that arrive within
// one window into a single fetch.
const revalidationCoalesce = 8 * time.Millisecond

// =============================================================================
// Navigation State Manager
// =============================================================================

// NavigationStateManager is the coordination core: it slots every incoming
// navigation request into the active slot, the prefetch cache, or the
// revalidation slot; upgrades prefetches in place on click; cancels
// superseded work; tracks submissions; and derives the busy status.
//
// It exclusively owns all navigation and submission entries. No other
// component retains entry references across completion.
type NavigationStateManager struct {
	dom      DOM
	state    *RouteState
	bus      *EventBus
	loaders  *loaderRegistry
	resolver *RedirectResolver
	assets   *AssetLoader
	renderer *RenderPipeline
	scroll   *ScrollStateStore
	history  *HistoryAdapter
	logf     Logger
	metrics  *NavMetrics
	tracer   trace.Tracer
	devMode  bool

	mu           sync.Mutex
	active       *NavigationEntry
	prefetches   map[string]*NavigationEntry
	revalidation *NavigationEntry
	submissions  map[string]*SubmissionEntry

	dispatcher *statusDispatcher
}

// SubmissionEntry tracks one in-flight form submission.
type SubmissionEntry struct {
	key       string
	cancel    context.CancelCauseFunc
	startedAt time.Time

	// skipGlobalLoadingIndicator keeps this submission out of the derived
	// isSubmitting status.
	skipGlobalLoadingIndicator bool
}

func newNavigationStateManager(dom DOM, state *RouteState, bus *EventBus, loaders *loaderRegistry, assets *AssetLoader, logf Logger, metrics *NavMetrics, devMode bool) *NavigationStateManager {
	m := &NavigationStateManager{
		dom:         dom,
		state:       state,
		bus:         bus,
		loaders:     loaders,
		assets:      assets,
		logf:        logf,
		metrics:     metrics,
		tracer:      otel.Tracer("vorma/client"),
		devMode:     devMode,
		prefetches:  make(map[string]*NavigationEntry),
		submissions: make(map[string]*SubmissionEntry),
	}
	m.dispatcher = newStatusDispatcher(bus, m.Status)
	return m
}

// Status derives the live busy state. Never debounced.
func (m *NavigationStateManager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *NavigationStateManager) statusLocked() Status {
	var s Status
	if m.active != nil && m.active.intent == IntentNavigate && m.active.phase != PhaseComplete {
		s.IsNavigating = true
	}
	if m.revalidation != nil && m.revalidation.phase != PhaseComplete {
		s.IsRevalidating = true
	}
	for _, sub := range m.submissions {
		if !sub.skipGlobalLoadingIndicator {
			s.IsSubmitting = true
			break
		}
	}
	return s
}

// =============================================================================
// Slotting
// =============================================================================

// BeginNavigation slots a navigation request and starts its fetch phase.
// It returns the control of the entry serving the request, which may be a
// pre-existing prefetch or revalidation upgraded in place.
func (m *NavigationStateManager) BeginNavigation(props NavigateProps) *NavigationControl {
	target, err := m.resolveTarget(props.Href, props.Type)
	if err != nil {
		ctl := newDetachedControl()
		ctl.outcome.resolve(nil, err)
		return ctl
	}
	targetHref := target.String()

	m.mu.Lock()

	switch props.Type {
	case NavUser:
		if m.active != nil && m.active.TargetHref() == targetHref {
			ctl := m.active.control
			m.mu.Unlock()
			return ctl
		}

		if m.active != nil {
			m.active.control.Abort(ErrAborted)
			m.active = nil
		}
		for href, p := range m.prefetches {
			if href != targetHref {
				p.control.Abort(ErrAborted)
				delete(m.prefetches, href)
				m.metrics.countPrefetchEvicted()
			}
		}
		if m.revalidation != nil && m.revalidation.TargetHref() != targetHref {
			m.revalidation.control.Abort(ErrAborted)
			m.revalidation = nil
		}

		if p, ok := m.prefetches[targetHref]; ok {
			m.upgradeLocked(p, props)
			delete(m.prefetches, targetHref)
			m.active = p
			ctl := p.control
			m.mu.Unlock()
			m.dispatcher.schedule()
			return ctl
		}
		if r := m.revalidation; r != nil && r.TargetHref() == targetHref {
			m.upgradeLocked(r, props)
			m.revalidation = nil
			m.active = r
			ctl := r.control
			m.mu.Unlock()
			m.dispatcher.schedule()
			return ctl
		}

		entry := m.newEntry(props, NavUser, IntentNavigate, target)
		m.active = entry
		m.mu.Unlock()
		m.dispatcher.schedule()
		go m.runLifecycle(entry)
		return entry.control

	case NavPrefetch:
		if m.active != nil && m.active.TargetHref() == targetHref {
			ctl := m.active.control
			m.mu.Unlock()
			return ctl
		}
		if p, ok := m.prefetches[targetHref]; ok {
			ctl := p.control
			m.mu.Unlock()
			return ctl
		}
		if r := m.revalidation; r != nil && r.TargetHref() == targetHref {
			ctl := r.control
			m.mu.Unlock()
			return ctl
		}
		if equalIgnoringFragment(target, m.dom.Href()) {
			m.mu.Unlock()
			ctl := newDetachedControl()
			ctl.outcome.resolve(OutcomeAborted{}, nil)
			return ctl
		}
		entry := m.newEntry(props, NavPrefetch, IntentNone, target)
		m.prefetches[targetHref] = entry
		m.mu.Unlock()
		go m.runLifecycle(entry)
		return entry.control

	case NavRevalidation:
		if r := m.revalidation; r != nil && time.Since(r.startedAt) < revalidationCoalesce {
			ctl := r.control
			m.mu.Unlock()
			return ctl
		}
		if m.revalidation != nil {
			m.revalidation.control.Abort(ErrAborted)
		}
		entry := m.newEntry(props, NavRevalidation, IntentRevalidate, target)
		m.revalidation = entry
		m.mu.Unlock()
		m.dispatcher.schedule()
		go m.runLifecycle(entry)
		return entry.control

	default: // NavBrowserHistory, NavRedirect, NavAction
		if m.active != nil {
			m.active.control.Abort(ErrAborted)
		}
		entry := m.newEntry(props, props.Type, IntentNavigate, target)
		m.active = entry
		m.mu.Unlock()
		m.dispatcher.schedule()
		go m.runLifecycle(entry)
		return entry.control
	}
}

// upgradeLocked promotes a prefetch or pending revalidation into the
// active user navigation without disturbing its in-flight fetch. When the
// entry already completed as a pure prefetch, its phase rewinds to
// waiting so the cached outcome can be re-processed with a render.
func (m *NavigationStateManager) upgradeLocked(e *NavigationEntry, props NavigateProps) {
	e.navType = NavUser
	e.intent = IntentNavigate
	e.props = props
	if e.phase == PhaseComplete {
		e.phase = PhaseWaiting
	}
}

func (m *NavigationStateManager) newEntry(props NavigateProps, t NavigationType, intent NavigationIntent, target *url.URL) *NavigationEntry {
	ctx, cancel := context.WithCancelCause(context.Background())
	entry := &NavigationEntry{
		navType:    t,
		intent:     intent,
		phase:      PhaseFetching,
		startedAt:  time.Now(),
		targetURL:  target,
		originHref: m.dom.Href(),
		props:      props,
	}
	entry.control = &NavigationControl{
		signal:  ctx,
		abort:   cancel,
		outcome: newOutcomeFuture(),
		entry:   entry,
	}
	return entry
}

// resolveTarget makes the href absolute against the current location.
// Revalidations always target the live location regardless of the href.
func (m *NavigationStateManager) resolveTarget(href string, t NavigationType) (*url.URL, error) {
	base, err := url.Parse(m.dom.Href())
	if err != nil {
		return nil, err
	}
	if t == NavRevalidation {
		return base, nil
	}
	return base.Parse(href)
}

// newDetachedControl builds a control with no slotted entry, used for
// immediately-settled results.
func newDetachedControl() *NavigationControl {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &NavigationControl{signal: ctx, abort: cancel, outcome: newOutcomeFuture()}
}

// =============================================================================
// Lifecycle
// =============================================================================

// runLifecycle drives one entry through its fetch phase and resolves the
// outcome future. Revalidations additionally self-complete, since no
// caller awaits them.
func (m *NavigationStateManager) runLifecycle(entry *NavigationEntry) {
	_, span := m.tracer.Start(context.Background(), "vorma.navigation",
		trace.WithAttributes(
			attribute.String("vorma.nav_type", entry.navType.String()),
			attribute.String("vorma.target", entry.TargetHref()),
		))
	defer span.End()

	out, err := m.fetchPhase(entry)
	if err != nil {
		if isAbort(err) {
			entry.control.outcome.resolve(OutcomeAborted{}, nil)
		} else {
			span.RecordError(err)
			if entry.navType == NavRevalidation {
				// No caller awaits revalidations; log here.
				m.logf("Navigation failed: %v", err)
				m.metrics.countNavigation(entry.navType, "error")
			}
			entry.control.outcome.resolve(nil, err)
		}
		m.removeEntry(entry)
		m.dispatcher.schedule()
		return
	}

	if _, aborted := out.(OutcomeAborted); aborted {
		entry.control.outcome.resolve(out, nil)
		m.removeEntry(entry)
		m.dispatcher.schedule()
		return
	}

	entry.control.outcome.resolve(out, nil)

	if entry.navType == NavRevalidation {
		m.settleRevalidation(entry)
	}
}

// settleRevalidation drives a revalidation outcome to completion. The
// lifecycle only hands over settled, non-error outcomes.
func (m *NavigationStateManager) settleRevalidation(entry *NavigationEntry) {
	out, _ := entry.control.Await()
	switch o := out.(type) {
	case OutcomeRedirect:
		m.metrics.countRedirect()
		m.noteBuildID(o.ResponseBuild)
		m.resolver.Effectuate(o.Redirect, o.Props.RedirectCount, o.Props)
		m.removeEntry(entry)
		m.dispatcher.schedule()
	case OutcomeSuccess:
		if err := m.processSuccessfulNavigation(entry, o, true); err != nil {
			m.metrics.countNavigation(entry.navType, "error")
			return
		}
		m.metrics.countNavigation(entry.navType, "committed")
	}
}

// Navigate runs a user navigation to completion. It reports whether the
// navigation (or the navigation it redirected into) committed.
func (m *NavigationStateManager) Navigate(href string, opts *NavigateOptions) bool {
	props := NavigateProps{Href: href, Type: NavUser}
	if opts != nil {
		props.Options = *opts
	}
	return m.runNavigation(props)
}

// runNavigation begins a navigation, awaits its fetch phase, and drives
// the outcome: effectuating redirects or committing successes.
func (m *NavigationStateManager) runNavigation(props NavigateProps) bool {
	ctl := m.BeginNavigation(props)
	out, err := ctl.Await()
	if err != nil {
		m.logf("Navigation failed: %v", err)
		m.metrics.countNavigation(props.Type, "error")
		return false
	}

	switch o := out.(type) {
	case OutcomeAborted:
		m.metrics.countNavigation(props.Type, "aborted")
		return false

	case OutcomeRedirect:
		m.metrics.countRedirect()
		m.noteBuildID(o.ResponseBuild)
		followed := m.resolver.Effectuate(o.Redirect, o.Props.RedirectCount, o.Props)
		m.removeEntry(ctl.entry)
		m.dispatcher.schedule()
		return followed

	case OutcomeSuccess:
		if ctl.entry == nil {
			return false
		}
		if err := m.processSuccessfulNavigation(ctl.entry, o, true); err != nil {
			m.metrics.countNavigation(props.Type, "error")
			return false
		}
		m.metrics.countNavigation(props.Type, "committed")
		return true
	}
	return false
}

// Revalidate begins a revalidation of the current location. Completion is
// driven by the entry's own lifecycle; repeated calls within the
// coalescing window share one fetch.
func (m *NavigationStateManager) Revalidate() {
	m.BeginNavigation(NavigateProps{Type: NavRevalidation})
}

// =============================================================================
// Entry Bookkeeping
// =============================================================================

// removeEntry unslots an entry, wherever it lives, if it is still the
// occupant. Upgraded or superseded entries are left alone.
func (m *NavigationStateManager) removeEntry(entry *NavigationEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeEntryLocked(entry)
}

func (m *NavigationStateManager) removeEntryLocked(entry *NavigationEntry) {
	if m.active == entry {
		m.active = nil
	}
	if m.revalidation == entry {
		m.revalidation = nil
	}
	href := entry.TargetHref()
	if m.prefetches[href] == entry {
		delete(m.prefetches, href)
	}
}

// setPhase advances an entry's phase. Backward transitions are ignored.
func (m *NavigationStateManager) setPhase(entry *NavigationEntry, phase NavigationPhase) {
	m.mu.Lock()
	if phase > entry.phase {
		entry.phase = phase
	}
	m.mu.Unlock()
	m.dispatcher.schedule()
}

// noteBuildID records a build identity change and emits the build-id
// event. No-op when the id is empty or unchanged.
func (m *NavigationStateManager) noteBuildID(newID string) {
	if newID == "" {
		return
	}
	old := m.state.BuildID()
	if newID == old {
		return
	}
	m.state.SetBuildID(newID)
	m.bus.emitBuildID(BuildIDEvent{OldID: old, NewID: newID})
}

// ClearAll aborts everything: the active navigation, all prefetches, the
// pending revalidation, and all submissions. The status dispatcher is
// reset so the next change dispatches fresh.
func (m *NavigationStateManager) ClearAll() {
	m.mu.Lock()
	if m.active != nil {
		m.active.control.Abort(ErrAborted)
		m.active = nil
	}
	for href, p := range m.prefetches {
		p.control.Abort(ErrAborted)
		delete(m.prefetches, href)
	}
	if m.revalidation != nil {
		m.revalidation.control.Abort(ErrAborted)
		m.revalidation = nil
	}
	for key, sub := range m.submissions {
		sub.cancel(ErrAborted)
		delete(m.submissions, key)
	}
	m.mu.Unlock()

	m.dispatcher.reset()
	m.dispatcher.schedule()
}

// equalIgnoringFragment compares a URL against an href with both
// fragments stripped.
func equalIgnoringFragment(target *url.URL, href string) bool {
	current, err := url.Parse(href)
	if err != nil {
		return false
	}
	t := *target
	c := *current
	t.Fragment = ""
	c.Fragment = ""
	return t.String() == c.String()
}
