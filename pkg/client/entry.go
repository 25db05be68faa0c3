package client

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/vorma-dev/vorma/pkg/protocol"
)

// Re-exported wire types consumed by the core.
type (
	HeadEl       = protocol.HeadEl
	RoutePayload = protocol.RoutePayload
)

// =============================================================================
// Navigation Variants
// =============================================================================

// NavigationType tags what triggered a navigation.
type NavigationType int

const (
	NavUser NavigationType = iota
	NavBrowserHistory
	NavRevalidation
	NavRedirect
	NavPrefetch
	NavAction
)

func (t NavigationType) String() string {
	switch t {
	case NavUser:
		return "userNavigation"
	case NavBrowserHistory:
		return "browserHistory"
	case NavRevalidation:
		return "revalidation"
	case NavRedirect:
		return "redirect"
	case NavPrefetch:
		return "prefetch"
	case NavAction:
		return "action"
	default:
		return "unknown"
	}
}

// NavigationIntent is what the navigation will do on completion.
type NavigationIntent int

const (
	// IntentNone marks a prefetch: never commit.
	IntentNone NavigationIntent = iota

	// IntentNavigate commits and updates history.
	IntentNavigate

	// IntentRevalidate commits only while the URL is unchanged.
	IntentRevalidate
)

// NavigationPhase is the lifecycle state of an entry. Phases only advance,
// except that upgrading a completed prefetch rewinds it to waiting.
type NavigationPhase int

const (
	PhaseFetching NavigationPhase = iota
	PhaseWaiting
	PhaseRendering
	PhaseComplete
)

func (p NavigationPhase) String() string {
	switch p {
	case PhaseFetching:
		return "fetching"
	case PhaseWaiting:
		return "waiting"
	case PhaseRendering:
		return "rendering"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// =============================================================================
// Navigation Props
// =============================================================================

// NavigateOptions are the caller-facing presentation options.
type NavigateOptions struct {
	// Replace swaps the current history entry instead of pushing.
	Replace bool

	// ScrollToTop controls the post-commit scroll for user navigations.
	// nil means the default (scroll to top unless the href has a fragment).
	ScrollToTop *bool

	// State is an opaque value stored on the history entry.
	State any
}

// NavigateProps describes one navigation request to the state manager.
type NavigateProps struct {
	// Href is the target, absolute or relative to the current location.
	Href string

	// Type tags the trigger. Zero value is NavUser.
	Type NavigationType

	// Options carries the presentation options, if any.
	Options NavigateOptions

	// RedirectCount is the depth of the soft-redirect chain so far.
	RedirectCount int

	// ScrollStateToRestore carries the saved position for POP navigations.
	ScrollStateToRestore *ScrollState
}

// =============================================================================
// Navigation Entry
// =============================================================================

// NavigationEntry is the manager-owned record for one navigation. The
// target URL is immutable; phase only advances, apart from the rewind of a
// completed prefetch on upgrade; type, intent, and props may be rewritten
// once, by a prefetch or revalidation upgrade.
type NavigationEntry struct {
	control *NavigationControl

	navType NavigationType
	intent  NavigationIntent
	phase   NavigationPhase

	startedAt time.Time

	// targetURL is absolute and keeps its fragment.
	targetURL *url.URL

	// originHref is the location when the navigation began. Revalidations
	// compare it against the live location before committing.
	originHref string

	props NavigateProps
}

// TargetHref returns the entry's absolute target URL.
func (e *NavigationEntry) TargetHref() string {
	return e.targetURL.String()
}

// =============================================================================
// Navigation Control
// =============================================================================

// NavigationControl is the caller's handle on an in-flight navigation: a
// cancel token plus the outcome future.
type NavigationControl struct {
	signal  context.Context
	abort   context.CancelCauseFunc
	outcome *outcomeFuture
	entry   *NavigationEntry
}

// Signal is the cancel token. It propagates to the underlying fetch and to
// client loaders that honor it.
func (c *NavigationControl) Signal() context.Context {
	return c.signal
}

// Abort cancels the navigation with the given cause.
func (c *NavigationControl) Abort(cause error) {
	if cause == nil {
		cause = ErrAborted
	}
	c.abort(cause)
}

// Await blocks until the navigation's fetch phase settles.
func (c *NavigationControl) Await() (NavigationOutcome, error) {
	return c.outcome.await()
}

// =============================================================================
// Navigation Outcome
// =============================================================================

// NavigationOutcome is the tagged result of a navigation's fetch phase.
// The set is closed; consumers switch over the three shapes.
type NavigationOutcome interface {
	isNavigationOutcome()
}

// OutcomeAborted means the navigation was cancelled, or the browser itself
// already followed a redirect and there is nothing left to render.
type OutcomeAborted struct{}

// OutcomeRedirect means the server answered with a redirect the client
// must effectuate.
type OutcomeRedirect struct {
	Redirect      *RedirectData
	ResponseBuild string
	Props         NavigateProps
}

// OutcomeSuccess carries everything the completion procedure needs.
type OutcomeSuccess struct {
	Response      *http.Response
	Payload       *RoutePayload
	ResponseBuild string
	CSSWaits      []<-chan error
	ClientLoaders *loaderResultsFuture
	Props         NavigateProps
}

func (OutcomeAborted) isNavigationOutcome()  {}
func (OutcomeRedirect) isNavigationOutcome() {}
func (OutcomeSuccess) isNavigationOutcome()  {}

// =============================================================================
// Futures
// =============================================================================

// outcomeFuture resolves exactly once with an outcome or an error.
type outcomeFuture struct {
	once sync.Once
	done chan struct{}
	out  NavigationOutcome
	err  error
}

func newOutcomeFuture() *outcomeFuture {
	return &outcomeFuture{done: make(chan struct{})}
}

func (f *outcomeFuture) resolve(out NavigationOutcome, err error) {
	f.once.Do(func() {
		f.out = out
		f.err = err
		close(f.done)
	})
}

func (f *outcomeFuture) await() (NavigationOutcome, error) {
	<-f.done
	return f.out, f.err
}

// loaderResultsFuture resolves with the client-loader results keyed by
// route pattern. It never errors; loaders that fail or are skipped simply
// have no key.
type loaderResultsFuture struct {
	once sync.Once
	done chan struct{}
	data map[string]any
}

func newLoaderResultsFuture() *loaderResultsFuture {
	return &loaderResultsFuture{done: make(chan struct{})}
}

func (f *loaderResultsFuture) resolve(data map[string]any) {
	f.once.Do(func() {
		f.data = data
		close(f.done)
	})
}

// Await blocks until the loaders settle or ctx is cancelled.
func (f *loaderResultsFuture) Await(ctx context.Context) map[string]any {
	select {
	case <-f.done:
		return f.data
	case <-ctx.Done():
		return nil
	}
}

// resolvedLoaderResults returns an already-settled future, used by the
// client-only fast path which reuses cached loader data.
func resolvedLoaderResults(data map[string]any) *loaderResultsFuture {
	f := newLoaderResultsFuture()
	f.resolve(data)
	return f
}
