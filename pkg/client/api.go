package client

import (
	"errors"
	"log"
)

// =============================================================================
// Public API
// =============================================================================

// Config wires the navigation runtime to its host environment.
type Config struct {
	DOM        DOM
	History    HistoryStack
	Storage    Storage
	HTTPClient Doer
	Modules    ModuleLoader

	// Render is the host re-render callback.
	Render RenderFunc

	// HeadUpdate receives head elements after a commit. Optional.
	HeadUpdate HeadUpdateFunc

	// DefaultErrorBoundary is used when a payload names an error boundary
	// the client cannot resolve.
	DefaultErrorBoundary any

	// Logf defaults to log.Printf.
	Logf Logger

	// PublicPathPrefix prefixes asset URLs in production.
	PublicPathPrefix string

	// DevServerOrigin prefixes asset URLs in development.
	DevServerOrigin string

	// DevMode switches asset resolution and preloading behavior.
	DevMode bool

	// UseViewTransitions wraps user-facing commits in a view transition
	// when the platform supports one.
	UseViewTransitions bool

	// Metrics, when set, receives navigation counters.
	Metrics *NavMetrics

	// BuildID seeds the client build identity.
	BuildID string

	// DeploymentID seeds the sticky deployment identity, if any.
	DeploymentID string
}

// Runtime is the assembled navigation core. One instance serves the whole
// page; create it during bootstrap and call Init once the document is
// ready.
type Runtime struct {
	cfg     Config
	state   *RouteState
	bus     *EventBus
	scroll  *ScrollStateStore
	assets  *AssetLoader
	history *HistoryAdapter
	manager *NavigationStateManager
}

// New assembles a runtime from its host bindings.
func New(cfg Config) (*Runtime, error) {
	switch {
	case cfg.DOM == nil:
		return nil, errors.New("client: Config.DOM is required")
	case cfg.History == nil:
		return nil, errors.New("client: Config.History is required")
	case cfg.Storage == nil:
		return nil, errors.New("client: Config.Storage is required")
	case cfg.HTTPClient == nil:
		return nil, errors.New("client: Config.HTTPClient is required")
	case cfg.Modules == nil:
		return nil, errors.New("client: Config.Modules is required")
	case cfg.Render == nil:
		return nil, errors.New("client: Config.Render is required")
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}

	state := NewRouteState()
	state.SetBuildID(cfg.BuildID)
	state.SetDeploymentID(cfg.DeploymentID)

	bus := NewEventBus()
	scroll := NewScrollStateStore(cfg.DOM, cfg.Storage)
	assets := NewAssetLoader(cfg.DOM, cfg.PublicPathPrefix, cfg.DevServerOrigin, cfg.DevMode)
	loaders := newLoaderRegistry()

	manager := newNavigationStateManager(cfg.DOM, state, bus, loaders, assets, cfg.Logf, cfg.Metrics, cfg.DevMode)

	resolver := NewRedirectResolver(cfg.HTTPClient, cfg.DOM, state, cfg.Logf, manager.runNavigation)
	manager.resolver = resolver

	history := NewHistoryAdapter(cfg.History, bus, scroll, func(props NavigateProps) {
		go manager.runNavigation(props)
	})
	manager.history = history
	manager.scroll = scroll

	manager.renderer = &RenderPipeline{
		dom:                  cfg.DOM,
		state:                state,
		bus:                  bus,
		assets:               assets,
		modules:              cfg.Modules,
		render:               cfg.Render,
		head:                 cfg.HeadUpdate,
		history:              history,
		scroll:               scroll,
		defaultErrorBoundary: cfg.DefaultErrorBoundary,
		useViewTransitions:   cfg.UseViewTransitions,
	}

	rt := &Runtime{
		cfg:     cfg,
		state:   state,
		bus:     bus,
		scroll:  scroll,
		assets:  assets,
		history: history,
		manager: manager,
	}

	// Scroll restoration rides on the route-change event.
	bus.OnRouteChange(func(ev RouteChangeEvent) {
		scroll.Apply(ev.ScrollState)
	})

	return rt, nil
}

// Init hooks the runtime into the live page: manual scroll restoration,
// reload-parameter cleanup, history listening, and the page-refresh
// scroll restore.
func (r *Runtime) Init() {
	r.history.Init(r.cfg.DOM)
	r.scroll.RestoreOnInit()
}

// Close stops history listening and aborts all in-flight work.
func (r *Runtime) Close() {
	r.history.Close()
	r.manager.ClearAll()
}

// Navigate runs a user navigation and reports whether it committed.
func (r *Runtime) Navigate(href string, opts *NavigateOptions) bool {
	return r.manager.Navigate(href, opts)
}

// Revalidate refetches the current location. Calls within the coalescing
// window share one fetch.
func (r *Runtime) Revalidate() {
	r.manager.Revalidate()
}

// Submit issues a form submission.
func (r *Runtime) Submit(target string, init *RequestInit, opts *SubmitOptions) SubmitResult {
	return r.manager.Submit(target, init, opts)
}

// BeginNavigation slots a navigation without driving it to completion.
func (r *Runtime) BeginNavigation(props NavigateProps) *NavigationControl {
	return r.manager.BeginNavigation(props)
}

// GetStatus returns the live, undebounced busy state.
func (r *Runtime) GetStatus() Status {
	return r.manager.Status()
}

// GetLocation returns the last known location.
func (r *Runtime) GetLocation() Location {
	return r.history.Location()
}

// GetBuildID returns the client's current build identity.
func (r *Runtime) GetBuildID() string {
	return r.state.BuildID()
}

// GetPrefetchHandlers builds hover/focus/click handlers for one link.
func (r *Runtime) GetPrefetchHandlers(opts PrefetchOpts) *PrefetchHandlers {
	return r.manager.GetPrefetchHandlers(opts)
}

// HandleClick forwards an anchor click through the link filtering rules.
func (r *Runtime) HandleClick(e ClickEvent) bool {
	return r.manager.HandleClick(e)
}

// ClearAll aborts every navigation, prefetch, revalidation, and
// submission.
func (r *Runtime) ClearAll() {
	r.manager.ClearAll()
}

// Events exposes the typed event bus.
func (r *Runtime) Events() *EventBus {
	return r.bus
}

// RouteState exposes the process-wide route state container. UI layers
// should not reach it directly; it exists for bootstrap and tests.
func (r *Runtime) RouteState() *RouteState {
	return r.state
}

// SavePageRefreshState records the viewport position for restoration
// after a full page refresh. Hosts call it from beforeunload.
func (r *Runtime) SavePageRefreshState() {
	r.scroll.SavePageRefreshState()
}

// RegisterClientLoader registers a client loader for a route pattern.
func (r *Runtime) RegisterClientLoader(pattern string, fn ClientLoader) {
	r.manager.loaders.register(pattern, fn)
}

// RegisterModule registers a pattern's module mapping, enabling
// client-side matching and the client-only fast path.
func (r *Runtime) RegisterModule(pattern string, mod *PatternModule) {
	r.state.SetModule(pattern, mod)
}

// Bootstrap seeds the committed page state from the initial payload the
// server rendered into the document.
func (r *Runtime) Bootstrap(payload *RoutePayload, clientData map[string]any) {
	r.state.MergeModules(payload.MatchedPatterns, payload.ImportURLs, payload.ExportKeys, payload.ErrorExportKeys, payload.LoadersData)
	aligned := make([]any, len(payload.MatchedPatterns))
	for i, p := range payload.MatchedPatterns {
		aligned[i] = clientData[p]
	}
	r.state.Commit(payload.MatchedPatterns, payload.LoadersData, aligned, payload.Params, payload.SplatValues)
}
