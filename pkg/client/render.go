package client

import (
	"encoding/json"
	"fmt"
	"html"
)

// =============================================================================
// Render Pipeline
// =============================================================================

// RouteData is the committed page state handed to the host re-render
// callback.
type RouteData struct {
	MatchedPatterns   []string
	Components        []any
	ErrorBoundary     any
	OutermostErrorIdx *int
	LoadersData       []json.RawMessage
	ClientLoadersData []any
	Params            map[string]string
	SplatValues       []string
	Title             string
}

// RenderPipeline composes a fetched payload, loaded modules, and client
// loader results, and drives the host re-render. The commit step is where
// the committed page state (matched patterns, loader data, params, splat
// values) is replaced; module-map merges and build-id updates happen
// earlier, in the navigation completion.
type RenderPipeline struct {
	dom     DOM
	state   *RouteState
	bus     *EventBus
	assets  *AssetLoader
	modules ModuleLoader
	render  RenderFunc
	head    HeadUpdateFunc
	history *HistoryAdapter
	scroll  *ScrollStateStore

	defaultErrorBoundary any
	useViewTransitions   bool
}

// Render resolves components for the outcome and commits it: host
// re-render, then history, title, CSS, the route-change event, and head
// elements. A failed host render leaves history, title, and route state
// untouched.
func (p *RenderPipeline) Render(entry *NavigationEntry, o OutcomeSuccess, clientData map[string]any) error {
	payload := o.Payload
	ctx := entry.control.Signal()

	components := make([]any, len(payload.MatchedPatterns))
	loadedModules := make([]Module, len(payload.MatchedPatterns))
	for i, pattern := range payload.MatchedPatterns {
		importURL := ""
		if i < len(payload.ImportURLs) {
			importURL = payload.ImportURLs[i]
		}
		if importURL == "" {
			if mod, ok := p.state.Module(pattern); ok {
				importURL = mod.ImportURL
			}
		}
		if importURL == "" {
			return &RenderError{Err: fmt.Errorf("no module for pattern %q", pattern)}
		}
		mod, err := p.modules.Load(ctx, p.assets.ResolveURL(importURL))
		if err != nil {
			return &RenderError{Err: err}
		}
		loadedModules[i] = mod
		if i < len(payload.ExportKeys) && payload.ExportKeys[i] != "" {
			if export, ok := mod.Export(payload.ExportKeys[i]); ok {
				components[i] = export
			}
		}
	}

	boundary, boundaryIdx := p.resolveErrorBoundary(payload, loadedModules)

	alignedClientData := make([]any, len(payload.MatchedPatterns))
	for i, pattern := range payload.MatchedPatterns {
		alignedClientData[i] = clientData[pattern]
	}

	title := ""
	if payload.Title != nil {
		// Titles arrive HTML-entity-encoded; expand before assignment.
		title = html.UnescapeString(payload.Title.DangerousInnerHTML)
	}

	data := &RouteData{
		MatchedPatterns:   payload.MatchedPatterns,
		Components:        components,
		ErrorBoundary:     boundary,
		OutermostErrorIdx: boundaryIdx,
		LoadersData:       payload.LoadersData,
		ClientLoadersData: alignedClientData,
		Params:            payload.Params,
		SplatValues:       payload.SplatValues,
		Title:             title,
	}

	commit := func() error {
		if err := p.render(data); err != nil {
			return err
		}

		p.state.Commit(payload.MatchedPatterns, payload.LoadersData, alignedClientData, payload.Params, payload.SplatValues)

		target := entry.TargetHref()
		current := p.history.Location()
		p.scroll.SaveCurrent(current.Key)
		if target != p.dom.Href() && !entry.props.Options.Replace {
			p.history.Push(target, entry.props.Options.State)
		} else {
			p.history.Replace(target, entry.props.Options.State)
		}

		if payload.Title != nil {
			p.dom.SetTitle(title)
		}

		p.assets.ApplyCSS(payload.CSSBundles)

		p.bus.emitRouteChange(RouteChangeEvent{ScrollState: scrollHint(entry)})

		if p.head != nil {
			p.head(payload.MetaHeadEls, payload.RestHeadEls)
		}
		return nil
	}

	if p.useViewTransitions && entry.navType != NavPrefetch && entry.navType != NavRevalidation {
		var commitErr error
		if finished, ok := p.dom.StartViewTransition(func() { commitErr = commit() }); ok {
			<-finished
			if commitErr != nil {
				return &RenderError{Err: commitErr}
			}
			return nil
		}
	}

	if err := commit(); err != nil {
		return &RenderError{Err: err}
	}
	return nil
}

// resolveErrorBoundary picks the error-boundary component named by the
// payload, falling back to the framework default when the index is out of
// range or the export is missing.
func (p *RenderPipeline) resolveErrorBoundary(payload *RoutePayload, mods []Module) (any, *int) {
	idx := payload.OutermostServerErrorIdx
	if idx == nil {
		return nil, nil
	}
	i := *idx
	if i < 0 || i >= len(mods) || mods[i] == nil {
		return p.defaultErrorBoundary, idx
	}
	key := ""
	if i < len(payload.ErrorExportKeys) {
		key = payload.ErrorExportKeys[i]
	}
	if key == "" {
		return p.defaultErrorBoundary, idx
	}
	if export, ok := mods[i].Export(key); ok {
		return export, idx
	}
	return p.defaultErrorBoundary, idx
}

// scrollHint computes the route-change scroll hint from the navigation
// type, the target fragment, and the caller's options.
func scrollHint(entry *NavigationEntry) *ScrollState {
	fragment := entry.targetURL.Fragment

	switch entry.navType {
	case NavUser, NavRedirect, NavAction:
		if fragment != "" {
			return &ScrollState{Hash: fragment}
		}
		if opt := entry.props.Options.ScrollToTop; opt != nil && !*opt {
			return nil
		}
		return &ScrollState{X: 0, Y: 0}

	case NavBrowserHistory:
		if entry.props.ScrollStateToRestore != nil {
			return entry.props.ScrollStateToRestore
		}
		if fragment != "" {
			return &ScrollState{Hash: fragment}
		}
		return nil

	default: // NavRevalidation, NavPrefetch
		return nil
	}
}
