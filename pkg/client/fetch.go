package client

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/vorma-dev/vorma/pkg/protocol"
)

// =============================================================================
// Fetch Phase
// =============================================================================

// fetchPhase resolves one navigation's data: via the client-only fast path
// when possible, otherwise via a server fetch with client loaders running
// concurrently.
func (m *NavigationStateManager) fetchPhase(entry *NavigationEntry) (NavigationOutcome, error) {
	if entry.navType != NavPrefetch && entry.navType != NavAction {
		if out, ok := m.tryClientOnlySkip(entry); ok {
			m.metrics.countSkip()
			return out, nil
		}
	}

	reqURL := m.buildRequestURL(entry)
	m.metrics.countFetch()

	pending := m.startClientLoaders(entry)

	result, err := m.resolver.HandleRedirects(entry.control.Signal(), HandleRedirectsProps{
		URL:           reqURL,
		IsPrefetch:    entry.navType == NavPrefetch,
		RedirectCount: entry.props.RedirectCount,
	})
	if err != nil {
		pending.resolveEmpty()
		return nil, err
	}

	res := result.Response
	respBuild := res.Header.Get(protocol.HeaderBuildID)

	if result.Redirect != nil {
		res.Body.Close()
		pending.resolveEmpty()
		if result.Redirect.Status == RedirectDid {
			// The HTTP layer already followed it; rendering again would
			// double-commit.
			return OutcomeAborted{}, nil
		}
		return OutcomeRedirect{Redirect: result.Redirect, ResponseBuild: respBuild, Props: entry.props}, nil
	}

	defer res.Body.Close()

	if res.StatusCode == http.StatusNotModified {
		pending.resolveEmpty()
		return OutcomeAborted{}, nil
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		pending.resolveEmpty()
		return nil, &StatusError{Code: res.StatusCode}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		pending.resolveEmpty()
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		pending.resolveEmpty()
		return nil, ErrEmptyBody
	}

	var payload RoutePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		pending.resolveEmpty()
		return nil, err
	}

	pending.resolveServer(&payload, respBuild)

	cssWaits := m.preloadAssets(&payload)

	return OutcomeSuccess{
		Response:      res,
		Payload:       &payload,
		ResponseBuild: respBuild,
		CSSWaits:      cssWaits,
		ClientLoaders: pending.results,
		Props:         entry.props,
	}, nil
}

// buildRequestURL copies the target, drops the fragment, and appends the
// build id query parameter, plus the deployment id when one is known.
func (m *NavigationStateManager) buildRequestURL(entry *NavigationEntry) *url.URL {
	reqURL := *entry.targetURL
	reqURL.Fragment = ""
	q := reqURL.Query()
	q.Set(protocol.QueryJSON, m.state.BuildID())
	if dpl := m.state.DeploymentID(); dpl != "" {
		q.Set(protocol.QueryDeploymentID, dpl)
	}
	reqURL.RawQuery = q.Encode()
	return &reqURL
}

// preloadAssets begins module preloading for the payload's dependency
// list (every unique import URL in development) and returns the CSS
// preload waits.
func (m *NavigationStateManager) preloadAssets(payload *RoutePayload) []<-chan error {
	if m.devMode {
		seen := make(map[string]struct{}, len(payload.ImportURLs))
		for _, u := range payload.ImportURLs {
			if u == "" {
				continue
			}
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			m.assets.PreloadModule(u)
		}
	} else {
		for _, dep := range payload.Deps {
			m.assets.PreloadModule(dep)
		}
	}

	waits := make([]<-chan error, 0, len(payload.CSSBundles))
	for _, bundle := range payload.CSSBundles {
		waits = append(waits, m.assets.PreloadCSS(bundle))
	}
	return waits
}

// =============================================================================
// Client Loaders (concurrent with the fetch)
// =============================================================================

// pendingLoaders tracks the client loaders running for one navigation and
// the per-pattern server data futures feeding them.
type pendingLoaders struct {
	results *loaderResultsFuture
	server  map[string]*ServerDataFuture
}

// resolveServer feeds each loader its slice of the payload.
func (p *pendingLoaders) resolveServer(payload *RoutePayload, buildID string) {
	var rootData json.RawMessage
	if payload.HasRootData && len(payload.LoadersData) > 0 {
		rootData = payload.LoadersData[0]
	}
	for pattern, f := range p.server {
		var loaderData json.RawMessage
		for i, matched := range payload.MatchedPatterns {
			if matched == pattern && i < len(payload.LoadersData) {
				loaderData = payload.LoadersData[i]
				break
			}
		}
		f.resolve(ServerData{
			MatchedPatterns: payload.MatchedPatterns,
			LoaderData:      loaderData,
			RootData:        rootData,
			BuildID:         buildID,
		})
	}
}

// resolveEmpty settles every server data future with sentinel empties.
func (p *pendingLoaders) resolveEmpty() {
	for _, f := range p.server {
		f.resolveEmpty()
	}
}

// startClientLoaders matches the target path against the registry and
// invokes the client loader of every matched pattern, concurrently with
// the server fetch. Loader failures leave their slot empty; they never
// fail the navigation.
func (m *NavigationStateManager) startClientLoaders(entry *NavigationEntry) *pendingLoaders {
	pending := &pendingLoaders{
		results: newLoaderResultsFuture(),
		server:  make(map[string]*ServerDataFuture),
	}

	matches, _ := matchPatterns(m.state.Patterns(), entry.targetURL.Path)
	params := mergedParams(matches)
	splats := chainSplatValues(matches)

	type loaderRun struct {
		pattern string
		fn      ClientLoader
		server  *ServerDataFuture
	}
	var runs []loaderRun
	for _, match := range matches {
		fn, ok := m.loaders.get(match.Pattern)
		if !ok {
			continue
		}
		f := newServerDataFuture()
		pending.server[match.Pattern] = f
		runs = append(runs, loaderRun{pattern: match.Pattern, fn: fn, server: f})
	}

	if len(runs) == 0 {
		pending.results.resolve(nil)
		return pending
	}

	go func() {
		var mu sync.Mutex
		data := make(map[string]any, len(runs))
		var wg sync.WaitGroup
		for _, run := range runs {
			wg.Add(1)
			go func(run loaderRun) {
				defer wg.Done()
				result, err := run.fn(LoaderArgs{
					Params:      params,
					SplatValues: splats,
					ServerData:  run.server,
					Signal:      entry.control.Signal(),
				})
				if err != nil {
					return
				}
				mu.Lock()
				data[run.pattern] = result
				mu.Unlock()
			}(run)
		}
		wg.Wait()
		pending.results.resolve(data)
	}()

	return pending
}

// =============================================================================
// Client-Only Skip
// =============================================================================

// tryClientOnlySkip synthesizes a success outcome from cached loader data
// when the target is fully resolvable on the client: the path matches the
// registry, the loader surface is unchanged, search parameters are stable
// where loaders care, and every matched pattern has a known module.
func (m *NavigationStateManager) tryClientOnlySkip(entry *NavigationEntry) (NavigationOutcome, bool) {
	target := entry.targetURL

	matches, ok := matchPatterns(m.state.Patterns(), target.Path)
	if !ok {
		return nil, false
	}
	newPatterns := patternsOf(matches)

	for _, p := range newPatterns {
		mod, found := m.state.Module(p)
		if !found || mod.ImportURL == "" {
			return nil, false
		}
	}

	curPatterns, curLoadersData, curClientData, curParams, _ := m.state.Committed()

	if !equalStringSlices(m.serverLoaderPatterns(newPatterns), m.serverLoaderPatterns(curPatterns)) {
		return nil, false
	}

	curSet := make(map[string]struct{}, len(curPatterns))
	for _, p := range curPatterns {
		curSet[p] = struct{}{}
	}
	for _, p := range newPatterns {
		if _, already := curSet[p]; m.loaders.has(p) && !already {
			return nil, false
		}
	}

	anyLoader := len(m.serverLoaderPatterns(newPatterns)) > 0
	if !anyLoader {
		for _, p := range newPatterns {
			if m.loaders.has(p) {
				anyLoader = true
				break
			}
		}
	}
	if anyLoader {
		current, err := url.Parse(m.dom.Href())
		if err != nil || target.RawQuery != current.RawQuery {
			return nil, false
		}
	}

	newParams := mergedParams(matches)
	if outer, ok := m.outermostLoaderPattern(newPatterns); ok {
		for _, name := range paramNames(outer) {
			if newParams[name] != curParams[name] {
				return nil, false
			}
		}
	}

	// Synthesize the payload from cached data, aligned to the new chain.
	loadersData := make([]json.RawMessage, len(newPatterns))
	importURLs := make([]string, len(newPatterns))
	exportKeys := make([]string, len(newPatterns))
	errorExportKeys := make([]string, len(newPatterns))
	clientData := make(map[string]any, len(newPatterns))
	for i, p := range newPatterns {
		for j, cp := range curPatterns {
			if cp != p {
				continue
			}
			if j < len(curLoadersData) {
				loadersData[i] = curLoadersData[j]
			}
			if j < len(curClientData) {
				clientData[p] = curClientData[j]
			}
			break
		}
		if mod, found := m.state.Module(p); found {
			importURLs[i] = mod.ImportURL
			exportKeys[i] = mod.ExportKey
			errorExportKeys[i] = mod.ErrorExportKey
		}
	}

	payload := &RoutePayload{
		MatchedPatterns: newPatterns,
		LoadersData:     loadersData,
		ImportURLs:      importURLs,
		ExportKeys:      exportKeys,
		ErrorExportKeys: errorExportKeys,
		Params:          newParams,
		SplatValues:     chainSplatValues(matches),
	}

	return OutcomeSuccess{
		Payload:       payload,
		ResponseBuild: m.state.BuildID(),
		ClientLoaders: resolvedLoaderResults(clientData),
		Props:         entry.props,
	}, true
}

// serverLoaderPatterns filters a chain down to the patterns the server
// runs a loader for, preserving order.
func (m *NavigationStateManager) serverLoaderPatterns(patterns []string) []string {
	var out []string
	for _, p := range patterns {
		if mod, ok := m.state.Module(p); ok && mod.HasServerLoader {
			out = append(out, p)
		}
	}
	return out
}

// outermostLoaderPattern finds the first pattern in the chain with any
// loader, server or client.
func (m *NavigationStateManager) outermostLoaderPattern(patterns []string) (string, bool) {
	for _, p := range patterns {
		if mod, ok := m.state.Module(p); ok && mod.HasServerLoader {
			return p, true
		}
		if m.loaders.has(p) {
			return p, true
		}
	}
	return "", false
}

// paramNames extracts the dynamic segment names of a pattern.
func paramNames(pattern string) []string {
	var names []string
	for _, seg := range splitPath(pattern) {
		if len(seg) > 1 && seg[0] == ':' {
			names = append(names, seg[1:])
		}
	}
	return names
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
