package client

import (
	"encoding/json"
	"sync"
)

// =============================================================================
// Process-Wide Route State
// =============================================================================

// PatternModule is the client's knowledge of the module behind one route
// pattern: where to import it from, which exports to use, and whether the
// server runs a loader for it.
type PatternModule struct {
	ImportURL       string
	ExportKey       string
	ErrorExportKey  string
	HasServerLoader bool
}

// RouteState is the single container for process-wide mutable route state:
// build identity, the pattern registry and module map, and the data backing
// the committed page. Only the commit step of the render pipeline and the
// manager's skip-check/merge paths touch it. Tests replace the container
// wholesale per case.
type RouteState struct {
	mu sync.RWMutex

	buildID      string
	deploymentID string

	// patterns are the route patterns registered for client-side matching.
	patterns []string

	// modules maps pattern to its module mapping.
	modules map[string]*PatternModule

	// Committed page state.
	matchedPatterns  []string
	loadersData      []json.RawMessage
	clientLoaderData []any
	params           map[string]string
	splatValues      []string
}

// NewRouteState creates an empty container.
func NewRouteState() *RouteState {
	return &RouteState{
		modules: make(map[string]*PatternModule),
		params:  make(map[string]string),
	}
}

// BuildID returns the current client build identity.
func (s *RouteState) BuildID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buildID
}

// SetBuildID replaces the build identity.
func (s *RouteState) SetBuildID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buildID = id
}

// DeploymentID returns the sticky deployment identity, if known.
func (s *RouteState) DeploymentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deploymentID
}

// SetDeploymentID replaces the deployment identity.
func (s *RouteState) SetDeploymentID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deploymentID = id
}

// Patterns returns the registered route patterns.
func (s *RouteState) Patterns() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.patterns))
	copy(out, s.patterns)
	return out
}

// RegisterPatterns adds route patterns to the matching registry,
// skipping duplicates.
func (s *RouteState) RegisterPatterns(patterns ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	known := make(map[string]struct{}, len(s.patterns))
	for _, p := range s.patterns {
		known[p] = struct{}{}
	}
	for _, p := range patterns {
		if _, ok := known[p]; ok {
			continue
		}
		known[p] = struct{}{}
		s.patterns = append(s.patterns, p)
	}
}

// Module returns the module mapping for a pattern.
func (s *RouteState) Module(pattern string) (*PatternModule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.modules[pattern]
	return m, ok
}

// SetModule registers or replaces the module mapping for a pattern and
// makes sure the pattern participates in matching.
func (s *RouteState) SetModule(pattern string, mod *PatternModule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[pattern] = mod
	for _, p := range s.patterns {
		if p == pattern {
			return
		}
	}
	s.patterns = append(s.patterns, pattern)
}

// MergeModules folds a payload's module identities into the map. Called
// when a response's build id matches the current one; new patterns win
// over stale entries.
func (s *RouteState) MergeModules(patterns, importURLs, exportKeys, errorExportKeys []string, loadersData []json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, pattern := range patterns {
		mod, ok := s.modules[pattern]
		if !ok {
			mod = &PatternModule{}
			s.modules[pattern] = mod
			s.patterns = append(s.patterns, pattern)
		}
		if i < len(importURLs) && importURLs[i] != "" {
			mod.ImportURL = importURLs[i]
		}
		if i < len(exportKeys) && exportKeys[i] != "" {
			mod.ExportKey = exportKeys[i]
		}
		if i < len(errorExportKeys) && errorExportKeys[i] != "" {
			mod.ErrorExportKey = errorExportKeys[i]
		}
		if i < len(loadersData) && loadersData[i] != nil {
			mod.HasServerLoader = true
		}
	}
}

// Committed returns the committed page state: matched patterns, server
// loader data, client loader data, params, and splat values.
func (s *RouteState) Committed() (patterns []string, loadersData []json.RawMessage, clientData []any, params map[string]string, splats []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	patterns = append([]string(nil), s.matchedPatterns...)
	loadersData = append([]json.RawMessage(nil), s.loadersData...)
	clientData = append([]any(nil), s.clientLoaderData...)
	params = make(map[string]string, len(s.params))
	for k, v := range s.params {
		params[k] = v
	}
	splats = append([]string(nil), s.splatValues...)
	return
}

// Commit replaces the committed page state in one step.
func (s *RouteState) Commit(patterns []string, loadersData []json.RawMessage, clientData []any, params map[string]string, splats []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matchedPatterns = append([]string(nil), patterns...)
	s.loadersData = append([]json.RawMessage(nil), loadersData...)
	s.clientLoaderData = append([]any(nil), clientData...)
	if params == nil {
		params = map[string]string{}
	}
	s.params = params
	s.splatValues = append([]string(nil), splats...)
}
