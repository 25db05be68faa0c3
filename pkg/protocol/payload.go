package protocol

import "encoding/json"

// =============================================================================
// Route Payload
// =============================================================================

// Title is a decoded-on-the-client page title. The server emits the raw
// HTML-entity-encoded form; the client expands entities before assigning
// document.title.
type Title struct {
	DangerousInnerHTML string `json:"dangerousInnerHTML"`
}

// HeadEl is an element destined for the document head. The client core
// forwards these to the host's head differ untouched.
type HeadEl struct {
	Tag        string            `json:"tag,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	InnerHTML  string            `json:"innerHTML,omitempty"`
}

// RoutePayload is the JSON body of a successful navigation response. All
// fields are optional on the wire except MatchedPatterns; the client treats
// missing slices as empty.
type RoutePayload struct {
	// MatchedPatterns are the route patterns matched for the target URL,
	// ordered outermost to innermost.
	MatchedPatterns []string `json:"matchedPatterns"`

	// LoadersData holds per-pattern server loader results, index-aligned
	// with MatchedPatterns. Patterns without a server loader carry null.
	LoadersData []json.RawMessage `json:"loadersData"`

	// ImportURLs are the module import URLs, index-aligned with
	// MatchedPatterns.
	ImportURLs []string `json:"importURLs"`

	// ExportKeys name the component export within each module.
	ExportKeys []string `json:"exportKeys"`

	// ErrorExportKeys name the error-boundary export within each module,
	// empty where a pattern has none.
	ErrorExportKeys []string `json:"errorExportKeys"`

	// OutermostServerErrorIdx, when present, is the index of the outermost
	// pattern whose server loader errored.
	OutermostServerErrorIdx *int `json:"outermostServerErrorIdx,omitempty"`

	// HasRootData reports whether LoadersData[0] is root layout data.
	HasRootData bool `json:"hasRootData"`

	// Params are the dynamic route parameters extracted from the URL.
	Params map[string]string `json:"params"`

	// SplatValues are the segments captured by a trailing splat.
	SplatValues []string `json:"splatValues"`

	// Deps is the full dependency list to preload in production builds.
	Deps []string `json:"deps,omitempty"`

	// CSSBundles are the CSS bundle URLs for the matched routes.
	CSSBundles []string `json:"cssBundles,omitempty"`

	// Title is the encoded page title.
	Title *Title `json:"title,omitempty"`

	// MetaHeadEls and RestHeadEls are head elements for the host differ.
	MetaHeadEls []HeadEl `json:"metaHeadEls,omitempty"`
	RestHeadEls []HeadEl `json:"restHeadEls,omitempty"`
}
