package protocol

// =============================================================================
// Headers
// =============================================================================

// Server to client headers.
const (
	// HeaderBuildID carries the server's current build identity. A mismatch
	// with the client's build id triggers a build-id event on the client.
	HeaderBuildID = "X-Vorma-Build-Id"

	// HeaderClientRedirect signals a soft redirect. The client follows it by
	// issuing another SPA fetch (internal targets) or a location assignment
	// (external targets). No full document reload for internal targets.
	HeaderClientRedirect = "X-Client-Redirect"

	// HeaderReload signals a forced internal redirect. The client follows it
	// with a full-document location assignment.
	HeaderReload = "X-Vorma-Reload"
)

// Client to server headers.
const (
	// HeaderAcceptsClientRedirect tells the server to emit redirects via the
	// custom headers above rather than HTTP 30x responses.
	HeaderAcceptsClientRedirect = "X-Accepts-Client-Redirect"

	// HeaderDeploymentID is forwarded on submissions when a deployment id is
	// known, sticking subsequent requests to the same deployment during a
	// rolling upgrade.
	HeaderDeploymentID = "x-deployment-id"
)

// =============================================================================
// Query parameters
// =============================================================================

const (
	// QueryJSON marks a navigation fetch and carries the client's build id.
	QueryJSON = "vorma_json"

	// QueryDeploymentID carries the deployment id on every navigation fetch
	// when one is known.
	QueryDeploymentID = "dpl"

	// QueryReload is appended to forced-internal redirect targets. The client
	// strips it from the URL on init via a silent history replace.
	QueryReload = "vorma_reload"
)

// Session storage keys owned by the client runtime.
const (
	// StorageScrollStateMap holds the per-history-entry scroll positions as
	// an ordered array of [key, state] pairs.
	StorageScrollStateMap = "__vorma__scrollStateMap"

	// StoragePageRefreshScrollState holds the short-lived scroll position
	// written on beforeunload and restored after a full page refresh.
	StoragePageRefreshScrollState = "__vorma__pageRefreshScrollState"
)
