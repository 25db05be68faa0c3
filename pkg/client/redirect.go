package client

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/vorma-dev/vorma/pkg/protocol"
)

// maxRedirects bounds the soft-redirect chain. The attempt that reaches
// the cap is logged and discarded.
const maxRedirects = 10

// =============================================================================
// Redirect Classification
// =============================================================================

// RedirectStatus says whether a redirect still needs following.
type RedirectStatus string

const (
	// RedirectDid means the browser (or HTTP client) already followed it.
	RedirectDid RedirectStatus = "did"

	// RedirectShould means the client must effectuate it.
	RedirectShould RedirectStatus = "should"
)

// RedirectKind classifies how a pending redirect is followed.
type RedirectKind string

const (
	// KindInternal redirects re-enter SPA navigation with another fetch.
	KindInternal RedirectKind = "internal"

	// KindExternal redirects leave via a location assignment.
	KindExternal RedirectKind = "external"

	// KindForcedInternal redirects trigger a full document load of an
	// internal path, used when the server wants a clean slate.
	KindForcedInternal RedirectKind = "forced-internal"
)

// RedirectData is the classified redirect instruction from a response.
type RedirectData struct {
	Status RedirectStatus
	Kind   RedirectKind
	To     string
}

// RequestInit carries a submission's method, body, and headers through to
// the fetch untouched.
type RequestInit struct {
	Method string
	Body   io.Reader
	Header http.Header
}

// HandleRedirectsProps parameterizes one resolver fetch.
type HandleRedirectsProps struct {
	URL           *url.URL
	IsPrefetch    bool
	RedirectCount int

	// RequestInit is set for submissions; navigations use a bare GET.
	RequestInit *RequestInit
}

// RedirectResult pairs the response with its classification. Redirect is
// nil when the response needs no redirect handling.
type RedirectResult struct {
	Response *http.Response
	Redirect *RedirectData
}

// =============================================================================
// Redirect Resolver
// =============================================================================

// RedirectResolver issues navigation and submission fetches and inspects
// the response headers for the soft-redirect protocol.
type RedirectResolver struct {
	client Doer
	dom    DOM
	state  *RouteState
	logf   Logger

	// navigate re-enters the state manager for internal redirects and
	// reports whether the follow-up navigation committed.
	navigate func(props NavigateProps) bool
}

// NewRedirectResolver wires a resolver to its collaborators.
func NewRedirectResolver(client Doer, dom DOM, state *RouteState, logf Logger, navigate func(props NavigateProps) bool) *RedirectResolver {
	return &RedirectResolver{
		client:   client,
		dom:      dom,
		state:    state,
		logf:     logf,
		navigate: navigate,
	}
}

// HandleRedirects issues the fetch and classifies the response. Header
// precedence, highest to lowest: X-Vorma-Reload, an already-followed
// redirect on a GET-like request, X-Client-Redirect.
func (r *RedirectResolver) HandleRedirects(ctx context.Context, props HandleRedirectsProps) (*RedirectResult, error) {
	method := http.MethodGet
	var body io.Reader
	if props.RequestInit != nil && props.RequestInit.Method != "" {
		method = props.RequestInit.Method
		body = props.RequestInit.Body
	}

	req, err := http.NewRequestWithContext(ctx, method, props.URL.String(), body)
	if err != nil {
		return nil, err
	}
	if props.RequestInit != nil {
		for k, vs := range props.RequestInit.Header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}
	req.Header.Set(protocol.HeaderAcceptsClientRedirect, "1")
	if dpl := r.state.DeploymentID(); dpl != "" && props.RequestInit != nil {
		req.Header.Set(protocol.HeaderDeploymentID, dpl)
	}

	res, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}

	result := &RedirectResult{Response: res}

	if to := res.Header.Get(protocol.HeaderReload); to != "" {
		result.Redirect = &RedirectData{Status: RedirectShould, Kind: KindForcedInternal, To: to}
		return result, nil
	}

	if isGETLike(method) && responseWasRedirected(res, props.URL) {
		result.Redirect = &RedirectData{Status: RedirectDid}
		return result, nil
	}

	if to := res.Header.Get(protocol.HeaderClientRedirect); to != "" {
		if data, ok := r.classifyClientRedirect(to); ok {
			result.Redirect = data
		}
		// Non-http(s) targets are ignored; navigation proceeds with the
		// original response body.
	}

	return result, nil
}

func (r *RedirectResolver) classifyClientRedirect(to string) (*RedirectData, bool) {
	current, err := url.Parse(r.dom.Href())
	if err != nil {
		return nil, false
	}
	target, err := current.Parse(to)
	if err != nil {
		return nil, false
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, false
	}
	kind := KindExternal
	if sameOrigin(current, target) {
		kind = KindInternal
	}
	return &RedirectData{Status: RedirectShould, Kind: kind, To: target.String()}, true
}

// Effectuate follows a pending redirect. It returns true when a follow-up
// navigation (or location assignment) was started.
func (r *RedirectResolver) Effectuate(data *RedirectData, redirectCount int, props NavigateProps) bool {
	if data == nil || data.Status != RedirectShould {
		return false
	}

	switch data.Kind {
	case KindForcedInternal:
		r.dom.Assign(appendQueryParam(data.To, protocol.QueryReload, r.state.BuildID()))
		return true

	case KindExternal:
		r.dom.Assign(data.To)
		return true

	case KindInternal:
		next := redirectCount + 1
		if next >= maxRedirects {
			r.logf("Too many redirects")
			return false
		}
		return r.navigate(NavigateProps{
			Href:          data.To,
			Type:          NavRedirect,
			Options:       props.Options,
			RedirectCount: next,
		})
	}
	return false
}

// =============================================================================
// Helpers
// =============================================================================

func isGETLike(method string) bool {
	return method == "" || strings.EqualFold(method, http.MethodGet) || strings.EqualFold(method, http.MethodHead)
}

// responseWasRedirected reports whether the HTTP layer already followed a
// redirect while producing res.
func responseWasRedirected(res *http.Response, requested *url.URL) bool {
	if res.Request == nil || res.Request.URL == nil {
		return false
	}
	return res.Request.URL.String() != requested.String()
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}

// appendQueryParam adds one query parameter to an href, preserving any
// fragment.
func appendQueryParam(href, key, value string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
