package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

// =============================================================================
// Redirect Resolver Tests
// =============================================================================

func newResolverFixture(t *testing.T, handler http.HandlerFunc) (*RedirectResolver, *fakeDOM, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	dom := newFakeDOM(server.URL + "/")
	state := NewRouteState()
	state.SetBuildID("build-1")
	resolver := NewRedirectResolver(server.Client(), dom, state, t.Logf, func(NavigateProps) bool { return true })
	return resolver, dom, server
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestHandleRedirectsReloadHeaderWinsPrecedence(t *testing.T) {
	resolver, _, server := newResolverFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Vorma-Reload", "/fresh")
		w.Header().Set("X-Client-Redirect", "/other")
		w.Write([]byte("{}"))
	})

	result, err := resolver.HandleRedirects(context.Background(), HandleRedirectsProps{URL: mustParse(t, server.URL+"/x")})
	if err != nil {
		t.Fatalf("HandleRedirects: %v", err)
	}
	defer result.Response.Body.Close()
	if result.Redirect == nil || result.Redirect.Kind != KindForcedInternal || result.Redirect.To != "/fresh" {
		t.Errorf("redirect = %+v, want forced-internal /fresh", result.Redirect)
	}
}

func TestHandleRedirectsClassifiesByOrigin(t *testing.T) {
	resolver, _, server := newResolverFixture(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/internal":
			w.Header().Set("X-Client-Redirect", "/dest")
		case "/external":
			w.Header().Set("X-Client-Redirect", "https://elsewhere.example/dest")
		}
		w.Write([]byte("{}"))
	})

	internal, err := resolver.HandleRedirects(context.Background(), HandleRedirectsProps{URL: mustParse(t, server.URL+"/internal")})
	if err != nil {
		t.Fatal(err)
	}
	internal.Response.Body.Close()
	if internal.Redirect == nil || internal.Redirect.Kind != KindInternal {
		t.Errorf("internal redirect = %+v", internal.Redirect)
	}

	external, err := resolver.HandleRedirects(context.Background(), HandleRedirectsProps{URL: mustParse(t, server.URL+"/external")})
	if err != nil {
		t.Fatal(err)
	}
	external.Response.Body.Close()
	if external.Redirect == nil || external.Redirect.Kind != KindExternal {
		t.Errorf("external redirect = %+v", external.Redirect)
	}
}

func TestHandleRedirectsIgnoresNonHTTPTarget(t *testing.T) {
	resolver, _, server := newResolverFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Client-Redirect", "mailto:hi@example.com")
		w.Write([]byte("{}"))
	})

	result, err := resolver.HandleRedirects(context.Background(), HandleRedirectsProps{URL: mustParse(t, server.URL+"/x")})
	if err != nil {
		t.Fatal(err)
	}
	defer result.Response.Body.Close()
	if result.Redirect != nil {
		t.Errorf("redirect = %+v, want none for a mailto target", result.Redirect)
	}
}

func TestHandleRedirectsDetectsFollowedRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/hop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/landed", http.StatusFound)
	})
	mux.HandleFunc("/landed", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	})
	resolver, _, server := newResolverFixture(t, mux.ServeHTTP)

	result, err := resolver.HandleRedirects(context.Background(), HandleRedirectsProps{URL: mustParse(t, server.URL+"/hop")})
	if err != nil {
		t.Fatal(err)
	}
	defer result.Response.Body.Close()
	if result.Redirect == nil || result.Redirect.Status != RedirectDid {
		t.Errorf("redirect = %+v, want did", result.Redirect)
	}
}

func TestHandleRedirectsSendsProtocolHeader(t *testing.T) {
	var got string
	resolver, _, server := newResolverFixture(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Accepts-Client-Redirect")
		w.Write([]byte("{}"))
	})

	result, err := resolver.HandleRedirects(context.Background(), HandleRedirectsProps{URL: mustParse(t, server.URL+"/x")})
	if err != nil {
		t.Fatal(err)
	}
	result.Response.Body.Close()
	if got != "1" {
		t.Errorf("X-Accepts-Client-Redirect = %q, want 1", got)
	}
}

func TestEffectuateInternalStopsAtCap(t *testing.T) {
	var navigations int
	dom := newFakeDOM("https://app.test/")
	state := NewRouteState()
	var logged []string
	resolver := NewRedirectResolver(http.DefaultClient, dom, state, func(format string, args ...any) {
		logged = append(logged, format)
	}, func(NavigateProps) bool {
		navigations++
		return true
	})

	data := &RedirectData{Status: RedirectShould, Kind: KindInternal, To: "https://app.test/next"}
	if resolver.Effectuate(data, maxRedirects-1, NavigateProps{}) {
		t.Error("expected the capped redirect to be discarded")
	}
	if navigations != 0 {
		t.Errorf("navigations = %d, want 0", navigations)
	}
	if len(logged) != 1 || logged[0] != "Too many redirects" {
		t.Errorf("logged = %v", logged)
	}
}
