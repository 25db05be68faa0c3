package client

import (
	"strings"
	"sync"
)

// =============================================================================
// Asset Loader
// =============================================================================

// AssetLoader preloads JS modules and CSS bundles and applies stylesheets
// on commit. All operations are idempotent; URL resolution prepends the
// public path prefix in production or the dev server origin in
// development, collapsing duplicate slashes either way.
type AssetLoader struct {
	dom DOM

	publicPathPrefix string
	devServerOrigin  string
	devMode          bool

	mu        sync.Mutex
	preloaded map[string]struct{}
}

// NewAssetLoader creates an asset loader bound to the given DOM.
func NewAssetLoader(dom DOM, publicPathPrefix, devServerOrigin string, devMode bool) *AssetLoader {
	return &AssetLoader{
		dom:              dom,
		publicPathPrefix: publicPathPrefix,
		devServerOrigin:  devServerOrigin,
		devMode:          devMode,
		preloaded:        make(map[string]struct{}),
	}
}

// ResolveURL composes the full URL for an asset reference.
func (l *AssetLoader) ResolveURL(ref string) string {
	if l.devMode && l.devServerOrigin != "" {
		return joinURL(l.devServerOrigin, ref)
	}
	return joinURL(l.publicPathPrefix, ref)
}

// PreloadModule inserts a modulepreload link for the resolved URL unless
// one is already present.
func (l *AssetLoader) PreloadModule(ref string) {
	href := l.ResolveURL(ref)

	l.mu.Lock()
	if _, ok := l.preloaded[href]; ok {
		l.mu.Unlock()
		return
	}
	l.preloaded[href] = struct{}{}
	l.mu.Unlock()

	if l.dom.HasModulePreload(href) {
		return
	}
	l.dom.InsertModulePreload(href)
}

// PreloadCSS inserts a style preload link and returns a channel settling
// on the link's load or error event.
func (l *AssetLoader) PreloadCSS(ref string) <-chan error {
	return l.dom.InsertCSSPreload(l.ResolveURL(ref))
}

// ApplyCSS appends a stylesheet link for every bundle not already applied.
func (l *AssetLoader) ApplyCSS(bundles []string) {
	for _, bundle := range bundles {
		if l.dom.HasStylesheet(bundle) {
			continue
		}
		l.dom.AppendStylesheet(bundle, l.ResolveURL(bundle))
	}
}

// joinURL concatenates a prefix and reference, collapsing the duplicate
// slash at the seam without disturbing the scheme separator.
func joinURL(prefix, ref string) string {
	if prefix == "" {
		return ref
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(ref, "/")
}
