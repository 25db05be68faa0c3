// Package client implements the browser-side navigation core of the Vorma
// framework: the coordination layer that turns link clicks, programmatic
// navigations, browser back/forward, form submissions, revalidations, and
// hover prefetches into fetches, asset loads, state updates, and host
// re-renders.
//
// The package holds no direct browser bindings. Everything it needs from
// the environment (history stack, document head, session storage, fetch)
// is expressed as a small interface in browser.go; pkg/browser provides
// the js/wasm implementations and tests provide fakes.
package client
