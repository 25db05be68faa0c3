// Package protocol defines the wire contract between a Vorma server and
// the client navigation runtime: the JSON route payload, the custom header
// set used for soft redirects and build identity, and the query parameters
// appended to navigation fetches.
//
// The package is dependency-free so both the client runtime and server
// tooling can import it.
package protocol
