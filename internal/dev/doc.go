// Package dev implements the development server: it plays the route
// handler for the client navigation runtime using JSON payload fixtures,
// watches the project for changes, pushes reload messages over
// WebSocket, and exposes Prometheus metrics.
package dev
