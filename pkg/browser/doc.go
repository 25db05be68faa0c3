// Package browser binds the client navigation core to the real browser
// via syscall/js. Everything here is behind the js && wasm build tags;
// on other platforms the package is empty so server-side tooling can
// still build the module.
package browser
