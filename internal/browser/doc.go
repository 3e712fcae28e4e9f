// Package browser owns the browser context the bridge evaluates scripts in.
//
// Two engines implement Engine: Chrome, a hidden page in Chrome driven over
// the DevTools protocol with go-rod, and the in-process goja runtime from the
// sandbox subpackage. Open picks one from configuration. Both route every
// request the page makes through a Filter.
package browser
