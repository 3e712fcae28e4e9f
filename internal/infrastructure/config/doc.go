// Package config loads sidecar configuration from the environment.
//
// Configuration follows 12-factor conventions via envconfig. The only
// setting with protocol significance is MAUTRIX_GVOICE_ELECTRON_DEBUG, which
// must be exactly "true" to show the browser window and open DevTools.
// Everything else tunes the browser engine, logging and the optional metrics
// endpoint.
package config
