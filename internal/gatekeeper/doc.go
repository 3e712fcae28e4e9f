// Package gatekeeper decides what the browser context may load.
//
// The hosted page belongs to a third party and would normally pull in its
// whole application. Only three things are let through: the trusted script
// URL currently recorded in the session, a fixed list of application pages,
// and DevTools resources. Everything else is cancelled without surfacing an
// error to the IPC caller.
//
// Responses that carry a content-security-policy header get it blanked so the
// page's own policy cannot block the injected script tag.
package gatekeeper
