/*
Package bridge connects the line protocol to the browser context.

Handler implements the two request kinds. Until a script has been loaded,
every request is an init request: it needs script_source and checksum,
records the source as trusted and appends it to the page as a script tag.
Once loaded, requests name a global object, a program and a payload; the
executor template calls into the global and the value its callback receives
becomes the response.

Server owns the framing. Each request runs on its own goroutine, so
responses may leave in a different order than requests arrived; callers
match them by req_id. Malformed lines are logged and dropped without a
response.
*/
package bridge
