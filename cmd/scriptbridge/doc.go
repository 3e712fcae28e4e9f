/*
Scriptbridge hosts a hidden browser page and lets another process call into a
script loaded in it.

The process parks the page on the application's home page, prints
{"status":"waiting_for_init"} and then reads one JSON request per line from
standard input. The first request loads a vendor script; later requests call
functions the script defines. Each request gets exactly one response line on
standard output carrying its req_id. Logs go to standard error.

Usage:

	BROWSER_ENGINE=chrome scriptbridge

Configuration is read from the environment:

	MAUTRIX_GVOICE_ELECTRON_DEBUG  "true" shows the window with DevTools open
	BROWSER_ENGINE                 chrome (default) or sandbox
	BROWSER_BIN                    Chrome binary to launch
	BROWSER_CONTROL_URL            attach to a running Chrome instead
	BROWSER_NAVIGATION_TIMEOUT     page load timeout (default 60s)
	SANDBOX_TIMEOUT                per-slice JavaScript timeout (default 10s)
	SANDBOX_FETCH_RETRIES          script fetch retries (default 2)
	LOG_LEVEL                      debug, info, warn or error (default info)
	LOG_DEV                        colored console logs
	METRICS_ADDR                   serve /metrics and /healthz on this address
*/
package main
