/*
Package sandbox provides an in-process browser context built on goja.

# Overview

The runtime stands in for a hidden browser window when no Chrome binary is
available. It offers the subset of a page environment a vendor loader needs:

  - window and self aliases of the global object
  - document.createElement and document.head.appendChild
  - script tags that fetch and run their src, then fire onload or onerror
  - setTimeout and clearTimeout
  - console output routed to the logger

# Event Loop

One goroutine owns the VM. Evaluations, timer callbacks and script loads are
queued as tasks and run in order, so promise continuations behave the way
they do in a page. Each task is interrupted once it runs past
Config.Timeout.

# Request Filtering

Navigation and script tags consult a RequestFilter before anything is
fetched. A blocked script fires onerror; a blocked navigation returns
ErrNavigationBlocked.

# Usage Example

	rt, err := sandbox.New(sandbox.DefaultConfig(), keeper, sandbox.NewHTTPFetcher(2, 30*time.Second), logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	out, err := rt.Evaluate(ctx, `() => Promise.resolve("ready")`)
*/
package sandbox
