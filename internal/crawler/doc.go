// Package crawler explores a web application breadth-first.
//
// # Architecture
//
// The package is built from four parts:
//
//   - Frontier: the URL queue with the visited set, scope filter, depth
//     limit and page budget
//   - Session: one crawl's frontier plus the exploration it accumulates
//   - Extractor: turns a loaded browser page into page, form and element
//     records and the page's outgoing links
//   - Explorer: the loop that claims entries, drives the browser, runs
//     post-visit hooks and feeds discovered links back to the frontier
//
// The browser itself is an external capability behind browser.Browser, so
// the same loop runs against Chrome (rod) or a plain HTTP fetcher.
//
// # Scope
//
// Only URLs on the start URL's host are followed. Links to documents,
// images, archives and other non-page files are never enqueued, and
// ignore/follow path patterns narrow the scope further. Every URL is
// normalized (fragment dropped, scheme and host lowercased, default port
// removed) before it is compared.
//
// # Usage
//
//	explorer := crawler.NewExplorer(b,
//		crawler.WithMaxDepth(3),
//		crawler.WithMaxPages(50),
//	)
//	exploration, err := explorer.Explore(ctx, seed.Seed{TargetURL: "http://localhost:3000"})
//
// # Failures
//
// A page that fails to load or extract is recorded as a failed visit and
// still counts against the page budget. It never aborts the exploration;
// only context cancellation does.
package crawler
