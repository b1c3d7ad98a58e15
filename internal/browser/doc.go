// Package browser provides the browsing capability used by the explorer:
// navigation with a timeout and wait strategy, structured DOM facts and
// screenshots.
//
// Two drivers implement the Browser interface:
//   - RodBrowser drives headless Chrome through go-rod and sees
//     client-rendered content.
//   - StaticBrowser fetches pages over HTTP and parses them with
//     golang.org/x/net/html. It needs no browser binary but cannot run
//     scripts or take screenshots.
//
// Both report a non-2xx response as a *NavigationError so callers treat it
// like any other failed navigation.
package browser
