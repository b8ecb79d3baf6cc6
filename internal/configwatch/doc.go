// Package configwatch polls the routes config file on disk for changes
// and republishes a freshly-parsed serverscfg.ServersConfig through a
// caller-supplied callback whenever it changes.
//
// Watcher is deliberately shaped like a periodic health monitor: a
// ticker loop selecting between the ticker and a cancellation context,
// an initial check performed immediately on Start, and Stop draining
// the loop via a WaitGroup before returning. The only difference from
// checking node health over HTTP is what gets polled: file mtime and
// size instead of a /health response.
package configwatch
