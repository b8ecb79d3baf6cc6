// Command apiproxy is a load-balancing HTTP reverse proxy that shards a
// financial Web API's entities (creditors, debtors, or accounts) across
// a fleet of backend servers.
//
// Architecture:
//
//	┌───────────────────────────────────────────────┐
//	│                  apiproxy                      │
//	├───────────────────────────────────────────────┤
//	│  HTTP:                                        │
//	│    <reserve path>   - reserve-random handler  │
//	│    /                - sharded/global/enumerate│
//	├───────────────────────────────────────────────┤
//	│  Components:                                  │
//	│    proxymode.Mode         - process-wide kind │
//	│    atomic.Pointer[cfg]    - live routing plane│
//	│    configwatch.Watcher    - polls config file │
//	│    dispatcher.Handler     - classify+forward  │
//	│    reserve.Handler        - reserve-random    │
//	└───────────────────────────────────────────────┘
//
// Configuration is read entirely from the environment; see the
// getenv/getenvDuration calls in main and proxymode.FromEnv for the
// full list of variables.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dreamware/apiproxy/internal/configwatch"
	"github.com/dreamware/apiproxy/internal/dispatcher"
	"github.com/dreamware/apiproxy/internal/proxymode"
	"github.com/dreamware/apiproxy/internal/reserve"
	"github.com/dreamware/apiproxy/internal/serverscfg"
)

// logFatal is a variable to allow mocking log.Fatal in tests.
var logFatal = log.Fatalf

func main() {
	configFile := getenv("APIPROXY_CONFIG_FILE", "apiproxy.conf")
	port := getenv("APIPROXY_PORT", "8080")
	proxyTimeout := getenvDuration("APIPROXY_PROXY_TIMEOUT", 10000*time.Millisecond)
	overallTimeout := getenvDuration("APIPROXY_TIMEOUT", 15000*time.Millisecond)

	mode, err := proxymode.FromEnv(os.Getenv)
	if err != nil {
		logFatal("apiproxy: %v", err)
	}
	log.Printf("apiproxy: serving mode %s", mode.Kind)

	var cell atomic.Pointer[serverscfg.ServersConfig]
	provider := func() *serverscfg.ServersConfig { return cell.Load() }

	watcher := configwatch.New(configFile, configwatch.DefaultInterval, func(cfg *serverscfg.ServersConfig) {
		cell.Store(cfg)
	})
	go watcher.Start()

	waitForInitialConfig(provider)

	mux := http.NewServeMux()
	mux.Handle("/", dispatcher.New(mode, provider, proxyTimeout))
	if mode.HasReserve() {
		mux.Handle(mode.ReservePath, reserve.New(mode, provider, proxyTimeout))
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       overallTimeout,
		WriteTimeout:      overallTimeout,
		IdleTimeout:       overallTimeout,
	}

	go func() {
		log.Printf("apiproxy: listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logFatal("apiproxy: listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("apiproxy: server shutdown error: %v", err)
	}
	log.Println("apiproxy: stopped")
}

// waitForInitialConfig blocks briefly for the watcher's first
// successful load so the server never starts serving 502s for a
// config that a slower disk simply hasn't read yet.
func waitForInitialConfig(provider func() *serverscfg.ServersConfig) {
	deadline := time.Now().Add(2 * time.Second)
	for provider() == nil && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if provider() == nil {
		log.Println("apiproxy: no config loaded yet, will keep polling in the background")
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		logFatal("apiproxy: %s: invalid duration %q: %v", k, v, err)
	}
	return time.Duration(ms) * time.Millisecond
}
