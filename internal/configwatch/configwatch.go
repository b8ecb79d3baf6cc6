package configwatch

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dreamware/apiproxy/internal/serverscfg"
)

// DefaultInterval is how often the config file is polled when the
// caller does not override it.
const DefaultInterval = 2 * time.Second

// Watcher polls one config file for changes and republishes a new
// ServersConfig on the provided callback whenever the file's mtime or
// size changes and it reparses successfully. A failed reparse is
// logged and the previous config is left in place.
type Watcher struct {
	path     string
	interval time.Duration
	onReload func(*serverscfg.ServersConfig)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	lastMTime time.Time
	lastSize  int64
}

// New builds a Watcher for the config file at path. onReload is
// invoked with each successfully parsed ServersConfig, including the
// very first one read during Start.
func New(path string, interval time.Duration, onReload func(*serverscfg.ServersConfig)) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		path:     path,
		interval: interval,
		onReload: onReload,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins polling in the current goroutine, performing an initial
// check immediately, then looping on a ticker until Stop is called.
// It blocks until the context is canceled.
func (w *Watcher) Start() {
	w.wg.Add(1)
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Printf("configwatch: watching %s every %v", w.path, w.interval)

	w.checkAndReload()

	for {
		select {
		case <-ticker.C:
			w.checkAndReload()
		case <-w.ctx.Done():
			log.Println("configwatch: stopping due to context cancellation")
			return
		}
	}
}

// Stop cancels the polling loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.cancel()
	w.wg.Wait()
	log.Println("configwatch: stopped")
}

func (w *Watcher) checkAndReload() {
	info, err := os.Stat(w.path)
	if err != nil {
		log.Printf("configwatch: stat %s: %v", w.path, err)
		return
	}

	w.mu.Lock()
	changed := info.ModTime() != w.lastMTime || info.Size() != w.lastSize
	w.mu.Unlock()
	if !changed {
		return
	}

	raw, err := os.ReadFile(w.path)
	if err != nil {
		log.Printf("configwatch: read %s: %v", w.path, err)
		return
	}

	cfg, lineErrs, err := serverscfg.Load(raw)
	for _, lineErr := range lineErrs {
		log.Printf("configwatch: %v", lineErr)
	}
	if err != nil {
		log.Printf("configwatch: reload of %s failed, keeping previous config: %v", w.path, err)
		return
	}

	w.mu.Lock()
	w.lastMTime = info.ModTime()
	w.lastSize = info.Size()
	w.mu.Unlock()

	log.Printf("configwatch: loaded new config version %s from %s", cfg.Version(), w.path)
	w.onReload(cfg)
}
