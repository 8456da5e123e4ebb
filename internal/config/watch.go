package config

import (
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watcher keeps the queue settings in sync with the config file. Only the
// queue section is hot-reloadable; everything else needs a restart.
type Watcher struct {
	v        *viper.Viper
	settings atomic.Pointer[QueueSettings]

	mu        sync.Mutex
	listeners []func(QueueSettings)
	onError   func(error)
}

// NewWatcher reads configFile and starts watching it for writes. onError is
// called when a changed file fails to parse or validate; the previous
// settings stay in effect.
func NewWatcher(configFile string, onError func(error)) (*Watcher, error) {
	v, err := newViper(configFile)
	if err != nil {
		return nil, err
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	w := &Watcher{v: v, onError: onError}
	w.store(cfg.Queue.Settings())

	v.OnConfigChange(w.handleChange)
	v.WatchConfig()

	return w, nil
}

func (w *Watcher) QueueSettings() QueueSettings {
	return *w.settings.Load()
}

// OnChange registers fn to be called after every successful reload.
func (w *Watcher) OnChange(fn func(QueueSettings)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

func (w *Watcher) store(s QueueSettings) {
	w.settings.Store(&s)
}

func (w *Watcher) handleChange(_ fsnotify.Event) {
	cfg, err := decode(w.v)
	if err != nil {
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	w.apply(cfg.Queue.Settings())
}

func (w *Watcher) apply(s QueueSettings) {
	w.store(s)

	w.mu.Lock()
	listeners := append([]func(QueueSettings){}, w.listeners...)
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}
