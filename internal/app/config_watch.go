package app

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"jeeveswatcher/internal/config"
	"jeeveswatcher/internal/processor"
	"jeeveswatcher/internal/rules"
)

// configWatcher watches the config file for changes and hot-reloads just
// the inference rule table, atomically swapping it in via
// processor.UpdateRules. It never restarts watch paths, the vector store,
// or the HTTP listener: those require a process restart by design.
type configWatcher struct {
	path     string
	debounce time.Duration
	proc     *processor.Processor

	fsw    *fsnotify.Watcher
	stopCh chan struct{}
}

func newConfigWatcher(path string, debounce time.Duration, proc *processor.Processor) *configWatcher {
	return &configWatcher{path: path, debounce: debounce, proc: proc, stopCh: make(chan struct{})}
}

func (c *configWatcher) start() {
	if c.path == "" {
		return
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("app: config watcher disabled, fsnotify init failed")
		return
	}
	if err := fsw.Add(c.path); err != nil {
		log.Warn().Err(err).Str("path", c.path).Msg("app: config watcher disabled, could not watch file")
		_ = fsw.Close()
		return
	}
	c.fsw = fsw

	go c.loop()
}

func (c *configWatcher) loop() {
	var timer *time.Timer
	reload := func() {
		c.reload()
	}
	for {
		select {
		case <-c.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-c.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(c.debounce, reload)
		case err, ok := <-c.fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("app: config watcher error")
		}
	}
}

func (c *configWatcher) reload() {
	cfg, err := config.Load(c.path)
	if err != nil {
		log.Error().Err(err).Str("path", c.path).Msg("app: config reload failed, keeping current rules")
		return
	}
	compiled, named, err := rules.Compile(cfg.InferenceRules, cfg.Maps)
	if err != nil {
		log.Error().Err(err).Str("path", c.path).Msg("app: config reload failed to compile rules, keeping current rules")
		return
	}
	c.proc.UpdateRules(compiled, named)
	log.Info().Str("path", c.path).Int("rules", len(compiled)).Msg("app: rule table hot-reloaded")
}

func (c *configWatcher) stop() {
	if c.fsw == nil {
		return
	}
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
	_ = c.fsw.Close()
}
