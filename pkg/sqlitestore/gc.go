package sqlitestore

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// sweepTimeout bounds one scheduled sweep so a stuck lock cannot pin the scheduler
const sweepTimeout = time.Minute

// collector runs Store.Sweep on a fixed interval. A failed sweep is logged and
// the next tick runs as usual; a panic inside a sweep is recovered by cron.
type collector struct {
	store    *Store
	interval time.Duration
	logger   zerolog.Logger
	cron     *cron.Cron
}

func newCollector(store *Store, interval time.Duration, logger zerolog.Logger) *collector {
	logger = logger.With().Str("component", "gc").Logger()
	clog := cronLogger{logger: logger}
	return &collector{
		store:    store,
		interval: interval,
		logger:   logger,
		cron: cron.New(cron.WithChain(
			cron.Recover(clog),
			cron.SkipIfStillRunning(clog),
		), cron.WithLogger(clog)),
	}
}

func (c *collector) start() error {
	if _, err := c.cron.AddFunc(fmt.Sprintf("@every %s", c.interval), c.run); err != nil {
		return fmt.Errorf("schedule gc every %s: %w", c.interval, err)
	}
	c.cron.Start()
	c.logger.Debug().Dur("interval", c.interval).Msg("GC scheduled")
	return nil
}

// stop cancels future sweeps and waits for a running one to return
func (c *collector) stop() {
	<-c.cron.Stop().Done()
}

func (c *collector) run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	removed, err := c.store.Sweep(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("GC sweep failed, retrying next tick")
		return
	}
	if removed > 0 {
		c.logger.Info().Int64("removed", removed).Msg("Expired sessions reclaimed")
	}
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
