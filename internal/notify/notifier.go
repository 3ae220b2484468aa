package notify

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/ratelimit"

	"party-beacon/internal/notify/platforms"
)

type breakerState struct {
	consecutiveFailures int
	openUntil           time.Time
}

// Notifier fans ledger events out to chat and webhook targets. Delivery is
// best effort: a full queue drops the event.
type Notifier struct {
	cfg      Config
	adapters map[string]platforms.Adapter

	dispatchCh chan pushJob
	retryQ     *retryQueue
	done       chan struct{}

	mu           sync.Mutex
	started      bool
	breakerByKey map[string]breakerState
	limiterByKey map[string]ratelimit.Limiter
}

func NewNotifier(cfg Config) *Notifier {
	client := platforms.NewHTTPClient(cfg.RequestTimeout)
	adapters := map[string]platforms.Adapter{
		"discord": platforms.NewDiscordAdapter(client),
		"feishu":  platforms.NewFeishuAdapter(client),
		"webhook": platforms.NewWebhookAdapter(client),
	}
	if cfg.DispatchBuffer <= 0 {
		cfg.DispatchBuffer = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.CircuitOpenDuration <= 0 {
		cfg.CircuitOpenDuration = 30 * time.Second
	}

	n := &Notifier{
		cfg:          cfg,
		adapters:     adapters,
		dispatchCh:   make(chan pushJob, cfg.DispatchBuffer),
		done:         make(chan struct{}),
		breakerByKey: map[string]breakerState{},
		limiterByKey: map[string]ratelimit.Limiter{},
	}
	n.retryQ = newRetryQueue(n.dispatchCh, n.done)
	return n
}

func (n *Notifier) Start(ctx context.Context) error {
	if !n.cfg.Enabled {
		return nil
	}

	n.mu.Lock()
	if n.started {
		n.mu.Unlock()
		return nil
	}
	n.started = true
	n.mu.Unlock()

	for i := 0; i < n.cfg.Workers; i++ {
		go n.worker(ctx)
	}
	if n.cfg.ConfigPath != "" {
		go n.watchConfigLoop(ctx)
	}
	go func() {
		<-ctx.Done()
		close(n.done)
		if dropped := n.retryQ.Stop(); dropped > 0 {
			metricNotifyRetryDroppedTotal.Add(int64(dropped))
			log.Info().Int("dropped", dropped).Msg("notifier stopped with retries pending")
		}
	}()
	log.Info().Int("targets", len(n.currentTargets())).Int("workers", n.cfg.Workers).Msg("notifier started")
	return nil
}

func (n *Notifier) Notify(ev Event) {
	if !n.cfg.Enabled || ev.Type == "" {
		return
	}
	targets := MatchTargets(n.currentTargets(), ev)
	if len(targets) == 0 {
		return
	}
	formatted, ok := FormatMessage(ev)
	if !ok {
		return
	}
	for _, target := range targets {
		if !n.enqueue(pushJob{Target: target, Event: ev, Formatted: formatted}) {
			metricNotifyDroppedTotal.Add(1)
		}
	}
}

func (n *Notifier) enqueue(job pushJob) bool {
	select {
	case <-n.done:
		return false
	case n.dispatchCh <- job:
		metricNotifyQueuedTotal.Add(1)
		metricNotifyQueueLen.Set(int64(len(n.dispatchCh)))
		return true
	default:
		return false
	}
}

// limiter paces deliveries to one target.
func (n *Notifier) limiter(key string) ratelimit.Limiter {
	n.mu.Lock()
	defer n.mu.Unlock()
	l, ok := n.limiterByKey[key]
	if !ok {
		if n.cfg.RatePerSecond > 0 {
			l = ratelimit.New(n.cfg.RatePerSecond, ratelimit.WithoutSlack)
		} else {
			l = ratelimit.NewUnlimited()
		}
		n.limiterByKey[key] = l
	}
	return l
}

func (n *Notifier) currentTargets() []Target {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Target, len(n.cfg.Targets))
	copy(out, n.cfg.Targets)
	return out
}

func (n *Notifier) watchConfigLoop(ctx context.Context) {
	interval := n.cfg.ConfigReload
	if interval <= 0 {
		interval = time.Second
	}
	lastRaw := ""
	if raw, err := os.ReadFile(n.cfg.ConfigPath); err == nil {
		lastRaw = strings.TrimSpace(string(raw))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case <-ticker.C:
			raw, err := os.ReadFile(n.cfg.ConfigPath)
			if err != nil {
				metricNotifyReloadErrors.Add(1)
				continue
			}
			nextRaw := strings.TrimSpace(string(raw))
			if nextRaw == lastRaw {
				continue
			}
			targets, err := parseTargetsJSON(nextRaw)
			if err != nil {
				metricNotifyReloadErrors.Add(1)
				log.Warn().Err(err).Str("path", n.cfg.ConfigPath).Msg("notify targets reload failed")
				continue
			}
			n.mu.Lock()
			n.cfg.Targets = targets
			n.mu.Unlock()
			lastRaw = nextRaw
			metricNotifyReloadTotal.Add(1)
		}
	}
}
