package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"party-beacon/internal/notify/platforms"
)

var errCircuitOpen = errors.New("circuit_open")

func (n *Notifier) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case job := <-n.dispatchCh:
			metricNotifyQueueLen.Set(int64(len(n.dispatchCh)))
			n.processJob(ctx, job)
		}
	}
}

func (n *Notifier) processJob(ctx context.Context, job pushJob) {
	adapter := n.adapters[job.Target.Platform]
	if adapter == nil {
		metricNotifyDroppedTotal.Add(1)
		return
	}

	if err := n.beforeSend(job.key(), time.Now()); err != nil {
		metricNotifyCircuitOpenTotal.Add(1)
		n.retryOrDrop(job, err)
		return
	}

	n.limiter(job.key()).Take()
	err := adapter.Send(ctx, job.Target.Endpoint, job.Target.Secret, toPlatformMessage(job))
	if err != nil {
		metricNotifyFailedTotal.Add(1)
		n.afterFailure(job.key(), time.Now())
		n.retryOrDrop(job, err)
		return
	}

	metricNotifySentTotal.Add(1)
	n.afterSuccess(job.key())
}

func (n *Notifier) retryOrDrop(job pushJob, err error) bool {
	if job.Attempt >= n.cfg.RetryMax || !platforms.Retryable(err) {
		metricNotifyRetryDroppedTotal.Add(1)
		log.Warn().
			Err(err).
			Str("platform", job.Target.Platform).
			Str("event", job.Event.Type).
			Int("attempts", job.Attempt+1).
			Msg("notify delivery dropped")
		return false
	}
	job.Attempt++
	metricNotifyRetryTotal.Add(1)
	delay := n.cfg.RetryBase * time.Duration(1<<(job.Attempt-1))
	return n.retryQ.Enqueue(job, delay)
}

func (n *Notifier) beforeSend(key string, now time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	state := n.breakerByKey[key]
	if !state.openUntil.IsZero() && now.Before(state.openUntil) {
		return errCircuitOpen
	}
	return nil
}

func (n *Notifier) afterFailure(key string, now time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	state := n.breakerByKey[key]
	state.consecutiveFailures++
	if state.consecutiveFailures >= n.cfg.FailureThreshold {
		state.openUntil = now.Add(n.cfg.CircuitOpenDuration)
		state.consecutiveFailures = 0
	}
	n.breakerByKey[key] = state
}

func (n *Notifier) afterSuccess(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.breakerByKey[key] = breakerState{}
}

func toPlatformMessage(job pushJob) platforms.Message {
	msg := job.Formatted
	fields := make([]platforms.Field, 0, len(msg.Fields))
	for _, f := range msg.Fields {
		fields = append(fields, platforms.Field{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return platforms.Message{
		Title:       msg.Title,
		Content:     msg.Content,
		Description: msg.Description,
		Color:       msg.Color,
		Timestamp:   msg.Timestamp,
		Footer:      msg.Footer,
		Fields:      fields,
		Payload:     job.Event,
	}
}
