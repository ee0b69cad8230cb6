package usecase

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"attribution-engine/internal/attribution/core/domain"
	"attribution-engine/internal/observability"
	"attribution-engine/internal/platform/logger"
)

// ErrBusy signals the intake queue is full; producers should retry later
// instead of the engine buffering without bound.
var ErrBusy = errors.New("intake queue full, retry later")

type PipelineConfig struct {
	Shards    int
	QueueSize int
	// SweepEvery is how often each shard finalizes records whose dedup
	// window elapsed.
	SweepEvery time.Duration
	// IdentityBucket must match the resolver's, so routing and dedup agree
	// on the identity key.
	IdentityBucket time.Duration
	// OpTimeout bounds the processing of a single event or sweep.
	OpTimeout time.Duration
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Shards:         4,
		QueueSize:      1024,
		SweepEvery:     30 * time.Second,
		IdentityBucket: time.Minute,
		OpTimeout:      10 * time.Second,
	}
}

// Pipeline is the sharded worker pool. Events are routed by conversion
// identity so every report of the same conversion lands on the same
// worker; that makes the resolver's read-then-write race free.
type Pipeline struct {
	proc    *ProcessEventUseCase
	cfg     PipelineConfig
	shards  []chan domain.AttributionEvent
	log     *logger.Logger
	metrics *observability.Metrics

	stopping atomic.Bool
	wg       sync.WaitGroup
}

func NewPipeline(proc *ProcessEventUseCase, cfg PipelineConfig, log *logger.Logger, metrics *observability.Metrics) *Pipeline {
	if cfg.Shards <= 0 {
		cfg.Shards = 1
	}
	shards := make([]chan domain.AttributionEvent, cfg.Shards)
	for i := range shards {
		shards[i] = make(chan domain.AttributionEvent, cfg.QueueSize)
	}
	return &Pipeline{
		proc:    proc,
		cfg:     cfg,
		shards:  shards,
		log:     log,
		metrics: metrics,
	}
}

func (p *Pipeline) Start() {
	for i := range p.shards {
		p.wg.Add(1)
		go p.run(i)
	}
}

// Enqueue routes an event to its shard without blocking. A full shard
// queue surfaces as ErrBusy (backpressure to the producer).
func (p *Pipeline) Enqueue(ev domain.AttributionEvent) error {
	if p.stopping.Load() {
		return ErrBusy
	}
	idx := p.shardFor(domain.IdentityOf(ev, p.cfg.IdentityBucket).Key())
	select {
	case p.shards[idx] <- ev:
		return nil
	default:
		p.metrics.QueueRejects.Inc()
		return ErrBusy
	}
}

// Shutdown stops intake, drains the queues, and flushes every still-open
// record so no accepted conversion is lost.
func (p *Pipeline) Shutdown() {
	if p.stopping.Swap(true) {
		return
	}
	for _, ch := range p.shards {
		close(ch)
	}
	p.wg.Wait()

	for i := range p.shards {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.OpTimeout)
		if err := p.proc.FlushShard(ctx, p.keepFor(i)); err != nil {
			p.log.Error("final flush failed", "shard", i, "err", err)
		}
		cancel()
	}
	p.log.Info("pipeline drained")
}

func (p *Pipeline) run(idx int) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.SweepEvery)
	defer ticker.Stop()

	keep := p.keepFor(idx)
	for {
		select {
		case ev, ok := <-p.shards[idx]:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), p.cfg.OpTimeout)
			if err := p.proc.Handle(ctx, ev); err != nil {
				p.log.Error("event processing failed", "event_id", ev.EventID, "err", err)
			}
			cancel()
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.cfg.OpTimeout)
			if err := p.proc.SweepShard(ctx, time.Now().UTC(), keep); err != nil {
				p.log.Error("sweep failed", "shard", idx, "err", err)
			}
			cancel()
		}
	}
}

func (p *Pipeline) keepFor(idx int) func(string) bool {
	return func(identityKey string) bool {
		return p.shardFor(identityKey) == idx
	}
}

func (p *Pipeline) shardFor(identityKey string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identityKey))
	return int(h.Sum32() % uint32(len(p.shards)))
}
