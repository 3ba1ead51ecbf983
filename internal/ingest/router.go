// Package ingest implements the IngestRouter (C2): the single actor that
// serializes concurrent RPC arrivals into one event stream, so per-
// connection arrival order survives into the hot store.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/warehoused/warehoused/internal/aggregator"
	"github.com/warehoused/warehoused/internal/apperr"
	"github.com/warehoused/warehoused/internal/model"
	"github.com/warehoused/warehoused/internal/store"
	"github.com/warehoused/warehoused/internal/telemetry"
)

// MailboxCapacity is the bounded capacity of the ingest mailbox (§5).
const MailboxCapacity = 4096

type kind int

const (
	kindRegisterProcess kind = iota
	kindRecordSpan
	kindRecordLog
)

type envelope struct {
	kind     kind
	process  model.WireProcess
	span     *model.WireSpan
	log      *model.WireLog
	reply    chan registerReply // only set for kindRegisterProcess
}

type registerReply struct {
	process model.Process
	err     error
}

// Router is the single-writer ingest actor. RegisterProcess forwards to
// the hot store; RecordSpan forwards to the span aggregator; RecordLog
// normalizes and buffers into a pending-logs vector drained by the
// aggregator tick (internal/scheduler).
type Router struct {
	mailbox chan envelope
	closed  int32

	aggregator *aggregator.Aggregator
	hotStore   *store.HotStore

	pendingMu sync.Mutex
	pending   []*model.StoredLog

	logger  *logrus.Logger
	dropped prometheus.Counter
}

// New constructs a Router. Call Run in its own goroutine before serving
// RPC traffic.
func New(agg *aggregator.Aggregator, hot *store.HotStore, logger *logrus.Logger, dropped prometheus.Counter) *Router {
	return &Router{
		mailbox:    make(chan envelope, MailboxCapacity),
		aggregator: agg,
		hotStore:   hot,
		logger:     logger,
		dropped:    dropped,
	}
}

// Run drains the mailbox until ctx is canceled, then closes it; after
// that RegisterProcess returns MailboxClosed and RecordSpan/RecordLog
// drop (and count) their records.
func (r *Router) Run(ctx context.Context) {
	defer func() {
		atomic.StoreInt32(&r.closed, 1)
		close(r.mailbox)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-r.mailbox:
			if !ok {
				return
			}
			r.handle(ctx, env)
		}
	}
}

func (r *Router) handle(ctx context.Context, env envelope) {
	telemetry.MailboxDepth.Set(float64(len(r.mailbox)))
	switch env.kind {
	case kindRegisterProcess:
		proc, err := r.hotStore.RegisterProcess(ctx, env.process)
		if err != nil && r.logger != nil {
			r.logger.WithError(err).Fatal("persisting process registry failed")
		}
		env.reply <- registerReply{process: proc, err: err}
		close(env.reply)
	case kindRecordSpan:
		telemetry.IngestEventsTotal.WithLabelValues("span").Inc()
		r.aggregator.Record(env.span)
	case kindRecordLog:
		telemetry.IngestEventsTotal.WithLabelValues("log").Inc()
		stored := env.log.ToStored()
		r.pendingMu.Lock()
		r.pending = append(r.pending, stored)
		r.pendingMu.Unlock()
	}
}

// DrainPendingLogs removes and returns every buffered log, for the
// aggregator tick to fold into the columnar builder.
func (r *Router) DrainPendingLogs() []*model.StoredLog {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	out := r.pending
	r.pending = nil
	return out
}

// RegisterProcess enqueues a registration and blocks for the reply (or
// ctx expiry) since the caller needs the derived process id. If the
// mailbox is transiently full this blocks on the send rather than
// dropping, since an RPC correctness guarantee (the id comes back) is
// owed to the caller; RecordSpan/RecordLog make the opposite tradeoff.
func (r *Router) RegisterProcess(ctx context.Context, wire model.WireProcess) (model.Process, error) {
	if atomic.LoadInt32(&r.closed) == 1 {
		return model.Process{}, apperr.New(apperr.KindMailboxClosed, "RegisterProcess", "ingest mailbox closed")
	}
	reply := make(chan registerReply, 1)
	env := envelope{kind: kindRegisterProcess, process: wire, reply: reply}

	select {
	case r.mailbox <- env:
	case <-ctx.Done():
		return model.Process{}, apperr.Wrap(apperr.KindMailboxClosed, "RegisterProcess", "context canceled while enqueuing", ctx.Err())
	}

	select {
	case res := <-reply:
		if res.err != nil {
			return model.Process{}, fmt.Errorf("ingest: register process: %w", res.err)
		}
		return res.process, nil
	case <-ctx.Done():
		return model.Process{}, apperr.Wrap(apperr.KindMailboxClosed, "RegisterProcess", "context canceled awaiting reply", ctx.Err())
	}
}

// RecordSpan enqueues a span non-blockingly; a full mailbox drops the
// record silently (§5, §8 property 8) and is counted, not surfaced as an
// RPC error.
func (r *Router) RecordSpan(span *model.WireSpan) {
	r.submitBestEffort(envelope{kind: kindRecordSpan, span: span})
}

// RecordLog enqueues a log non-blockingly with the same drop policy.
func (r *Router) RecordLog(log *model.WireLog) {
	r.submitBestEffort(envelope{kind: kindRecordLog, log: log})
}

func (r *Router) submitBestEffort(env envelope) {
	if atomic.LoadInt32(&r.closed) == 1 {
		if r.dropped != nil {
			r.dropped.Inc()
		}
		return
	}
	select {
	case r.mailbox <- env:
	default:
		if r.dropped != nil {
			r.dropped.Inc()
		}
		if r.logger != nil {
			r.logger.Debug("ingest mailbox full, dropping record")
		}
	}
}
