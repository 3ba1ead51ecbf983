package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/warehoused/warehoused/internal/columnar"
	"github.com/warehoused/warehoused/internal/model"
	"github.com/warehoused/warehoused/internal/objectstore"
)

const processRegistryKey = "process.json"

// HotStore holds recent record batches, the process registry, and a
// dirty bit, guarded by a single RW lock (§4.4). Exactly one writer runs
// at a time (the aggregator tick and the ingest RegisterProcess path);
// readers (queries) proceed concurrently with each other.
type HotStore struct {
	mu sync.RWMutex

	services map[string][]model.Process // keyed by service name, append-only
	byID     map[string]model.Process

	spanBatches []*columnar.Batch
	logBatches  []*columnar.Batch
	dirty       bool

	schema *SchemaRegistry
	store  objectstore.Store
	logger *logrus.Logger
}

// NewHotStore constructs an empty store. Call Load before serving traffic.
func NewHotStore(schema *SchemaRegistry, backing objectstore.Store, logger *logrus.Logger) *HotStore {
	return &HotStore{
		services: make(map[string][]model.Process),
		byID:     make(map[string]model.Process),
		schema:   schema,
		store:    backing,
		logger:   logger,
	}
}

// Load reads the persisted process registry. A missing or malformed file
// is logged and yields an empty store — non-fatal, per §4.4.
func (h *HotStore) Load(ctx context.Context) {
	data, err := h.store.Get(ctx, processRegistryKey)
	if err != nil {
		h.logger.WithError(err).Info("no persisted process registry found, starting empty")
		return
	}
	var procs []model.Process
	if err := json.Unmarshal(data, &procs); err != nil {
		h.logger.WithError(err).Warn("process registry file malformed, starting empty")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range procs {
		h.services[p.ServiceName] = append(h.services[p.ServiceName], p)
		h.byID[p.ID] = p
	}
}

// RegisterProcess derives an id, appends it to the registry, and persists
// the whole registry atomically. Persist failure is fatal — the caller is
// expected to treat the returned error as a startup/operational fatal
// condition (§7: IoError on the hot path).
func (h *HotStore) RegisterProcess(ctx context.Context, wire model.WireProcess) (model.Process, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ordinal := len(h.services[wire.ServiceName])
	proc := model.Process{
		ID:          fmt.Sprintf("%s-%d", wire.ServiceName, ordinal),
		ServiceName: wire.ServiceName,
		Tags:        wire.Tags,
	}
	h.services[wire.ServiceName] = append(h.services[wire.ServiceName], proc)
	h.byID[proc.ID] = proc

	if err := h.persistRegistryLocked(ctx); err != nil {
		// Roll back so a retried registration doesn't skip an ordinal.
		h.services[wire.ServiceName] = h.services[wire.ServiceName][:ordinal]
		delete(h.byID, proc.ID)
		return model.Process{}, fmt.Errorf("store: persist process registry: %w", err)
	}
	return proc, nil
}

func (h *HotStore) persistRegistryLocked(ctx context.Context) error {
	all := make([]model.Process, 0, len(h.byID))
	// Stable order: by service, then by registration order within it.
	names := make([]string, 0, len(h.services))
	for name := range h.services {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		all = append(all, h.services[name]...)
	}
	data, err := json.Marshal(all)
	if err != nil {
		return err
	}
	return h.store.Put(ctx, processRegistryKey, data)
}

// Services returns every known service name.
func (h *HotStore) Services() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.services))
	for name := range h.services {
		out = append(out, name)
	}
	return out
}

// ProcessByID looks up a process by its derived id.
func (h *HotStore) ProcessByID(id string) (model.Process, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.byID[id]
	return p, ok
}

// MergeSpans builds a batch from spans and appends it to the hot store.
func (h *HotStore) MergeSpans(spans []*model.StoredSpan) {
	batch := columnar.BuildSpanBatch(spans)
	if batch == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.spanBatches = append(h.spanBatches, batch)
	h.dirty = true
}

// MergeLogs builds a batch from logs, merges its schema into the running
// log schema, and appends the batch. A schema conflict (a field observed
// with an incompatible type) drops the batch and surfaces the error,
// logged by the caller (§7: SchemaConflict).
func (h *HotStore) MergeLogs(logs []*model.StoredLog) error {
	batch := columnar.BuildLogBatch(logs)
	if batch == nil {
		return nil
	}
	if _, err := h.schema.Merge(batch.Schema); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logBatches = append(h.logBatches, batch)
	h.dirty = true
	return nil
}

// Reset moves both batch lists out for the partition writer, leaving the
// schema intact, and clears the dirty bit.
func (h *HotStore) Reset() (spans []*columnar.Batch, logs []*columnar.Batch) {
	h.mu.Lock()
	defer h.mu.Unlock()
	spans, logs = h.spanBatches, h.logBatches
	h.spanBatches = nil
	h.logBatches = nil
	h.dirty = false
	return spans, logs
}

// Snapshot is a cheap, read-only view over the hot store for queries.
// Batches are immutable once built, so sharing the slice headers costs
// nothing beyond the copy of the headers themselves.
type Snapshot struct {
	LogSchema   *columnar.Schema
	SpanBatches []*columnar.Batch
	LogBatches  []*columnar.Batch
}

// SnapshotForQuery takes a read lock just long enough to copy the batch
// slice headers; it never blocks on I/O.
func (h *HotStore) SnapshotForQuery() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	spanBatches := make([]*columnar.Batch, len(h.spanBatches))
	copy(spanBatches, h.spanBatches)
	logBatches := make([]*columnar.Batch, len(h.logBatches))
	copy(logBatches, h.logBatches)
	return Snapshot{
		LogSchema:   h.schema.Get(),
		SpanBatches: spanBatches,
		LogBatches:  logBatches,
	}
}

// IsDirty reports whether there is unflushed data.
func (h *HotStore) IsDirty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dirty
}
