// Package store implements the hot in-memory store (C4) and the process-
// wide log schema registry (C9).
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/warehoused/warehoused/internal/columnar"
	"github.com/warehoused/warehoused/internal/model"
	"github.com/warehoused/warehoused/internal/objectstore"
)

const schemaObjectKey = "schema/log_schema.json"

// SchemaRegistry holds the current log schema in its own RW-locked cell,
// separate from HotStore, so hot-store writers never block a query that
// only needs the schema (§5).
//
// Initialization happens exactly once per process; calling Load twice, or
// calling Get/Merge before Load, are both programming errors and panic —
// the spec calls both "fatal programming errors", not recoverable states.
type SchemaRegistry struct {
	mu       sync.RWMutex
	inited   bool
	schema   *columnar.Schema
	dirty    bool
	store    objectstore.Store
	logger   *logrus.Logger
}

// NewSchemaRegistry constructs an uninitialized registry. Call Load
// before any other method.
func NewSchemaRegistry(store objectstore.Store, logger *logrus.Logger) *SchemaRegistry {
	return &SchemaRegistry{store: store, logger: logger}
}

type persistedField struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Nullable bool   `json:"nullable"`
}

func parseKind(s string) model.Kind {
	switch s {
	case "str":
		return model.KindStr
	case "u64":
		return model.KindU64
	case "i64":
		return model.KindI64
	case "bool":
		return model.KindBool
	default:
		return model.KindNull
	}
}

// Load reads the schema from the object store on startup; a missing file
// yields the default fixed prefix schema.
func (r *SchemaRegistry) Load(ctx context.Context) error {
	var initSchema *columnar.Schema

	data, err := r.store.Get(ctx, schemaObjectKey)
	switch {
	case err == nil:
		var fields []persistedField
		if jsonErr := json.Unmarshal(data, &fields); jsonErr != nil {
			r.logger.WithError(jsonErr).Warn("log schema file malformed, starting from default prefix")
			initSchema = columnar.FixedLogPrefix()
			break
		}
		cf := make([]columnar.Field, 0, len(fields))
		for _, f := range fields {
			cf = append(cf, columnar.Field{Name: f.Name, Kind: parseKind(f.Kind), Nullable: f.Nullable})
		}
		initSchema = columnar.NewSchema(cf)
	default:
		r.logger.WithError(err).Info("no persisted log schema found, starting from default prefix")
		initSchema = columnar.FixedLogPrefix()
	}

	r.init(initSchema)
	return nil
}

func (r *SchemaRegistry) init(schema *columnar.Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inited {
		panic("store: SchemaRegistry already initialized")
	}
	r.schema = schema
	r.inited = true
}

func (r *SchemaRegistry) requireInited() {
	r.mu.RLock()
	inited := r.inited
	r.mu.RUnlock()
	if !inited {
		panic("store: SchemaRegistry used before Load")
	}
}

// Get returns a cheap snapshot of the current schema.
func (r *SchemaRegistry) Get() *columnar.Schema {
	r.requireInited()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schema
}

// Merge computes the field-wise union of the current schema and incoming.
// If the current schema already contains incoming, it is returned
// unchanged and the dirty bit is left clean.
func (r *SchemaRegistry) Merge(incoming *columnar.Schema) (*columnar.Schema, error) {
	r.requireInited()
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schema.Contains(incoming) {
		return r.schema, nil
	}
	merged, err := r.schema.Merge(incoming)
	if err != nil {
		return nil, fmt.Errorf("store: merge log schema: %w", err)
	}
	r.schema = merged
	r.dirty = true
	return r.schema, nil
}

// PersistIfDirty serializes the schema to the object store and clears the
// dirty bit on success. A failure is logged and retried on the next tick
// per the IoError(flush) handling in §7.
func (r *SchemaRegistry) PersistIfDirty(ctx context.Context) error {
	r.requireInited()
	r.mu.Lock()
	if !r.dirty {
		r.mu.Unlock()
		return nil
	}
	schema := r.schema
	r.mu.Unlock()

	fields := make([]persistedField, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		fields = append(fields, persistedField{Name: f.Name, Kind: f.Kind.String(), Nullable: f.Nullable})
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("store: marshal log schema: %w", err)
	}
	if err := r.store.Put(ctx, schemaObjectKey, data); err != nil {
		return fmt.Errorf("store: persist log schema: %w", err)
	}

	r.mu.Lock()
	r.dirty = false
	r.mu.Unlock()
	return nil
}
