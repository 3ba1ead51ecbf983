package store

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/warehoused/warehoused/internal/columnar"
	"github.com/warehoused/warehoused/internal/model"
	"github.com/warehoused/warehoused/internal/objectstore"
)

func TestSchemaRegistryLoadDefaultsWhenMissing(t *testing.T) {
	backing, err := objectstore.NewLocalStore(t.TempDir(), logrus.New())
	require.NoError(t, err)
	reg := NewSchemaRegistry(backing, logrus.New())
	require.NoError(t, reg.Load(context.Background()))

	_, ok := reg.Get().Field("process_id")
	require.True(t, ok)
}

func TestSchemaRegistryDoubleInitPanics(t *testing.T) {
	backing, err := objectstore.NewLocalStore(t.TempDir(), logrus.New())
	require.NoError(t, err)
	reg := NewSchemaRegistry(backing, logrus.New())
	require.NoError(t, reg.Load(context.Background()))

	require.Panics(t, func() { reg.Load(context.Background()) })
}

func TestSchemaRegistryUseBeforeInitPanics(t *testing.T) {
	backing, err := objectstore.NewLocalStore(t.TempDir(), logrus.New())
	require.NoError(t, err)
	reg := NewSchemaRegistry(backing, logrus.New())
	require.Panics(t, func() { reg.Get() })
}

func TestSchemaRegistryMergeThenPersistRoundTrip(t *testing.T) {
	ctx := context.Background()
	backing, err := objectstore.NewLocalStore(t.TempDir(), logrus.New())
	require.NoError(t, err)
	reg := NewSchemaRegistry(backing, logrus.New())
	require.NoError(t, reg.Load(ctx))

	incoming := columnar.NewSchema([]columnar.Field{{Name: "request_id", Kind: model.KindU64, Nullable: true}})
	_, err = reg.Merge(incoming)
	require.NoError(t, err)
	require.NoError(t, reg.PersistIfDirty(ctx))

	reg2 := NewSchemaRegistry(backing, logrus.New())
	require.NoError(t, reg2.Load(ctx))
	_, ok := reg2.Get().Field("request_id")
	require.True(t, ok, "persisted schema must survive a reload")
}
