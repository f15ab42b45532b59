package events

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/tempmon/internal/domain/alarm"
)

func TestStoreRecordAndRecent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	store, err := Open(ctx, filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	transition := alarm.Event{
		Kind:         alarm.EventTransition,
		Time:         base,
		Key:          alarm.NewKey(alarm.TypeHighTemperature, 5),
		PointAddress: 5,
		PointName:    "Boiler",
		Type:         alarm.TypeHighTemperature,
		Priority:     alarm.PriorityHigh,
		From:         alarm.StageNew,
		To:           alarm.StageActive,
		Temperature:  51,
		Threshold:    50,
	}

	config := alarm.Event{
		Kind:         alarm.EventConfig,
		Time:         base.Add(time.Second),
		Key:          alarm.NewKey(alarm.TypeHighTemperature, 5),
		PointAddress: 5,
		PointName:    "Boiler",
		Type:         alarm.TypeHighTemperature,
		Priority:     alarm.PriorityCritical,
		From:         alarm.StageActive,
		To:           alarm.StageActive,
		Temperature:  51,
		Threshold:    50,
		Field:        "priority",
		OldValue:     "HIGH",
		NewValue:     "CRITICAL",
	}

	message := alarm.Event{
		Kind:    alarm.EventInfo,
		Time:    base.Add(2 * time.Second),
		Message: "Cleared 3 configured alarms",
	}

	for _, e := range []alarm.Event{transition, config, message} {
		require.NoError(t, store.Record(ctx, e))
	}

	entries, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, message, entries[0].Event)
	require.Equal(t, config, entries[1].Event)
	require.NotEqual(t, entries[0].ID, entries[1].ID)

	entries, err = store.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, transition, entries[2].Event)
}

func TestStoreClosed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	store, err := Open(ctx, filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	require.ErrorIs(t, store.Record(ctx, alarm.Event{}), errStoreClosed)

	_, err = store.Recent(ctx, 1)
	require.ErrorIs(t, err, errStoreClosed)
}
