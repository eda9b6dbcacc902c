package follower

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/metasync/internal/hms"
)

func TestProcessorAppliesRelevantEvent(t *testing.T) {
	st := newFakeStore()
	p := NewProcessor(st, "server1", nil)

	applied, err := p.ProcessEvent(context.Background(), tableEvent(1, "sales", "orders"))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, []int64{1}, st.appliedIDs())
}

func TestProcessorIgnoresIrrelevantEvents(t *testing.T) {
	tests := []struct {
		name string
		ev   hms.Event
	}{
		{
			name: "unknown type",
			ev:   hms.Event{ID: 1, Type: "OPEN_TXN", Database: "sales"},
		},
		{
			name: "missing database",
			ev:   hms.Event{ID: 2, Type: hms.EventCreateDatabase},
		},
		{
			name: "table event without table",
			ev:   hms.Event{ID: 3, Type: hms.EventCreateTable, Database: "sales"},
		},
		{
			name: "partition event without location",
			ev:   hms.Event{ID: 4, Type: hms.EventAddPartition, Database: "sales", Table: "orders"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newFakeStore()
			p := NewProcessor(st, "server1", nil)

			applied, err := p.ProcessEvent(context.Background(), tt.ev)
			require.NoError(t, err)
			assert.False(t, applied)
			assert.Empty(t, st.appliedIDs())
		})
	}
}

func TestProcessorDatabaseEventNeedsNoTable(t *testing.T) {
	st := newFakeStore()
	p := NewProcessor(st, "server1", nil)

	applied, err := p.ProcessEvent(context.Background(), hms.Event{
		ID:       1,
		Type:     hms.EventCreateDatabase,
		Database: "sales",
		Location: "/warehouse/sales",
	})
	require.NoError(t, err)
	assert.True(t, applied)
}
