package hms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventTypeIsValid(t *testing.T) {
	valid := []EventType{
		EventCreateDatabase, EventDropDatabase, EventAlterDatabase,
		EventCreateTable, EventDropTable, EventAlterTable,
		EventAddPartition, EventDropPartition, EventAlterPartition,
	}
	for _, et := range valid {
		assert.True(t, et.IsValid(), "expected %s to be valid", et)
	}

	assert.False(t, EventType("OPEN_TXN").IsValid())
	assert.False(t, EventType("").IsValid())
}

func TestEventObject(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{
			name: "database only",
			ev:   Event{Database: "sales"},
			want: "sales",
		},
		{
			name: "database and table",
			ev:   Event{Database: "sales", Table: "orders"},
			want: "sales.orders",
		},
		{
			name: "no database",
			ev:   Event{Table: "orders"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ev.Object())
		})
	}
}

func TestEventTouchesPaths(t *testing.T) {
	assert.False(t, Event{}.TouchesPaths())
	assert.True(t, Event{Location: "/warehouse/sales"}.TouchesPaths())
	assert.True(t, Event{OldLocation: "/warehouse/old"}.TouchesPaths())
}
