// Package hms defines the canonical schema for Hive metastore change
// notifications as consumed by the follower. All components that touch
// notifications MUST use these types.
package hms

// EventType identifies the kind of metastore change an event describes.
// Values match the event type strings emitted by the metastore.
type EventType string

const (
	EventCreateDatabase EventType = "CREATE_DATABASE"
	EventDropDatabase   EventType = "DROP_DATABASE"
	EventAlterDatabase  EventType = "ALTER_DATABASE"
	EventCreateTable    EventType = "CREATE_TABLE"
	EventDropTable      EventType = "DROP_TABLE"
	EventAlterTable     EventType = "ALTER_TABLE"
	EventAddPartition   EventType = "ADD_PARTITION"
	EventDropPartition  EventType = "DROP_PARTITION"
	EventAlterPartition EventType = "ALTER_PARTITION"
)

// IsValid checks if the event type is one the follower knows how to apply.
func (t EventType) IsValid() bool {
	switch t {
	case EventCreateDatabase, EventDropDatabase, EventAlterDatabase,
		EventCreateTable, EventDropTable, EventAlterTable,
		EventAddPartition, EventDropPartition, EventAlterPartition:
		return true
	default:
		return false
	}
}

// Event is a single change notification from the metastore.
//
// Event ids are assigned upstream and are intended to increase by one, but
// gaps, duplicates and backward jumps all occur in practice; consumers must
// not assume contiguity.
type Event struct {
	ID          int64     `json:"id" bson:"event_id"`
	Type        EventType `json:"type" bson:"event_type"`
	Database    string    `json:"database,omitempty" bson:"database,omitempty"`
	Table       string    `json:"table,omitempty" bson:"table,omitempty"`
	Location    string    `json:"location,omitempty" bson:"location,omitempty"`
	OldLocation string    `json:"old_location,omitempty" bson:"old_location,omitempty"`
	TimestampMs int64     `json:"timestamp_ms" bson:"timestamp_ms"`
}

// Object returns the authorizable object the event refers to, in
// "database" or "database.table" form. Empty when the event carries no
// database.
func (e Event) Object() string {
	if e.Database == "" {
		return ""
	}
	if e.Table == "" {
		return e.Database
	}
	return e.Database + "." + e.Table
}

// TouchesPaths reports whether the event can affect the path image.
func (e Event) TouchesPaths() bool {
	return e.Location != "" || e.OldLocation != ""
}
