package consts

const (
	// BoardEventsChannel is the Redis pub/sub channel carrying board and
	// user events between instances.
	BoardEventsChannel = "board-events"

	// ReminderLockPrefix namespaces the per-card reminder dedupe keys.
	ReminderLockPrefix = "reminder:"
)
