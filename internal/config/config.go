package config

import "time"

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = "8080"

	// DefaultDatabaseURL is empty; must be provided via flag or environment
	// unless the server runs with --in-memory.
	DefaultDatabaseURL = ""

	// DefaultMaxConns caps the PostgreSQL connection pool.
	DefaultMaxConns = 10

	// DefaultTimeout bounds each storage round made by the task service.
	DefaultTimeout = 5 * time.Second

	// DefaultConflictRetries is the number of extra attempts a mutation gets
	// after a concurrent write.
	DefaultConflictRetries = 3

	// DefaultPublisher selects the notification sink.
	DefaultPublisher = PublisherLog

	// DefaultChannelPrefix prefixes pg_notify channel names.
	DefaultChannelPrefix = "taskflow."

	// DefaultRelayInterval is how often the outbox relay polls.
	DefaultRelayInterval = 2 * time.Second

	// DefaultRelayBatch is the number of events claimed per relay pass.
	DefaultRelayBatch = 50

	// DefaultMaxAttempts is the number of failed deliveries before an event is dead.
	DefaultMaxAttempts = 10
)

// Publisher names accepted by --publisher.
const (
	PublisherLog      = "log"
	PublisherPGNotify = "pgnotify"
)
