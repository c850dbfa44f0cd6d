// Package vecindex defines the vector-index capability the pipeline writes
// to and queries. Persistence, durability and sharding are the index's own
// concern; the pipeline only sees upsert, query and delete.
package vecindex

import "context"

// Record is one stored embedding with its traceability metadata.
type Record struct {
	Key        string
	VideoID    string
	SceneIndex int
	Vector     []float32
	Tags       map[string]string
}

// Match is one query hit, highest similarity first.
type Match struct {
	Key        string
	VideoID    string
	SceneIndex int
	Score      float32
	Tags       map[string]string
}

// Index is the narrow client interface to the external vector store.
// Upsert is idempotent per key: re-indexing a scene overwrites its prior
// entry. Concurrent upserts to different keys are safe; same-key writes
// resolve last-write-wins.
type Index interface {
	Upsert(ctx context.Context, rec Record) error
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)
	Delete(ctx context.Context, key string) error
	Dimension() int
}

// Config carries the connection parameters for the Postgres-backed index.
// It travels as an explicit value so the client is a pure function of
// (config, operation), never of ambient environment state.
type Config struct {
	Host      string
	Port      string
	User      string
	Password  string
	DBName    string
	Dimension int
}
