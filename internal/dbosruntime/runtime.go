package dbosruntime

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	_ "github.com/lib/pq"
)

// Runtime owns the DBOS context and the conversion queues registered on it
type Runtime struct {
	dbosContext dbos.DBOSContext
	queues      map[string]dbos.WorkflowQueue
	names       map[string]bool
	config      Config
	db          *sql.DB
}

// NewRuntime connects to the DBOS system database and registers every
// configured queue. It does not launch.
func NewRuntime(ctx context.Context, cfg Config) (*Runtime, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DBOS_SYSTEM_DATABASE_URL is required")
	}
	cfg.WithDefaults()

	dbosCtx, err := dbos.NewDBOSContext(ctx, dbos.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		ApplicationVersion: cfg.ApplicationVersion,
	})
	if err != nil {
		return nil, err
	}

	// Queues must exist before Launch. Enqueue-only processes register none
	// so they never dequeue.
	queues := make(map[string]dbos.WorkflowQueue)
	names := make(map[string]bool)
	for _, name := range cfg.Queues() {
		names[name] = true
		if !cfg.EnqueueOnly {
			queues[name] = dbos.NewWorkflowQueue(dbosCtx, name, dbos.WithWorkerConcurrency(cfg.Concurrency))
		}
	}

	// Status lookups read dbos.workflow_status directly
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		dbosContext: dbosCtx,
		queues:      queues,
		names:       names,
		config:      cfg,
		db:          db,
	}, nil
}

// Launch starts the queue workers. Workflows must be registered first.
func (r *Runtime) Launch() error {
	return dbos.Launch(r.dbosContext)
}

// Shutdown stops the workers and closes the status connection
func (r *Runtime) Shutdown(timeout time.Duration) error {
	dbos.Shutdown(r.dbosContext, timeout)
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Context returns the DBOS context
func (r *Runtime) Context() dbos.DBOSContext {
	return r.dbosContext
}

// DB returns the SQL handle on the DBOS database
func (r *Runtime) DB() *sql.DB {
	return r.db
}

// QueueName returns the default queue name
func (r *Runtime) QueueName() string {
	return r.config.QueueName
}

// HasQueue reports whether the queue was configured at construction
func (r *Runtime) HasQueue(name string) bool {
	return r.names[name]
}

// Concurrency returns the configured concurrency
func (r *Runtime) Concurrency() int {
	return r.config.Concurrency
}
