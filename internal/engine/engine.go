// Package engine orchestrates a clean run: guard and preflight checks,
// then rounds of list-and-drop until the schema is empty or no further
// progress is possible.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/orawipe/orawipe/internal/catalog"
	"github.com/orawipe/orawipe/internal/config"
	"github.com/orawipe/orawipe/internal/dropper"
	"github.com/orawipe/orawipe/internal/guard"
)

// Request describes one clean run.
type Request struct {
	Schema   string
	Parallel int
	Force    bool
}

// RemainingObject pairs a still-present object with its last failure.
type RemainingObject struct {
	Object catalog.Object `json:"object"`
	Reason string         `json:"reason"`
}

// RunResult is the terminal state of a run. An empty Remaining slice
// means every object was dropped.
type RunResult struct {
	Schema    string            `json:"schema"`
	Rounds    int               `json:"rounds"`
	Dropped   int               `json:"dropped"`
	Remaining []RemainingObject `json:"remaining,omitempty"`
}

// Clean reports whether the schema was fully emptied.
func (r *RunResult) Clean() bool {
	return len(r.Remaining) == 0
}

// Lister yields the current set of droppable objects in a schema.
type Lister interface {
	ListObjects(ctx context.Context, owner string) ([]catalog.Object, error)
}

// Dropper removes one object and classifies the outcome.
type Dropper interface {
	Drop(ctx context.Context, obj catalog.Object) dropper.Outcome
}

// Progress carries optional observers for long-running runs.
type Progress struct {
	// OnOutcome is called once per drop attempt, from worker
	// goroutines; implementations must be safe for concurrent use.
	OnOutcome func(dropper.Outcome)
	// OnRound is called after each round collects.
	OnRound func(round, listed, dropped int)
}

// Engine drives the round loop over a catalog and an executor.
type Engine struct {
	Catalog  Lister
	Executor Dropper
	Parallel int
	Logger   *slog.Logger
	Progress Progress
}

// Run iterates rounds of {list, drop in parallel, collect} until the
// catalog reports no objects or a round makes no progress. The object
// set is re-listed from the catalog every round rather than derived
// from the previous round, so cascade-dropped dependents are never
// attempted again. Each round that continues has dropped at least one
// object, bounding the loop by the schema's object count.
//
// Cancelling ctx stops the run at the next round boundary; statements
// already in flight complete, since an interrupted DDL can leave
// ambiguous catalog state.
func (e *Engine) Run(ctx context.Context, schema string) (*RunResult, error) {
	parallel := e.Parallel
	if parallel < 1 {
		parallel = 1
	}

	result := &RunResult{Schema: schema}
	stmtCtx := context.WithoutCancel(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		objects, err := e.Catalog.ListObjects(ctx, schema)
		if err != nil {
			return nil, fmt.Errorf("listing objects in round %d: %w", result.Rounds+1, err)
		}
		if len(objects) == 0 {
			return result, nil
		}

		result.Rounds++
		outcomes := make([]dropper.Outcome, len(objects))

		g := &errgroup.Group{}
		g.SetLimit(parallel)
		for i, obj := range objects {
			i, obj := i, obj
			g.Go(func() error {
				outcomes[i] = e.Executor.Drop(stmtCtx, obj)
				if e.Progress.OnOutcome != nil {
					e.Progress.OnOutcome(outcomes[i])
				}
				return nil
			})
		}
		g.Wait()

		droppedThisRound := 0
		for _, out := range outcomes {
			if out.Status == dropper.Dropped {
				droppedThisRound++
			}
		}
		result.Dropped += droppedThisRound

		e.Logger.Info("round complete",
			"round", result.Rounds,
			"listed", len(objects),
			"dropped", droppedThisRound)
		if e.Progress.OnRound != nil {
			e.Progress.OnRound(result.Rounds, len(objects), droppedThisRound)
		}

		if droppedThisRound == 0 {
			// Stall: a genuine dependency cycle or permanent failures.
			for _, out := range outcomes {
				if out.Status == dropper.Dropped {
					continue
				}
				result.Remaining = append(result.Remaining, RemainingObject{
					Object: out.Object,
					Reason: out.Reason(),
				})
			}
			return result, nil
		}
	}
}

// Clean runs the full pipeline against a database: connect, preflight,
// round loop, final recycle-bin purge. The returned RunResult is
// non-nil whenever err is nil; a guard denial is returned as an error
// before any drop is attempted.
func Clean(ctx context.Context, conn config.ConnectionConfig, protectedPattern string, req Request, logger *slog.Logger, progress Progress) (*RunResult, error) {
	if req.Schema == "" {
		return nil, fmt.Errorf("target schema is required")
	}
	if req.Parallel < 1 {
		req.Parallel = 1
	}

	db, err := catalog.Connect(ctx, conn, req.Parallel+1)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	reader := catalog.NewReader(db)
	if err := reader.InitSession(ctx); err != nil {
		logger.Warn("session init failed", "error", err)
	}

	schema, err := reader.ConformSchemaName(ctx, req.Schema)
	if err != nil {
		return nil, err
	}

	if protectedPattern == "" {
		logger.Warn("no protected schema pattern configured; every non-Oracle-maintained schema can be cleaned",
			"env", config.ProtectedPatternEnv)
	}
	if err := guard.Check(schema, protectedPattern, req.Force); err != nil {
		return nil, err
	}
	maintained, err := reader.MaintainedSchemas(ctx)
	if err != nil {
		return nil, err
	}
	if maintained[schema] {
		// Not overridable: force applies to the pattern, never to
		// schemas Oracle itself maintains.
		return nil, fmt.Errorf("cannot clean Oracle-maintained schema %s", schema)
	}

	if err := reader.ValidateSchema(ctx, schema); err != nil {
		return nil, err
	}

	switch sessions, err := reader.SessionCount(ctx, schema); {
	case err != nil:
		return nil, err
	case sessions < 0:
		logger.Warn("no read access to v$session; cannot check for active schema sessions")
	case sessions > 0:
		logger.Warn("schema has active sessions; they should be terminated before cleaning",
			"schema", schema, "sessions", sessions)
	}

	self := strings.EqualFold(schema, conn.Username)
	if err := reader.PurgeRecycleBin(ctx, schema, self); err != nil {
		return nil, err
	}

	count, err := reader.ObjectCount(ctx, schema)
	if err != nil {
		return nil, err
	}
	logger.Info("starting clean", "schema", schema, "objects", count, "parallel", req.Parallel)

	eng := &Engine{
		Catalog:  reader,
		Executor: dropper.NewExecutor(db, conn.Username, logger),
		Parallel: req.Parallel,
		Logger:   logger,
		Progress: progress,
	}
	result, err := eng.Run(ctx, schema)
	if err != nil {
		return nil, err
	}

	if err := reader.PurgeRecycleBin(ctx, schema, self); err != nil {
		logger.Warn("final recycle bin purge failed", "error", err)
	}

	remaining, err := reader.ObjectCount(ctx, schema)
	if err != nil {
		logger.Warn("final object count failed", "error", err)
	} else {
		logger.Info("clean finished",
			"schema", schema,
			"rounds", result.Rounds,
			"dropped", result.Dropped,
			"remaining", remaining)
	}

	return result, nil
}
