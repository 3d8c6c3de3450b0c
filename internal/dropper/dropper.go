// Package dropper builds and executes the kind-specific DROP statement
// for a single catalog object, classifying each failure as either a
// dependency that a later round can clear or a terminal error.
package dropper

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/orawipe/orawipe/internal/catalog"
)

// Status is the outcome classification of one drop attempt.
type Status int

const (
	// Dropped means the object was removed.
	Dropped Status = iota
	// Blocked means the failure is attributable to a dependency or
	// lock that a later round is expected to clear.
	Blocked
	// Failed means any other database error. Non-fatal for the run;
	// retained and reported if the object survives to the end.
	Failed
)

func (s Status) String() string {
	switch s {
	case Dropped:
		return "dropped"
	case Blocked:
		return "blocked"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the result of one drop attempt on one object.
type Outcome struct {
	Object catalog.Object
	Status Status
	Err    error
}

// Reason renders the failure for reporting; empty for dropped objects.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// ORA- codes whose drops are expected to succeed once a blocking
// object is gone or a lock is released.
var blockedCodes = map[int]bool{
	60:    true, // deadlock detected
	54:    true, // resource busy
	2449:  true, // unique/primary keys referenced by foreign keys
	2429:  true, // cannot drop index used for enforcement of unique/primary key
	4021:  true, // timeout while waiting to lock object
	14452: true, // temporary table in use
}

type statementFunc func(obj catalog.Object, selfOwned bool) string

// statements maps each object kind to its DROP statement builder. The
// kind set is closed (fixed by the Oracle catalog), so missing entries
// are a programming error surfaced by Statement.
var statements = map[catalog.Kind]statementFunc{
	catalog.KindRefConstraint: func(o catalog.Object, _ bool) string {
		return fmt.Sprintf(`alter table %s."%s" drop constraint "%s"`, o.Owner, o.Table, o.Name)
	},
	catalog.KindDBMSJob: func(o catalog.Object, selfOwned bool) string {
		// dbms_job can only remove the executing user's own jobs;
		// dbms_ijob removes any schema's.
		if selfOwned {
			return fmt.Sprintf("begin dbms_job.remove('%s'); end;", o.Name)
		}
		return fmt.Sprintf("begin dbms_ijob.remove('%s'); end;", o.Name)
	},
	catalog.KindTable: func(o catalog.Object, _ bool) string {
		return fmt.Sprintf(`drop table %s."%s" cascade constraints purge`, o.Owner, o.Name)
	},
	catalog.KindView: func(o catalog.Object, _ bool) string {
		return fmt.Sprintf(`drop view %s."%s"`, o.Owner, o.Name)
	},
	catalog.KindMaterializedView: func(o catalog.Object, _ bool) string {
		return fmt.Sprintf(`drop materialized view %s."%s"`, o.Owner, o.Name)
	},
	catalog.KindSequence: func(o catalog.Object, _ bool) string {
		return fmt.Sprintf(`drop sequence %s."%s"`, o.Owner, o.Name)
	},
	catalog.KindSynonym: func(o catalog.Object, _ bool) string {
		return fmt.Sprintf(`drop synonym %s."%s"`, o.Owner, o.Name)
	},
	catalog.KindProcedure: func(o catalog.Object, _ bool) string {
		return fmt.Sprintf("drop procedure %s.%s", o.Owner, o.Name)
	},
	catalog.KindFunction: func(o catalog.Object, _ bool) string {
		return fmt.Sprintf("drop function %s.%s", o.Owner, o.Name)
	},
	catalog.KindPackage: func(o catalog.Object, _ bool) string {
		return fmt.Sprintf("drop package %s.%s", o.Owner, o.Name)
	},
	catalog.KindType: func(o catalog.Object, _ bool) string {
		return fmt.Sprintf(`drop type %s."%s" force`, o.Owner, o.Name)
	},
	catalog.KindTrigger: func(o catalog.Object, _ bool) string {
		return fmt.Sprintf(`drop trigger %s."%s"`, o.Owner, o.Name)
	},
	catalog.KindIndex: func(o catalog.Object, _ bool) string {
		return fmt.Sprintf(`drop index %s."%s"`, o.Owner, o.Name)
	},
	catalog.KindJob: func(o catalog.Object, _ bool) string {
		return fmt.Sprintf("begin dbms_scheduler.drop_job('%s.%s', force => TRUE); end;", o.Owner, o.Name)
	},
	catalog.KindChain: func(o catalog.Object, _ bool) string {
		return fmt.Sprintf("begin dbms_scheduler.drop_chain('%s.%s', force => TRUE); end;", o.Owner, o.Name)
	},
	catalog.KindProgram: func(o catalog.Object, _ bool) string {
		return fmt.Sprintf("begin dbms_scheduler.drop_program('%s.%s', force => TRUE); end;", o.Owner, o.Name)
	},
	catalog.KindCredential: func(o catalog.Object, _ bool) string {
		return fmt.Sprintf("begin dbms_credential.drop_credential('%s.%s', force => TRUE); end;", o.Owner, o.Name)
	},
}

// Statement builds the DROP statement for obj. selfOwned reports
// whether the object's schema is the executing user's own.
func Statement(obj catalog.Object, selfOwned bool) (string, error) {
	build, ok := statements[obj.Kind]
	if !ok {
		return "", fmt.Errorf("no drop statement for object kind %q", obj.Kind)
	}
	return build(obj, selfOwned), nil
}

// Executor issues drop statements over a shared connection pool. Each
// concurrent call executes on its own pooled session, so executors are
// safe to use from multiple goroutines.
type Executor struct {
	db     *sql.DB
	user   string // executing database user
	logger *slog.Logger
}

// NewExecutor creates an Executor. user is the login user, needed to
// pick between dbms_job and dbms_ijob for legacy jobs.
func NewExecutor(db *sql.DB, user string, logger *slog.Logger) *Executor {
	return &Executor{db: db, user: user, logger: logger}
}

// Drop removes exactly one object and classifies the result. Drop
// never returns an error to the caller; every failure is folded into
// the outcome so a run can keep processing other objects.
func (e *Executor) Drop(ctx context.Context, obj catalog.Object) Outcome {
	selfOwned := strings.EqualFold(obj.Owner, e.user)
	stmt, err := Statement(obj, selfOwned)
	if err != nil {
		return Outcome{Object: obj, Status: Failed, Err: err}
	}

	e.logger.Debug("dropping object", "object", obj.String(), "sql", stmt)

	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		out := Outcome{Object: obj, Status: Classify(err), Err: err}
		if out.Status == Blocked {
			e.logger.Debug("drop blocked by dependency", "object", obj.String(), "error", err)
		} else {
			e.logger.Warn("drop failed", "object", obj.String(), "error", err)
		}
		return out
	}
	return Outcome{Object: obj, Status: Dropped}
}

// Classify maps a database error to Blocked or Failed.
func Classify(err error) Status {
	if blockedCodes[catalog.OraCode(err)] {
		return Blocked
	}
	return Failed
}
