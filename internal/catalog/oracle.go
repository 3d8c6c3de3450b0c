package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/sijms/go-ora/v2"

	"github.com/orawipe/orawipe/internal/config"
)

// ClientInfo tags the cleaner's own sessions in v$session so the
// active-session check does not count them.
const ClientInfo = "orawipe"

// ORA-00942: table or view does not exist (no read grant on v$session).
const errTableMissing = 942

// ConnString returns the go-ora connection string.
func ConnString(conn config.ConnectionConfig) string {
	return fmt.Sprintf("oracle://%s:%s@%s:%d/%s",
		conn.Username, conn.Password, conn.Host, conn.Port, conn.Database)
}

// Connect opens a connection pool sized for maxConns concurrent
// sessions and verifies connectivity, retrying the ping with
// exponential backoff before giving up.
func Connect(ctx context.Context, conn config.ConnectionConfig, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("oracle", ConnString(conn))
	if err != nil {
		return nil, fmt.Errorf("opening Oracle connection: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 30 * time.Second

	ping := func() error { return db.PingContext(ctx) }
	if err := backoff.Retry(ping, backoff.WithContext(bo, ctx)); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging Oracle: %w", err)
	}
	return db, nil
}

// Reader introspects the data dictionary for a single run.
type Reader struct {
	db *sql.DB
}

// NewReader creates a Reader over an open connection pool.
func NewReader(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// InitSession sets a DDL lock timeout and tags the session. The
// settings are per session; pooled sessions opened later without them
// still converge, since a lock timeout only turns into a retried
// outcome for that round.
func (r *Reader) InitSession(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqlSetDDLLockTimeout); err != nil {
		return fmt.Errorf("setting ddl_lock_timeout: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, sqlSetClientInfo, ClientInfo); err != nil {
		return fmt.Errorf("setting client info: %w", err)
	}
	return nil
}

// ListObjects returns every droppable object owned by owner, across
// all kinds: catalog objects from ALL_OBJECTS, referential constraints,
// legacy DBMS_JOB entries, and scheduler credentials. The result is a
// fresh snapshot; callers must re-list rather than subtract, because a
// successful drop can cascade away objects never attempted.
func (r *Reader) ListObjects(ctx context.Context, owner string) ([]Object, error) {
	var objects []Object

	refs, err := r.listRefConstraints(ctx, owner)
	if err != nil {
		return nil, err
	}
	objects = append(objects, refs...)

	jobs, err := r.listLegacyJobs(ctx, owner)
	if err != nil {
		return nil, err
	}
	objects = append(objects, jobs...)

	creds, err := r.listCredentials(ctx, owner)
	if err != nil {
		return nil, err
	}
	objects = append(objects, creds...)

	rows, err := r.db.QueryContext(ctx, sqlListObjects, owner)
	if err != nil {
		return nil, fmt.Errorf("listing objects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kindName, objOwner, name string
		if err := rows.Scan(&kindName, &objOwner, &name); err != nil {
			return nil, err
		}
		kind, err := ParseKind(kindName)
		if err != nil {
			return nil, err
		}
		objects = append(objects, Object{Kind: kind, Owner: objOwner, Name: name})
	}
	return objects, rows.Err()
}

func (r *Reader) listRefConstraints(ctx context.Context, owner string) ([]Object, error) {
	rows, err := r.db.QueryContext(ctx, sqlListRefConstraints, owner)
	if err != nil {
		return nil, fmt.Errorf("listing referential constraints: %w", err)
	}
	defer rows.Close()

	var objects []Object
	for rows.Next() {
		var name, objOwner, table string
		if err := rows.Scan(&name, &objOwner, &table); err != nil {
			return nil, err
		}
		objects = append(objects, Object{
			Kind:  KindRefConstraint,
			Owner: objOwner,
			Name:  name,
			Table: table,
		})
	}
	return objects, rows.Err()
}

func (r *Reader) listLegacyJobs(ctx context.Context, owner string) ([]Object, error) {
	rows, err := r.db.QueryContext(ctx, sqlListLegacyJobs, owner, owner)
	if err != nil {
		return nil, fmt.Errorf("listing DBMS_JOB entries: %w", err)
	}
	defer rows.Close()

	var objects []Object
	for rows.Next() {
		var job string
		if err := rows.Scan(&job); err != nil {
			return nil, err
		}
		objects = append(objects, Object{Kind: KindDBMSJob, Owner: owner, Name: job})
	}
	return objects, rows.Err()
}

func (r *Reader) listCredentials(ctx context.Context, owner string) ([]Object, error) {
	rows, err := r.db.QueryContext(ctx, sqlListCredentials, owner)
	if err != nil {
		// ALL_CREDENTIALS does not exist before 12c.
		if OraCode(err) == errTableMissing {
			return nil, nil
		}
		return nil, fmt.Errorf("listing credentials: %w", err)
	}
	defer rows.Close()

	var objects []Object
	for rows.Next() {
		var objOwner, name string
		if err := rows.Scan(&objOwner, &name); err != nil {
			return nil, err
		}
		objects = append(objects, Object{Kind: KindCredential, Owner: objOwner, Name: name})
	}
	return objects, rows.Err()
}

// ObjectCount returns the number of objects owned by owner.
func (r *Reader) ObjectCount(ctx context.Context, owner string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, sqlObjectCount, owner).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting objects: %w", err)
	}
	return count, nil
}

// ConformSchemaName uppercases the supplied schema name and rejects it
// when a mixed or lowercase schema of the same spelling exists, since a
// drop against the wrong twin would be unrecoverable.
func (r *Reader) ConformSchemaName(ctx context.Context, schema string) (string, error) {
	target := strings.ToUpper(schema)

	rows, err := r.db.QueryContext(ctx, sqlNonUppercaseSchemas)
	if err != nil {
		// No read grant on dba_users: accept the uppercased name.
		if OraCode(err) == errTableMissing {
			return target, nil
		}
		return "", fmt.Errorf("listing non-uppercase schemas: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", err
		}
		if target == strings.ToUpper(name) {
			return "", fmt.Errorf("schema %s collides with mixed or lowercase schema %s, which is not supported", target, name)
		}
	}
	return target, rows.Err()
}

// ValidateSchema verifies the schema exists via dbms_assert.
func (r *Reader) ValidateSchema(ctx context.Context, schema string) error {
	var name string
	if err := r.db.QueryRowContext(ctx, sqlValidateSchema, schema).Scan(&name); err != nil {
		return fmt.Errorf("schema %s does not exist: %w", schema, err)
	}
	return nil
}

// MaintainedSchemas returns the set of Oracle-maintained schemas, which
// may never be cleaned. Degrades to an empty set without dba_users access.
func (r *Reader) MaintainedSchemas(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, sqlMaintainedSchemas)
	if err != nil {
		if OraCode(err) == errTableMissing {
			return map[string]bool{}, nil
		}
		return nil, fmt.Errorf("listing maintained schemas: %w", err)
	}
	defer rows.Close()

	schemas := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		schemas[name] = true
	}
	return schemas, rows.Err()
}

// SessionCount reports sessions currently logged in as owner, excluding
// the cleaner's own. Returns -1 when v$session is not readable.
func (r *Reader) SessionCount(ctx context.Context, owner string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, sqlSessionCount, ClientInfo, owner).Scan(&count)
	if err != nil {
		if OraCode(err) == errTableMissing {
			return -1, nil
		}
		return 0, fmt.Errorf("counting schema sessions: %w", err)
	}
	return count, nil
}

// PurgeRecycleBin empties the recycle bin for owner. When cleaning the
// executing user's own schema a plain purge suffices; for a foreign
// schema each of its tablespaces is purged individually.
func (r *Reader) PurgeRecycleBin(ctx context.Context, owner string, self bool) error {
	if self {
		if _, err := r.db.ExecContext(ctx, sqlPurgeUserRecycleBin); err != nil {
			return fmt.Errorf("purging recyclebin: %w", err)
		}
		return nil
	}

	rows, err := r.db.QueryContext(ctx, sqlSchemaTablespaces, owner)
	if err != nil {
		if OraCode(err) == errTableMissing {
			return nil
		}
		return fmt.Errorf("listing tablespaces: %w", err)
	}
	defer rows.Close()

	var tablespaces []string
	for rows.Next() {
		var ts string
		if err := rows.Scan(&ts); err != nil {
			return err
		}
		tablespaces = append(tablespaces, ts)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, ts := range tablespaces {
		// PURGE TABLESPACE does not accept bind parameters.
		stmt := fmt.Sprintf("purge tablespace %s user %s", ts, owner)
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("purging tablespace %s: %w", ts, err)
		}
	}
	return nil
}
