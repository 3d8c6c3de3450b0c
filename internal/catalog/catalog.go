package catalog

import (
	"fmt"
	"regexp"
	"strconv"
)

// Kind is an Oracle catalog object kind, as reported by ALL_OBJECTS
// plus the pseudo-kinds the cleaner handles outside ALL_OBJECTS
// (referential constraints, legacy DBMS_JOB entries, credentials).
type Kind string

const (
	KindRefConstraint    Kind = "R_CONSTRAINT"
	KindDBMSJob          Kind = "DBMS_JOB"
	KindTable            Kind = "TABLE"
	KindView             Kind = "VIEW"
	KindMaterializedView Kind = "MATERIALIZED VIEW"
	KindSequence         Kind = "SEQUENCE"
	KindSynonym          Kind = "SYNONYM"
	KindProcedure        Kind = "PROCEDURE"
	KindFunction         Kind = "FUNCTION"
	KindPackage          Kind = "PACKAGE"
	KindType             Kind = "TYPE"
	KindTrigger          Kind = "TRIGGER"
	KindIndex            Kind = "INDEX"
	KindJob              Kind = "JOB"
	KindChain            Kind = "CHAIN"
	KindProgram          Kind = "PROGRAM"
	KindCredential       Kind = "CREDENTIAL"
)

// AllKinds lists every kind the cleaner knows how to drop. The set is
// closed: Oracle's catalog fixes the kinds, and the dropper dispatches
// over exactly this list.
var AllKinds = []Kind{
	KindRefConstraint, KindDBMSJob, KindTable, KindView,
	KindMaterializedView, KindSequence, KindSynonym, KindProcedure,
	KindFunction, KindPackage, KindType, KindTrigger, KindIndex,
	KindJob, KindChain, KindProgram, KindCredential,
}

// ParseKind maps an ALL_OBJECTS object_type string to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range AllKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown object kind %q", s)
}

// Object describes one droppable catalog object. Objects are read
// fresh from the catalog every round and never mutated.
type Object struct {
	Kind  Kind   `json:"kind"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
	// Table is set only for referential constraints: the table the
	// constraint is declared on.
	Table string `json:"table,omitempty"`
}

func (o Object) String() string {
	if o.Kind == KindRefConstraint {
		return fmt.Sprintf("%s %s.%s on %s", o.Kind, o.Owner, o.Name, o.Table)
	}
	return fmt.Sprintf("%s %s.%s", o.Kind, o.Owner, o.Name)
}

// Key uniquely identifies an object within a run, for outcome maps.
func (o Object) Key() string {
	return string(o.Kind) + ":" + o.Owner + "." + o.Name
}

var oraCodePattern = regexp.MustCompile(`ORA-(\d{1,5})`)

// OraCode extracts the first ORA- error code from a database error, or
// 0 when the error carries none. go-ora surfaces server errors as text,
// so the code is recovered from the message.
func OraCode(err error) int {
	if err == nil {
		return 0
	}
	m := oraCodePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	code, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return 0
	}
	return code
}
