package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/orawipe/orawipe/internal/config"
)

func TestConnString(t *testing.T) {
	conn := config.ConnectionConfig{
		Host:     "db.example.com",
		Port:     1521,
		Database: "ORCLPDB1",
		Username: "scott",
		Password: "tiger",
	}

	got := ConnString(conn)

	if !strings.HasPrefix(got, "oracle://") {
		t.Error("connection string should start with oracle://")
	}
	if !strings.Contains(got, "db.example.com:1521") {
		t.Error("connection string should contain host:port")
	}
	if !strings.Contains(got, "/ORCLPDB1") {
		t.Error("connection string should contain service name")
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"TABLE", KindTable, false},
		{"MATERIALIZED VIEW", KindMaterializedView, false},
		{"JOB", KindJob, false},
		{"R_CONSTRAINT", KindRefConstraint, false},
		{"CLUSTER", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseKind(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseKind(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestObjectKeyUniquePerKind(t *testing.T) {
	table := Object{Kind: KindTable, Owner: "HR", Name: "EMPLOYEES"}
	trigger := Object{Kind: KindTrigger, Owner: "HR", Name: "EMPLOYEES"}

	if table.Key() == trigger.Key() {
		t.Error("objects of different kinds with the same name must have distinct keys")
	}
}

func TestObjectStringRefConstraint(t *testing.T) {
	obj := Object{Kind: KindRefConstraint, Owner: "HR", Name: "FK_DEPT", Table: "EMPLOYEES"}
	s := obj.String()
	if !strings.Contains(s, "FK_DEPT") || !strings.Contains(s, "EMPLOYEES") {
		t.Errorf("constraint string should name both constraint and table, got %q", s)
	}
}

func TestOraCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.New("ORA-00942: table or view does not exist"), 942},
		{errors.New("ORA-02449: unique/primary keys in table referenced by foreign keys"), 2449},
		{errors.New("dial tcp: connection refused"), 0},
	}

	for _, tt := range tests {
		if got := OraCode(tt.err); got != tt.want {
			t.Errorf("OraCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
