package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/orawipe/orawipe/internal/catalog"
	"github.com/orawipe/orawipe/internal/dropper"
)

// fakeSchema simulates a catalog with drop dependencies. An object can
// only be dropped once all of its blockers are gone; dropping an object
// can cascade-remove others, mirroring e.g. a table drop taking its
// triggers with it.
type fakeSchema struct {
	mu       sync.Mutex
	objects  map[string]catalog.Object
	blockers map[string][]string // key -> keys that must be gone first
	cascades map[string][]string // key -> keys removed alongside it
	failures map[string]error    // key -> permanent failure
	attempts int
}

func newFakeSchema(objs ...catalog.Object) *fakeSchema {
	f := &fakeSchema{
		objects:  make(map[string]catalog.Object),
		blockers: make(map[string][]string),
		cascades: make(map[string][]string),
		failures: make(map[string]error),
	}
	for _, o := range objs {
		f.objects[o.Key()] = o
	}
	return f
}

func table(name string) catalog.Object {
	return catalog.Object{Kind: catalog.KindTable, Owner: "APP", Name: name}
}

func (f *fakeSchema) ListObjects(ctx context.Context, owner string) ([]catalog.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	objs := make([]catalog.Object, 0, len(keys))
	for _, k := range keys {
		objs = append(objs, f.objects[k])
	}
	return objs, nil
}

func (f *fakeSchema) Drop(ctx context.Context, obj catalog.Object) dropper.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++

	key := obj.Key()
	if _, present := f.objects[key]; !present {
		// Cascaded away earlier in the same round.
		return dropper.Outcome{
			Object: obj,
			Status: dropper.Failed,
			Err:    errors.New("ORA-04043: object does not exist"),
		}
	}
	if err := f.failures[key]; err != nil {
		return dropper.Outcome{Object: obj, Status: dropper.Failed, Err: err}
	}
	for _, blocker := range f.blockers[key] {
		if _, present := f.objects[blocker]; present {
			return dropper.Outcome{
				Object: obj,
				Status: dropper.Blocked,
				Err:    errors.New("ORA-02449: unique/primary keys in table referenced by foreign keys"),
			}
		}
	}

	delete(f.objects, key)
	for _, c := range f.cascades[key] {
		delete(f.objects, c)
	}
	return dropper.Outcome{Object: obj, Status: dropper.Dropped}
}

func testEngine(f *fakeSchema, parallel int) *Engine {
	return &Engine{
		Catalog:  f,
		Executor: f,
		Parallel: parallel,
		Logger:   slog.Default(),
	}
}

func TestRunEmptySchema(t *testing.T) {
	f := newFakeSchema()
	res, err := testEngine(f, 1).Run(context.Background(), "APP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Clean() {
		t.Error("empty schema should yield a clean result")
	}
	if res.Rounds != 0 {
		t.Errorf("rounds = %d, want 0", res.Rounds)
	}
	if f.attempts != 0 {
		t.Errorf("attempts = %d, want 0", f.attempts)
	}
}

func TestRunStandaloneTable(t *testing.T) {
	f := newFakeSchema(table("ORPHAN"))
	res, err := testEngine(f, 1).Run(context.Background(), "APP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Clean() {
		t.Errorf("expected clean result, remaining: %v", res.Remaining)
	}
	if res.Rounds != 1 {
		t.Errorf("rounds = %d, want 1", res.Rounds)
	}
	if res.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", res.Dropped)
	}
}

func TestRunForeignKeyResolvesAcrossRounds(t *testing.T) {
	// The parent sorts first so the serial worker attempts it while the
	// referencing child still exists, forcing a second round.
	parent := table("A_PARENT")
	child := table("B_CHILD")
	f := newFakeSchema(parent, child)
	f.blockers[parent.Key()] = []string{child.Key()}

	res, err := testEngine(f, 1).Run(context.Background(), "APP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Clean() {
		t.Errorf("expected clean result, remaining: %v", res.Remaining)
	}
	if res.Rounds != 2 {
		t.Errorf("rounds = %d, want 2", res.Rounds)
	}
}

func TestRunCycleStalls(t *testing.T) {
	a := table("A")
	b := table("B")
	f := newFakeSchema(a, b)
	f.blockers[a.Key()] = []string{b.Key()}
	f.blockers[b.Key()] = []string{a.Key()}

	res, err := testEngine(f, 1).Run(context.Background(), "APP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Clean() {
		t.Fatal("cyclic dependencies must stall, not report success")
	}
	if len(res.Remaining) != 2 {
		t.Fatalf("remaining = %d objects, want exactly the 2 cycle members", len(res.Remaining))
	}
	for _, rem := range res.Remaining {
		if rem.Reason == "" {
			t.Errorf("remaining object %s has no failure reason", rem.Object)
		}
	}
	if res.Rounds != 1 {
		t.Errorf("rounds = %d, want 1 (no progress after first round)", res.Rounds)
	}
}

func TestRunPermanentFailureReported(t *testing.T) {
	ok := table("GOOD")
	bad := table("BAD")
	f := newFakeSchema(ok, bad)
	f.failures[bad.Key()] = errors.New("ORA-01031: insufficient privileges")

	res, err := testEngine(f, 1).Run(context.Background(), "APP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Remaining) != 1 {
		t.Fatalf("remaining = %d, want 1", len(res.Remaining))
	}
	if res.Remaining[0].Object.Name != "BAD" {
		t.Errorf("remaining object = %s, want BAD", res.Remaining[0].Object.Name)
	}
	if res.Remaining[0].Reason == "" {
		t.Error("failure reason should be retained")
	}
}

func TestRunCascadeNotReattempted(t *testing.T) {
	tbl := table("MASTER")
	trg := catalog.Object{Kind: catalog.KindTrigger, Owner: "APP", Name: "MASTER_TRG"}
	f := newFakeSchema(tbl, trg)
	f.cascades[tbl.Key()] = []string{trg.Key()}

	res, err := testEngine(f, 1).Run(context.Background(), "APP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The trigger may fail inside the round the table cascades it away,
	// but the fresh listing of the next round must clear it.
	if !res.Clean() {
		t.Errorf("expected clean result, remaining: %v", res.Remaining)
	}
}

func TestRunChainTerminatesWithinObjectBound(t *testing.T) {
	const n = 12
	objs := make([]catalog.Object, n)
	for i := range objs {
		objs[i] = table(fmt.Sprintf("T%02d", i))
	}
	f := newFakeSchema(objs...)
	// T00 blocked by T01, T01 by T02, ... forcing one extra round each.
	for i := 0; i < n-1; i++ {
		f.blockers[objs[i].Key()] = []string{objs[i+1].Key()}
	}

	res, err := testEngine(f, 1).Run(context.Background(), "APP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Clean() {
		t.Errorf("expected clean result, remaining: %v", res.Remaining)
	}
	if res.Rounds > n {
		t.Errorf("rounds = %d, exceeds object count bound %d", res.Rounds, n)
	}
}

func TestRunParallelismDoesNotChangeResult(t *testing.T) {
	build := func() *fakeSchema {
		a, b, c, d := table("A"), table("B"), table("C"), table("D")
		f := newFakeSchema(a, b, c, d)
		f.blockers[a.Key()] = []string{b.Key(), c.Key()}
		f.failures[d.Key()] = errors.New("ORA-01031: insufficient privileges")
		return f
	}

	remaining := func(parallel int) []string {
		t.Helper()
		res, err := testEngine(build(), parallel).Run(context.Background(), "APP")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		names := make([]string, 0, len(res.Remaining))
		for _, rem := range res.Remaining {
			names = append(names, rem.Object.Name)
		}
		sort.Strings(names)
		return names
	}

	serial := remaining(1)
	concurrent := remaining(8)

	if len(serial) != len(concurrent) {
		t.Fatalf("remaining sets differ: %v vs %v", serial, concurrent)
	}
	for i := range serial {
		if serial[i] != concurrent[i] {
			t.Fatalf("remaining sets differ: %v vs %v", serial, concurrent)
		}
	}
}

func TestRunIdempotentAfterSuccess(t *testing.T) {
	f := newFakeSchema(table("ONLY"))
	eng := testEngine(f, 2)

	first, err := eng.Run(context.Background(), "APP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.Clean() || first.Dropped != 1 {
		t.Fatalf("first run should drop the object, got %+v", first)
	}

	second, err := eng.Run(context.Background(), "APP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Clean() || second.Rounds != 0 {
		t.Errorf("second run should be a no-op, got %+v", second)
	}
}

func TestRunProgressCallbacks(t *testing.T) {
	f := newFakeSchema(table("A"), table("B"))

	var mu sync.Mutex
	var outcomes int
	var rounds int

	eng := testEngine(f, 2)
	eng.Progress = Progress{
		OnOutcome: func(dropper.Outcome) {
			mu.Lock()
			outcomes++
			mu.Unlock()
		},
		OnRound: func(round, listed, dropped int) {
			mu.Lock()
			rounds++
			mu.Unlock()
		},
	}

	if _, err := eng.Run(context.Background(), "APP"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcomes != 2 {
		t.Errorf("outcome callbacks = %d, want 2", outcomes)
	}
	if rounds != 1 {
		t.Errorf("round callbacks = %d, want 1", rounds)
	}
}

func TestRunCancelledContext(t *testing.T) {
	f := newFakeSchema(table("A"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := testEngine(f, 1).Run(ctx, "APP"); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if f.attempts != 0 {
		t.Errorf("cancelled run attempted %d drops, want 0", f.attempts)
	}
}
