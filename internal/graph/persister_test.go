package graph

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"ContractGraph/internal/domain"
	"ContractGraph/internal/infrastructure/storage"
	"ContractGraph/internal/ports"
)

func openGraph(t *testing.T) *storage.GraphStore {
	t.Helper()
	store, err := storage.Open(context.Background(), storage.DriverSQLite, filepath.Join(t.TempDir(), "graph.db"), nil)
	if err != nil {
		t.Fatalf("open graph: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRecord() domain.ContractRecord {
	qty := int64(500_000)
	price := decimal.RequireFromString("5.00")
	amount := decimal.NewFromInt(2_500_000)
	date := domain.NewDate(2022, 1, 5)
	return domain.ContractRecord{
		ContractID:          "edgar:2022/10-K/ex10.htm",
		Title:               "Securities Purchase Agreement",
		ContractType:        domain.ContractSecuritiesPurchase,
		ExecutionDate:       &date,
		Summary:             "Acme sells common stock.",
		Parties:             []domain.Party{{Name: "Acme Robotics, Inc.", Role: domain.RoleCompany}, {Name: "Blue Harbor", Role: domain.RolePurchaser}},
		Securities:          []domain.Security{{SecurityType: domain.SecurityCommonStock, Quantity: &qty, PricePerShare: &price}},
		ClosingConditions:   []string{"completion of due diligence"},
		TotalOfferingAmount: &amount,
		ExtractionMethod:    domain.MethodHybrid,
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openGraph(t)
	p := NewPersister(store, Options{})

	first, err := p.Upsert(ctx, sampleRecord())
	if err != nil {
		t.Fatalf("first Upsert returned error: %v", err)
	}
	if first.NodesCreated != 5 || first.EdgesCreated != 4 {
		t.Fatalf("unexpected first write stats: %+v", first)
	}
	before, _ := store.Stats(ctx)

	second, err := p.Upsert(ctx, sampleRecord())
	if err != nil {
		t.Fatalf("second Upsert returned error: %v", err)
	}
	if second.Total() != 0 {
		t.Fatalf("identical upsert must write nothing, got %+v", second)
	}
	after, _ := store.Stats(ctx)
	if before.NodeTotal() != after.NodeTotal() || before.EdgeTotal() != after.EdgeTotal() {
		t.Fatalf("counts changed: %+v -> %+v", before, after)
	}
}

func TestUpsertRevisedRecordUpdatesWithoutPruning(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openGraph(t)
	p := NewPersister(store, Options{})

	if _, err := p.Upsert(ctx, sampleRecord()); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	revised := sampleRecord()
	revised.Title = "Amended Securities Purchase Agreement"
	revised.Parties = []domain.Party{{Name: "Acme Robotics, Inc.", Role: domain.RoleCompany}, {Name: "Red Fund LP", Role: domain.RoleInvestor}}
	revised.ClosingConditions = nil

	stats, err := p.Upsert(ctx, revised)
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if stats.NodesUpdated != 1 || stats.NodesCreated != 1 || stats.EdgesCreated != 1 {
		t.Fatalf("unexpected revised stats: %+v", stats)
	}

	graphStats, _ := store.Stats(ctx)
	if graphStats.Nodes[domain.LabelContract] != 1 {
		t.Fatalf("expected one contract node, got %d", graphStats.Nodes[domain.LabelContract])
	}
	if graphStats.Nodes[domain.LabelParty] != 3 || graphStats.Nodes[domain.LabelCondition] != 1 {
		t.Fatalf("removed children must be kept: %+v", graphStats)
	}

	hits, err := store.SearchContracts(ctx, domain.ContractFilter{})
	if err != nil || len(hits) != 1 || hits[0].Title != revised.Title {
		t.Fatalf("expected latest title, got %+v (%v)", hits, err)
	}
}

type flakyGraph struct {
	ports.Graph
	failures int
	calls    int
	err      error
}

func (f *flakyGraph) Update(ctx context.Context, fn func(ports.GraphWriter) error) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return f.Graph.Update(ctx, fn)
}

var errConnReset = errors.New("connection reset")

func TestUpsertRetriesTransientErrorOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	flaky := &flakyGraph{Graph: openGraph(t), failures: 1, err: errConnReset}
	p := NewPersister(flaky, Options{IsTransient: func(err error) bool { return errors.Is(err, errConnReset) }, RetryDelay: -1})

	stats, err := p.Upsert(ctx, sampleRecord())
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if flaky.calls != 2 || stats.NodesCreated == 0 {
		t.Fatalf("expected two attempts with writes, got %d calls, %+v", flaky.calls, stats)
	}

	flaky = &flakyGraph{Graph: openGraph(t), failures: 2, err: errConnReset}
	p = NewPersister(flaky, Options{IsTransient: func(err error) bool { return errors.Is(err, errConnReset) }, RetryDelay: -1})
	if _, err := p.Upsert(ctx, sampleRecord()); !errors.Is(err, domain.ErrGraphWriteFailed) || !errors.Is(err, errConnReset) {
		t.Fatalf("expected ErrGraphWriteFailed wrapping the cause, got %v", err)
	}
	if flaky.calls != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", flaky.calls)
	}
}

func TestUpsertDoesNotRetryPermanentErrors(t *testing.T) {
	t.Parallel()

	flaky := &flakyGraph{Graph: openGraph(t), failures: 1, err: errors.New("syntax error")}
	p := NewPersister(flaky, Options{IsTransient: storage.IsTransient, RetryDelay: -1})
	if _, err := p.Upsert(context.Background(), sampleRecord()); !errors.Is(err, domain.ErrGraphWriteFailed) {
		t.Fatalf("expected ErrGraphWriteFailed, got %v", err)
	}
	if flaky.calls != 1 {
		t.Fatalf("permanent errors must not be retried, got %d calls", flaky.calls)
	}
}

func TestProjectKeys(t *testing.T) {
	t.Parallel()

	r := sampleRecord()
	r.Securities = append(r.Securities, r.Securities[0])
	p := Project(r)

	keys := map[string]bool{}
	for _, n := range p.Nodes {
		if keys[n.Ref.Label+"/"+n.Ref.Key] {
			t.Fatalf("duplicate node key %s", n.Ref.Key)
		}
		keys[n.Ref.Label+"/"+n.Ref.Key] = true
	}
	if !keys[domain.LabelSecurity+"/"+r.ContractID+"|CommonStock|1"] {
		t.Fatalf("expected per-type security index, got %v", keys)
	}
	if !keys[domain.LabelParty+"/"+r.ContractID+"|acme robotics, inc|Company"] {
		t.Fatalf("expected name+role party key, got %v", keys)
	}
}
