package scanner

import (
	"context"
	"strings"
	"testing"

	"ContractGraph/internal/domain"
)

type namedScanner string

func (n namedScanner) Name() string { return string(n) }

func (n namedScanner) Scan(context.Context, Request) ([]domain.SourceFile, error) { return nil, nil }

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	var reg Registry
	reg.Register(namedScanner("tree"))
	reg.Register(namedScanner("flat"))

	got, err := reg.Resolve("flat")
	if err != nil || got.Name() != "flat" {
		t.Fatalf("Resolve(flat) = %v, %v", got, err)
	}
	_, err = reg.Resolve("s3")
	if err == nil || !strings.Contains(err.Error(), "available: flat, tree") {
		t.Fatalf("expected unknown-scanner error listing registered names, got %v", err)
	}
	if names := reg.Names(); len(names) != 2 || names[0] != "flat" || names[1] != "tree" {
		t.Fatalf("unexpected names %v", names)
	}
}
