package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDescribeNil(t *testing.T) {
	if got := Describe(nil); got.Message != "" || got.PG != nil || len(got.Layers) != 0 {
		t.Fatalf("expected empty trace, got %+v", got)
	}
}

func TestDescribeCapturesPgxDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23514", ConstraintName: "offerings_available_check", TableName: "offerings"}
	err := Wrap(CodeInsufficientCapacity, fmt.Errorf("decrement: %w", pgErr), "sold out")

	trace := Describe(err)
	if trace.Code != CodeInsufficientCapacity {
		t.Fatalf("code = %s", trace.Code)
	}
	if len(trace.Layers) != 3 {
		t.Fatalf("expected 3 layers, got %v", trace.Layers)
	}
	if trace.PG == nil || trace.PG.SQLState != "23514" || trace.PG.Constraint != "offerings_available_check" {
		t.Fatalf("unexpected pg info %+v", trace.PG)
	}

	fields := trace.Fields()
	if fields["pg_table"] != "offerings" {
		t.Fatalf("pg_table field = %v", fields["pg_table"])
	}
	if fields["error_code"] != CodeInsufficientCapacity {
		t.Fatalf("error_code field = %v", fields["error_code"])
	}
}

func TestDescribeCapturesLibPQDiagnostics(t *testing.T) {
	err := fmt.Errorf("insert usage: %w", &pq.Error{Code: "23505", Constraint: "ux_discount_usages_user_grant"})

	trace := Describe(err)
	if trace.Code != "" {
		t.Fatalf("untyped error should have no code, got %s", trace.Code)
	}
	if trace.PG == nil || trace.PG.SQLState != "23505" {
		t.Fatalf("unexpected pg info %+v", trace.PG)
	}
	if _, ok := trace.Fields()["error_code"]; ok {
		t.Fatal("error_code should be omitted")
	}
}
