package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// PGInfo carries the postgres diagnostics attached to a driver error.
type PGInfo struct {
	SQLState   string `json:"sqlstate"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Trace is a log-friendly description of an error and everything it wraps.
type Trace struct {
	Message string   `json:"message"`
	Code    Code     `json:"code,omitempty"`
	Layers  []string `json:"layers,omitempty"`
	PG      *PGInfo  `json:"pg,omitempty"`
}

// Fields flattens the trace into structured log fields.
func (t Trace) Fields() map[string]any {
	out := map[string]any{"error_layers": t.Layers}
	if t.Code != "" {
		out["error_code"] = t.Code
	}
	if t.PG != nil {
		out["pg_sqlstate"] = t.PG.SQLState
		if t.PG.Constraint != "" {
			out["pg_constraint"] = t.PG.Constraint
		}
		if t.PG.Table != "" {
			out["pg_table"] = t.PG.Table
		}
		if t.PG.Detail != "" {
			out["pg_detail"] = t.PG.Detail
		}
	}
	return out
}

// Describe walks the unwrap chain of err. Both pgx and lib/pq errors are recognised.
func Describe(err error) Trace {
	if err == nil {
		return Trace{}
	}

	t := Trace{Message: err.Error()}
	if typed := As(err); typed != nil {
		t.Code = typed.Code()
	}
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		t.Layers = append(t.Layers, fmt.Sprintf("%T", cur))
	}
	t.PG = pgInfo(err)
	return t
}

func pgInfo(err error) *PGInfo {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &PGInfo{
			SQLState:   pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &PGInfo{
			SQLState:   string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}
