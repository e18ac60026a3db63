package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/tixmarket-backend/pkg/logger"
)

func traceSQL() (string, int64) { return "SELECT * FROM bookings", 3 }

func TestQueryLoggerReportsSlowAndFailedQueries(t *testing.T) {
	buf := &bytes.Buffer{}
	ql := newQueryLogger(logger.New(logger.Options{ServiceName: "test", Output: buf}), 100*time.Millisecond)
	ctx := context.Background()

	ql.Trace(ctx, time.Now(), traceSQL, nil)
	ql.Trace(ctx, time.Now(), traceSQL, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("fast and not-found queries should be quiet, got %s", buf.String())
	}

	ql.Trace(ctx, time.Now().Add(-time.Second), traceSQL, nil)
	if !bytes.Contains(buf.Bytes(), []byte(`"db.slow_query"`)) || !bytes.Contains(buf.Bytes(), []byte(`"rows":3`)) {
		t.Fatalf("expected slow query entry, got %s", buf.String())
	}

	buf.Reset()
	ql.Trace(ctx, time.Now(), traceSQL, errors.New("relation does not exist"))
	if !bytes.Contains(buf.Bytes(), []byte(`"db.query_failed"`)) {
		t.Fatalf("expected failure entry, got %s", buf.String())
	}

	buf.Reset()
	ql.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), traceSQL, errors.New("x"))
	if buf.Len() != 0 {
		t.Fatalf("silent mode should drop everything, got %s", buf.String())
	}
}

func TestNewQueryLoggerWithoutLoggerDiscards(t *testing.T) {
	if newQueryLogger(nil, time.Second) != gormlogger.Discard {
		t.Fatal("expected discard logger")
	}
}
