package tablestorage

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	tableOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "table_ops_total", Help: "Count of table storage operations"},
		[]string{"table", "op", "result"},
	)
	tableOpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "table_op_duration_seconds",
			Help:    "Latency of table storage operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"table", "op"},
	)
)

func init() { prometheus.MustRegister(tableOpsTotal, tableOpLatency) }

type instrumented struct {
	next Table
	l    *zap.Logger
}

// Instrument records per-operation metrics and logs faults.
func Instrument(t Table, l *zap.Logger) Table {
	if l == nil {
		l = zap.NewNop()
	}
	return &instrumented{next: t, l: l.With(zap.String("table", t.Name()))}
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) InsertOrMerge(ctx context.Context, entity any) error {
	defer i.observe("insert_or_merge", time.Now())
	return i.record("insert_or_merge", i.next.InsertOrMerge(ctx, entity))
}

func (i *instrumented) Delete(ctx context.Context, pk, rk string) error {
	defer i.observe("delete", time.Now())
	return i.record("delete", i.next.Delete(ctx, pk, rk), zap.String("pk", pk), zap.String("rk", rk))
}

func (i *instrumented) Get(ctx context.Context, pk, rk string) ([]byte, error) {
	defer i.observe("get", time.Now())
	b, err := i.next.Get(ctx, pk, rk)
	return b, i.record("get", err, zap.String("pk", pk), zap.String("rk", rk))
}

func (i *instrumented) List(ctx context.Context, q Query) (Page, error) {
	defer i.observe("list", time.Now())
	p, err := i.next.List(ctx, q)
	if err == nil {
		i.l.Debug("table list", zap.String("filter", q.Filter.String()), zap.Int("n", len(p.Entities)), zap.Bool("more", p.Next != ""))
	}
	return p, i.record("list", err, zap.String("filter", q.Filter.String()))
}

func (i *instrumented) observe(op string, start time.Time) {
	tableOpLatency.WithLabelValues(i.next.Name(), op).Observe(time.Since(start).Seconds())
}

func (i *instrumented) record(op string, err error, fields ...zap.Field) error {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	default:
		result = "error"
		i.l.Warn("table op failed", append(fields, zap.String("op", op), zap.Error(err))...)
	}
	tableOpsTotal.WithLabelValues(i.next.Name(), op, result).Inc()
	return err
}
