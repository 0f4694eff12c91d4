package database

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStats is the subset of *pgxpool.Stat exported as metrics.
type PoolStats interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
	MaxConns() int32
	AcquireCount() int64
	AcquireDuration() time.Duration
	EmptyAcquireCount() int64
	CanceledAcquireCount() int64
}

type poolDesc struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(PoolStats) float64
}

// PoolStatsCollector implements prometheus.Collector for connection pool
// statistics, labelled by terminal.
type PoolStatsCollector struct {
	stat     func() PoolStats
	terminal string
	descs    []poolDesc
}

// NewPoolStatsCollector exports the statistics of pool.
func NewPoolStatsCollector(pool *pgxpool.Pool, terminal string) *PoolStatsCollector {
	return newPoolStatsCollector(func() PoolStats { return pool.Stat() }, terminal)
}

func newPoolStatsCollector(stat func() PoolStats, terminal string) *PoolStatsCollector {
	labels := []string{"terminal"}
	d := func(name, help string, kind prometheus.ValueType, value func(PoolStats) float64) poolDesc {
		return poolDesc{
			desc:  prometheus.NewDesc("pos_db_pool_"+name, help, labels, nil),
			kind:  kind,
			value: value,
		}
	}

	return &PoolStatsCollector{
		stat:     stat,
		terminal: terminal,
		descs: []poolDesc{
			d("acquired_connections", "Number of currently acquired connections", prometheus.GaugeValue,
				func(s PoolStats) float64 { return float64(s.AcquiredConns()) }),
			d("idle_connections", "Number of currently idle connections", prometheus.GaugeValue,
				func(s PoolStats) float64 { return float64(s.IdleConns()) }),
			d("total_connections", "Total number of connections in the pool", prometheus.GaugeValue,
				func(s PoolStats) float64 { return float64(s.TotalConns()) }),
			d("max_connections", "Maximum number of connections allowed", prometheus.GaugeValue,
				func(s PoolStats) float64 { return float64(s.MaxConns()) }),
			d("acquire_count_total", "Total number of connection acquires", prometheus.CounterValue,
				func(s PoolStats) float64 { return float64(s.AcquireCount()) }),
			d("acquire_duration_seconds_total", "Total time spent acquiring connections in seconds", prometheus.CounterValue,
				func(s PoolStats) float64 { return s.AcquireDuration().Seconds() }),
			d("empty_acquire_count_total", "Total number of acquires that had to wait for a connection", prometheus.CounterValue,
				func(s PoolStats) float64 { return float64(s.EmptyAcquireCount()) }),
			d("canceled_acquire_count_total", "Total number of canceled connection acquires", prometheus.CounterValue,
				func(s PoolStats) float64 { return float64(s.CanceledAcquireCount()) }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d.desc
	}
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.stat()
	for _, d := range c.descs {
		ch <- prometheus.MustNewConstMetric(d.desc, d.kind, d.value(stat), c.terminal)
	}
}

// RegisterPoolMetrics registers a collector for pool with reg.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *pgxpool.Pool, terminal string) error {
	return reg.Register(NewPoolStatsCollector(pool, terminal))
}
