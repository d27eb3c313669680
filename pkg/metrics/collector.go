package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/realmkeep/realmkeep/pkg/types"
)

var (
	SnapshotsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realmkeep_snapshots_total",
			Help: "Number of snapshots on the backend by state (ok, degraded)",
		},
		[]string{"state"},
	)

	NewestSnapshotAge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realmkeep_newest_snapshot_age_seconds",
			Help: "Age of the most recent snapshot in seconds",
		},
	)
)

func init() {
	prometheus.MustRegister(SnapshotsTotal)
	prometheus.MustRegister(NewestSnapshotAge)
}

// SnapshotLister is the slice of the snapshot manager the collector needs
type SnapshotLister interface {
	List(ctx context.Context) ([]types.SnapshotSummary, error)
}

// Collector periodically refreshes snapshot inventory gauges
type Collector struct {
	lister   SnapshotLister
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(lister SnapshotLister) *Collector {
	return &Collector{
		lister:   lister,
		interval: 60 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	summaries, err := c.lister.List(ctx)
	if err != nil {
		return
	}

	ok, degraded := 0, 0
	var newest time.Time
	for _, s := range summaries {
		if s.Degraded {
			degraded++
		} else {
			ok++
		}
		if s.CreatedAt.After(newest) {
			newest = s.CreatedAt
		}
	}

	SnapshotsTotal.WithLabelValues("ok").Set(float64(ok))
	SnapshotsTotal.WithLabelValues("degraded").Set(float64(degraded))
	if !newest.IsZero() {
		NewestSnapshotAge.Set(time.Since(newest).Seconds())
	}
}
