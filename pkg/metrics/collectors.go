package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quernlabs/quern/pkg/events"
	"github.com/quernlabs/quern/pkg/models"
)

// collectTimeout bounds the backend calls a scrape may trigger.
const collectTimeout = 5 * time.Second

// RegisterQueueDepth exports the queue depth as a gauge. The poll runs
// at scrape time; a failed poll reports -1 so dashboards can tell
// "empty" from "unreachable".
func (m *Metrics) RegisterQueueDepth(depth func(context.Context) (int64, error)) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "quern_queue_depth",
			Help: "Jobs waiting in the processing queue (-1 when the poll fails)",
		},
		func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
			defer cancel()
			n, err := depth(ctx)
			if err != nil {
				return -1
			}
			return float64(n)
		},
	))
}

// RegisterDocumentCounts exports per-status document gauges computed
// with one store query per scrape.
func (m *Metrics) RegisterDocumentCounts(counts func(context.Context) (map[models.DocumentStatus]int64, error)) {
	if m == nil {
		return
	}
	m.registry.MustRegister(&documentsCollector{
		counts: counts,
		desc: prometheus.NewDesc(
			"quern_documents",
			"Documents by lifecycle status",
			[]string{"status"}, nil,
		),
	})
}

// RegisterBus exports the event bus counters.
func (m *Metrics) RegisterBus(bus *events.Bus) {
	if m == nil {
		return
	}
	m.registry.MustRegister(&busCollector{
		bus: bus,
		published: prometheus.NewDesc(
			"quern_events_published_total",
			"Events published to the in-process bus by type",
			[]string{"type"}, nil,
		),
		dropped: prometheus.NewDesc(
			"quern_events_dropped_total",
			"Events dropped because a subscriber buffer overflowed",
			nil, nil,
		),
		subscribers: prometheus.NewDesc(
			"quern_events_subscribers",
			"Live event bus subscriptions",
			nil, nil,
		),
	})
}

type documentsCollector struct {
	counts func(context.Context) (map[models.DocumentStatus]int64, error)
	desc   *prometheus.Desc
}

func (c *documentsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect emits one zero-filled sample per status so series never
// disappear between scrapes. A failed count query emits nothing.
func (c *documentsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	counts, err := c.counts(ctx)
	if err != nil {
		return
	}
	statuses := []models.DocumentStatus{
		models.StatusPending,
		models.StatusProcessing,
		models.StatusCompleted,
		models.StatusFailed,
	}
	for _, status := range statuses {
		ch <- prometheus.MustNewConstMetric(
			c.desc, prometheus.GaugeValue, float64(counts[status]), string(status))
	}
}

type busCollector struct {
	bus         *events.Bus
	published   *prometheus.Desc
	dropped     *prometheus.Desc
	subscribers *prometheus.Desc
}

func (c *busCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.published
	ch <- c.dropped
	ch <- c.subscribers
}

func (c *busCollector) Collect(ch chan<- prometheus.Metric) {
	for name, count := range c.bus.PublishedByType() {
		ch <- prometheus.MustNewConstMetric(
			c.published, prometheus.CounterValue, float64(count), name)
	}
	ch <- prometheus.MustNewConstMetric(
		c.dropped, prometheus.CounterValue, float64(c.bus.DroppedTotal()))
	ch <- prometheus.MustNewConstMetric(
		c.subscribers, prometheus.GaugeValue, float64(c.bus.SubscriberCount()))
}
