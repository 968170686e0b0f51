package audit

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const metricNamespace = "nemo"

// Pushgateway publishes the counts of each run to a Prometheus Pushgateway,
// grouped by master file.
type Pushgateway struct {
	URL string
	Job string

	rows     *prometheus.GaugeVec
	fallback prometheus.Gauge
	last     prometheus.Gauge
}

func NewPushgateway(url, job string) *Pushgateway {
	return &Pushgateway{
		URL: url,
		Job: job,

		rows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricNamespace,
				Name:      "master_rows",
				Help:      "Row counts of the last master update, by stage.",
			},
			[]string{"stage"},
		),

		fallback: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Name:      "master_read_fallback",
			Help:      "1 if the last master update could not read the existing master and started from an empty table.",
		}),

		last: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Name:      "master_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful master update.",
		}),
	}
}

func (p *Pushgateway) Record(ctx context.Context, run Run) error {
	s := run.Summary
	for stage, v := range map[string]int{
		"existing":       s.Existing,
		"invalid":        s.Invalid,
		"removed":        s.Removed,
		"retained":       s.Retained,
		"added":          s.Added,
		"duplicates":     s.Duplicates,
		"key_duplicates": s.KeyDuplicates,
		"total":          s.Total,
	} {
		p.rows.WithLabelValues(stage).Set(float64(v))
	}

	if run.Fallback {
		p.fallback.Set(1)
	} else {
		p.fallback.Set(0)
	}

	pusher := push.New(p.URL, p.Job).
		Collector(p.rows).
		Collector(p.fallback).
		Grouping("command", run.Command).
		Grouping("master", run.Master)

	if run.Status == StatusOk {
		p.last.Set(float64(run.Finished.Unix()))
		pusher = pusher.Collector(p.last)
	}

	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("error pushing metrics to %v (%w)", p.URL, err)
	}

	return nil
}
