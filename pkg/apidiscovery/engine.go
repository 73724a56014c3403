package apidiscovery

import (
	"sort"
	"strings"

	"github.com/spyglass-dev/spyglass/pkg/models"
)

// Regression thresholds: an endpoint regressed when the newer half's p95
// exceeds the older half's p95 by this factor and is slow in absolute terms.
const (
	regressionMinSamples = 20
	regressionFactor     = 1.5
	regressionMinP95Ms   = 200
)

// EndpointStats is the derived aggregate for one endpoint key. It is
// computed on read and never stored.
type EndpointStats struct {
	Method            string      `json:"method"`
	PathTemplate      string      `json:"pathTemplate"`
	SampleCount       int         `json:"sampleCount"`
	AvgDurationMs     float64     `json:"avgDurationMs"`
	P50               float64     `json:"p50"`
	P95               float64     `json:"p95"`
	P99               float64     `json:"p99"`
	ErrorRate         float64     `json:"errorRate"`
	LastSeenAt        int64       `json:"lastSeenAt"`
	Statuses          map[int]int `json:"statuses"`
	GraphQLOperations []string    `json:"graphqlOperations,omitempty"`
}

// Key returns the endpoint aggregation key.
func (s *EndpointStats) Key() string {
	return s.Method + " " + s.PathTemplate
}

// Regression is a latency regression signal for one endpoint.
type Regression struct {
	EndpointKey  string  `json:"endpointKey"`
	BaselineP95  float64 `json:"baselineP95"`
	RecentP95    float64 `json:"recentP95"`
	SampleCount  int     `json:"sampleCount"`
	FirstEventID string  `json:"firstEventId"`
	LastEventID  string  `json:"lastEventId"`
	FirstSeen    int64   `json:"firstSeen"`
}

// accumulator folds network events for one endpoint key.
type accumulator struct {
	method       string
	pathTemplate string
	sample       durationSample
	durationSum  float64
	count        int
	errors       int
	statuses     map[int]int
	lastSeen     int64
	firstEventID string
	lastEventID  string
	firstSeen    int64
	gqlOps       map[string]struct{}
}

// fold builds per-endpoint accumulators from a network event window.
// Non-network events are ignored so callers can pass mixed windows.
// Events are processed in timestamp order so the ordered duration view
// reflects arrival order even when the caller's slice is not sorted.
func fold(events []*models.Event) map[string]*accumulator {
	sorted := make([]*models.Event, 0, len(events))
	for _, ev := range events {
		if ev.Network != nil {
			sorted = append(sorted, ev)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	accs := make(map[string]*accumulator)
	for _, ev := range sorted {
		n := ev.Network
		key := EndpointKey(n.Method, n.URL)
		acc, ok := accs[key]
		if !ok {
			acc = &accumulator{
				method:       strings.ToUpper(n.Method),
				pathTemplate: PathTemplate(n.URL),
				statuses:     make(map[int]int),
				gqlOps:       make(map[string]struct{}),
				firstEventID: ev.EventID,
				firstSeen:    ev.Timestamp,
			}
			accs[key] = acc
		}
		acc.sample.add(n.Duration)
		acc.durationSum += n.Duration
		acc.count++
		acc.statuses[n.Status]++
		if n.Status >= 400 {
			acc.errors++
		}
		if ev.Timestamp > acc.lastSeen {
			acc.lastSeen = ev.Timestamp
		}
		acc.lastEventID = ev.EventID
		if n.GraphQL != nil && n.GraphQL.Name != "" {
			acc.gqlOps[n.GraphQL.Name] = struct{}{}
		}
	}
	return accs
}

// Aggregate folds a network event window into endpoint statistics, sorted
// by sample count descending then key ascending.
func Aggregate(events []*models.Event) []EndpointStats {
	accs := fold(events)
	out := make([]EndpointStats, 0, len(accs))
	for _, acc := range accs {
		stats := EndpointStats{
			Method:        acc.method,
			PathTemplate:  acc.pathTemplate,
			SampleCount:   acc.count,
			AvgDurationMs: acc.durationSum / float64(acc.count),
			P50:           acc.sample.percentile(50),
			P95:           acc.sample.percentile(95),
			P99:           acc.sample.percentile(99),
			ErrorRate:     float64(acc.errors) / float64(acc.count),
			LastSeenAt:    acc.lastSeen,
			Statuses:      acc.statuses,
		}
		if len(acc.gqlOps) > 0 {
			ops := make([]string, 0, len(acc.gqlOps))
			for op := range acc.gqlOps {
				ops = append(ops, op)
			}
			sort.Strings(ops)
			stats.GraphQLOperations = ops
		}
		out = append(out, stats)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SampleCount != out[j].SampleCount {
			return out[i].SampleCount > out[j].SampleCount
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

// Regressions compares each endpoint's older half against its newer half
// and reports endpoints whose recent p95 exceeds the baseline p95 by the
// regression factor while also being slow in absolute terms.
func Regressions(events []*models.Event) []Regression {
	accs := fold(events)
	var out []Regression
	for key, acc := range accs {
		if len(acc.sample.ordered) < regressionMinSamples {
			continue
		}
		mid := len(acc.sample.ordered) / 2
		baseline := percentileOf(acc.sample.ordered[:mid], 95)
		recent := percentileOf(acc.sample.ordered[mid:], 95)
		if recent > baseline*regressionFactor && recent > regressionMinP95Ms {
			out = append(out, Regression{
				EndpointKey:  key,
				BaselineP95:  baseline,
				RecentP95:    recent,
				SampleCount:  acc.count,
				FirstEventID: acc.firstEventID,
				LastEventID:  acc.lastEventID,
				FirstSeen:    acc.firstSeen,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndpointKey < out[j].EndpointKey })
	return out
}
