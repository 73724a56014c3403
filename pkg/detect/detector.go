// Package detect derives ranked issues from a window of retained events.
//
// Detect is a pure function: it holds no state across calls and the same
// input window always produces the same output. Rules fire independently;
// their results are merged and sorted by severity descending, then by
// first-occurrence timestamp.
package detect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spyglass-dev/spyglass/pkg/apidiscovery"
	"github.com/spyglass-dev/spyglass/pkg/models"
	"github.com/spyglass-dev/spyglass/pkg/sqlnorm"
)

// Issue patterns emitted by the detector rules.
const (
	PatternFailedRequest  = "failed-request"
	PatternSlowRequest    = "slow-request"
	PatternRequestStorm   = "request-storm"
	PatternErrorSpam      = "error-spam"
	PatternHighErrorRate  = "high-error-rate"
	PatternSlowQuery      = "slow-query"
	PatternNPlusOne       = "n-plus-one"
	PatternRenderSuspect  = "render-suspect"
	PatternPoorWebVital   = "poor-web-vital"
	PatternAPIDegradation = "api-degradation"
)

// Rule thresholds.
const (
	slowRequestMs       = 3000
	stormCount          = 10
	stormWindowMs       = 5000
	errorSpamCount      = 5
	errorSpamWindowMs   = 10000
	errorRateThreshold  = 0.2
	errorRateMinSamples = 20
	slowQueryMs         = 500
	nPlusOneCount       = 10
	nPlusOneWindowMs    = 2000
)

// Detect runs every rule over the supplied event window and returns the
// merged issue list, sorted by severity descending then first occurrence.
func Detect(events []*models.Event) []models.Issue {
	var issues []models.Issue
	issues = append(issues, detectFailedRequests(events)...)
	issues = append(issues, detectSlowRequests(events)...)
	issues = append(issues, detectRequestStorms(events)...)
	issues = append(issues, detectErrorSpam(events)...)
	issues = append(issues, detectHighErrorRate(events)...)
	issues = append(issues, detectSlowQueries(events)...)
	issues = append(issues, detectNPlusOne(events)...)
	issues = append(issues, detectRenderSuspects(events)...)
	issues = append(issues, detectPoorWebVitals(events)...)
	issues = append(issues, detectAPIDegradation(events)...)

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Severity.Rank() != issues[j].Severity.Rank() {
			return issues[i].Severity.Rank() > issues[j].Severity.Rank()
		}
		return issues[i].FirstSeen < issues[j].FirstSeen
	})
	return issues
}

// group collects the events contributing to one prospective issue.
type group struct {
	first *models.Event
	last  *models.Event
	count int
	times []int64
	ids   []string
}

func (g *group) add(ev *models.Event) {
	if g.first == nil || ev.Timestamp < g.first.Timestamp {
		g.first = ev
	}
	if g.last == nil || ev.Timestamp >= g.last.Timestamp {
		g.last = ev
	}
	g.count++
	g.times = append(g.times, ev.Timestamp)
	g.ids = append(g.ids, ev.EventID)
}

func (g *group) evidence() models.Evidence {
	return models.Evidence{
		FirstEventID: g.first.EventID,
		LastEventID:  g.last.EventID,
		Count:        g.count,
	}
}

// groupBy partitions events by key, skipping events the keyFn rejects.
func groupBy(events []*models.Event, keyFn func(*models.Event) (string, bool)) map[string]*group {
	groups := make(map[string]*group)
	for _, ev := range events {
		key, ok := keyFn(ev)
		if !ok {
			continue
		}
		g, exists := groups[key]
		if !exists {
			g = &group{}
			groups[key] = g
		}
		g.add(ev)
	}
	return groups
}

// sortedKeys makes rule output deterministic.
func sortedKeys(groups map[string]*group) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// maxWithinWindow returns the largest number of timestamps that fall inside
// any window of the given width, assuming nothing about input order.
func maxWithinWindow(times []int64, windowMs int64) int {
	sorted := append([]int64(nil), times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	best, lo := 0, 0
	for hi := range sorted {
		for sorted[hi]-sorted[lo] > windowMs {
			lo++
		}
		if n := hi - lo + 1; n > best {
			best = n
		}
	}
	return best
}

func detectFailedRequests(events []*models.Event) []models.Issue {
	groups := groupBy(events, func(ev *models.Event) (string, bool) {
		if ev.Network == nil || ev.Network.Status < 400 {
			return "", false
		}
		return fmt.Sprintf("%s %s %d", ev.Network.Method, ev.Network.URL, ev.Network.Status), true
	})

	var issues []models.Issue
	for _, key := range sortedKeys(groups) {
		g := groups[key]
		n := g.first.Network
		severity := models.SeverityMedium
		if n.Status >= 500 {
			severity = models.SeverityHigh
		}
		issues = append(issues, models.Issue{
			Severity:    severity,
			Pattern:     PatternFailedRequest,
			Title:       fmt.Sprintf("Request failing with HTTP %d", n.Status),
			Description: fmt.Sprintf("%s %s returned status %d (%d occurrence(s))", n.Method, n.URL, n.Status, g.count),
			Evidence:    g.evidence(),
			Suggestion:  "Inspect the response body and server logs for this endpoint.",
			FirstSeen:   g.first.Timestamp,
		})
	}
	return issues
}

func detectSlowRequests(events []*models.Event) []models.Issue {
	groups := groupBy(events, func(ev *models.Event) (string, bool) {
		if ev.Network == nil || ev.Network.Duration <= slowRequestMs {
			return "", false
		}
		return apidiscovery.EndpointKey(ev.Network.Method, ev.Network.URL), true
	})

	var issues []models.Issue
	for _, key := range sortedKeys(groups) {
		g := groups[key]
		issues = append(issues, models.Issue{
			Severity:    models.SeverityMedium,
			Pattern:     PatternSlowRequest,
			Title:       fmt.Sprintf("Slow requests to %s", key),
			Description: fmt.Sprintf("%d request(s) to %s exceeded %dms", g.count, key, slowRequestMs),
			Evidence:    g.evidence(),
			Suggestion:  "Profile the endpoint or add caching; check payload sizes.",
			FirstSeen:   g.first.Timestamp,
		})
	}
	return issues
}

func detectRequestStorms(events []*models.Event) []models.Issue {
	groups := groupBy(events, func(ev *models.Event) (string, bool) {
		if ev.Network == nil {
			return "", false
		}
		return apidiscovery.EndpointKey(ev.Network.Method, ev.Network.URL), true
	})

	var issues []models.Issue
	for _, key := range sortedKeys(groups) {
		g := groups[key]
		burst := maxWithinWindow(g.times, stormWindowMs)
		if burst <= stormCount {
			continue
		}
		issues = append(issues, models.Issue{
			Severity:    models.SeverityMedium,
			Pattern:     PatternRequestStorm,
			Title:       fmt.Sprintf("Request storm on %s", key),
			Description: fmt.Sprintf("%d requests to %s within %ds", burst, key, stormWindowMs/1000),
			Evidence:    models.Evidence{FirstEventID: g.first.EventID, LastEventID: g.last.EventID, Count: burst},
			Suggestion:  "Look for a missing debounce, a render loop, or retry amplification.",
			FirstSeen:   g.first.Timestamp,
		})
	}
	return issues
}

func detectErrorSpam(events []*models.Event) []models.Issue {
	groups := groupBy(events, func(ev *models.Event) (string, bool) {
		if ev.Console == nil || ev.Console.Level != models.LevelError {
			return "", false
		}
		return ev.Console.Message, true
	})

	var issues []models.Issue
	for _, key := range sortedKeys(groups) {
		g := groups[key]
		burst := maxWithinWindow(g.times, errorSpamWindowMs)
		if burst <= errorSpamCount {
			continue
		}
		issues = append(issues, models.Issue{
			Severity:    models.SeverityMedium,
			Pattern:     PatternErrorSpam,
			Title:       "Repeated console error",
			Description: fmt.Sprintf("%q logged %d times within %ds", truncate(key, 120), burst, errorSpamWindowMs/1000),
			Evidence:    models.Evidence{FirstEventID: g.first.EventID, LastEventID: g.last.EventID, Count: burst},
			Suggestion:  "Fix the underlying error or rate-limit the log call.",
			FirstSeen:   g.first.Timestamp,
		})
	}
	return issues
}

func detectHighErrorRate(events []*models.Event) []models.Issue {
	var total, errors int
	var first, last *models.Event
	for _, ev := range events {
		if ev.Console == nil {
			continue
		}
		total++
		if ev.Console.Level == models.LevelError {
			errors++
			if first == nil || ev.Timestamp < first.Timestamp {
				first = ev
			}
			if last == nil || ev.Timestamp >= last.Timestamp {
				last = ev
			}
		}
	}
	if total < errorRateMinSamples || errors == 0 {
		return nil
	}
	rate := float64(errors) / float64(total)
	if rate <= errorRateThreshold {
		return nil
	}
	return []models.Issue{{
		Severity:    models.SeverityHigh,
		Pattern:     PatternHighErrorRate,
		Title:       "High console error rate",
		Description: fmt.Sprintf("%.0f%% of %d console messages are errors", rate*100, total),
		Evidence:    models.Evidence{FirstEventID: first.EventID, LastEventID: last.EventID, Count: errors},
		Suggestion:  "The application is likely in a broken state; start from the first error.",
		FirstSeen:   first.Timestamp,
	}}
}

func detectSlowQueries(events []*models.Event) []models.Issue {
	groups := groupBy(events, func(ev *models.Event) (string, bool) {
		if ev.Database == nil || ev.Database.Duration <= slowQueryMs {
			return "", false
		}
		return normalizedQuery(ev.Database), true
	})

	var issues []models.Issue
	for _, key := range sortedKeys(groups) {
		g := groups[key]
		issues = append(issues, models.Issue{
			Severity:    models.SeverityMedium,
			Pattern:     PatternSlowQuery,
			Title:       "Slow database query",
			Description: fmt.Sprintf("%d execution(s) of %q exceeded %dms", g.count, truncate(key, 120), slowQueryMs),
			Evidence:    g.evidence(),
			Suggestion:  "Check the query plan; a missing index is the usual cause.",
			FirstSeen:   g.first.Timestamp,
		})
	}
	return issues
}

func detectNPlusOne(events []*models.Event) []models.Issue {
	groups := groupBy(events, func(ev *models.Event) (string, bool) {
		if ev.Database == nil {
			return "", false
		}
		return ev.SessionID + "\x00" + normalizedQuery(ev.Database), true
	})

	var issues []models.Issue
	for _, key := range sortedKeys(groups) {
		g := groups[key]
		burst := maxWithinWindow(g.times, nPlusOneWindowMs)
		if burst <= nPlusOneCount {
			continue
		}
		query := key[strings.IndexByte(key, '\x00')+1:]
		issues = append(issues, models.Issue{
			Severity:    models.SeverityHigh,
			Pattern:     PatternNPlusOne,
			Title:       "N+1 query pattern",
			Description: fmt.Sprintf("%q executed %d times within %ds from one session", truncate(query, 120), burst, nPlusOneWindowMs/1000),
			Evidence:    models.Evidence{FirstEventID: g.first.EventID, LastEventID: g.last.EventID, Count: burst},
			Suggestion:  "Batch the lookups or eager-load the association.",
			FirstSeen:   g.first.Timestamp,
		})
	}
	return issues
}

func detectRenderSuspects(events []*models.Event) []models.Issue {
	groups := groupBy(events, func(ev *models.Event) (string, bool) {
		if ev.Render == nil || len(ev.Render.SuspiciousComponents) == 0 {
			return "", false
		}
		return strings.Join(ev.Render.SuspiciousComponents, ", "), true
	})

	var issues []models.Issue
	for _, key := range sortedKeys(groups) {
		g := groups[key]
		issues = append(issues, models.Issue{
			Severity:    models.SeverityMedium,
			Pattern:     PatternRenderSuspect,
			Title:       "Suspicious re-render activity",
			Description: fmt.Sprintf("Component(s) flagged across %d snapshot(s): %s", g.count, key),
			Evidence:    g.evidence(),
			Suggestion:  "Check for unstable props or missing memoization on the flagged components.",
			FirstSeen:   g.first.Timestamp,
		})
	}
	return issues
}

func detectPoorWebVitals(events []*models.Event) []models.Issue {
	groups := groupBy(events, func(ev *models.Event) (string, bool) {
		if ev.Performance == nil || ev.Performance.Rating != models.RatingPoor {
			return "", false
		}
		return ev.Performance.MetricName, true
	})

	var issues []models.Issue
	for _, key := range sortedKeys(groups) {
		g := groups[key]
		issues = append(issues, models.Issue{
			Severity:    models.SeverityMedium,
			Pattern:     PatternPoorWebVital,
			Title:       fmt.Sprintf("Poor %s", key),
			Description: fmt.Sprintf("%s rated poor in %d sample(s), last value %.1f%s", key, g.count, g.last.Performance.Value, g.last.Performance.Unit),
			Evidence:    g.evidence(),
			Suggestion:  "See the element attribution on the metric event for the offending node.",
			FirstSeen:   g.first.Timestamp,
		})
	}
	return issues
}

func detectAPIDegradation(events []*models.Event) []models.Issue {
	var issues []models.Issue
	for _, reg := range apidiscovery.Regressions(events) {
		issues = append(issues, models.Issue{
			Severity:    models.SeverityHigh,
			Pattern:     PatternAPIDegradation,
			Title:       fmt.Sprintf("Latency regression on %s", reg.EndpointKey),
			Description: fmt.Sprintf("p95 rose from %.0fms to %.0fms over %d samples", reg.BaselineP95, reg.RecentP95, reg.SampleCount),
			Evidence:    models.Evidence{FirstEventID: reg.FirstEventID, LastEventID: reg.LastEventID, Count: reg.SampleCount},
			Suggestion:  "Compare recent deploys and upstream dependencies against the regression window.",
			FirstSeen:   reg.FirstSeen,
		})
	}
	return issues
}

// normalizedQuery prefers the producer-supplied normalized form and falls
// back to local normalization.
func normalizedQuery(d *models.DatabaseBody) string {
	if d.NormalizedQuery != "" {
		return d.NormalizedQuery
	}
	return sqlnorm.Normalize(d.Query)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
