package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

// Recorder aggregates in-memory metrics counters for HTTP requests, gateway
// admission and authentication outcomes, moderation workflow activity, and the
// scheduled video validation job. Writers coordinate through a RWMutex while
// the sweep gauge uses an atomic counter.
type Recorder struct {
	mu                 sync.RWMutex
	requestCount       map[requestLabel]uint64
	requestDuration    map[requestLabel]time.Duration
	rateLimitRejected  uint64
	authOutcomes       map[string]uint64
	proposalEvents     map[string]uint64
	validationRuns     uint64
	videosChecked      uint64
	videosUnavailable  uint64
	validationFailures uint64
	validationActive   atomic.Int64
}

var defaultRecorder = New()

// New constructs an empty Recorder with initialized backing maps so callers
// can immediately record metrics without additional setup.
func New() *Recorder {
	return &Recorder{
		requestCount:    make(map[requestLabel]uint64),
		requestDuration: make(map[requestLabel]time.Duration),
		authOutcomes:    make(map[string]uint64),
		proposalEvents:  make(map[string]uint64),
	}
}

// Default returns the singleton Recorder instance shared across packages that
// do not require custom instrumentation pipelines.
func Default() *Recorder {
	return defaultRecorder
}

// ObserveRequest normalizes the request label set and accumulates totals for
// request count and cumulative duration by HTTP method, normalized path, and
// status code.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		status: fmt.Sprintf("%d", status),
	}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// ObserveRateLimitRejection counts a request turned away by admission control.
func (r *Recorder) ObserveRateLimitRejection() {
	r.mu.Lock()
	r.rateLimitRejected++
	r.mu.Unlock()
}

// ObserveAuthOutcome records an authentication stage decision keyed by outcome
// (e.g., "success", "failed", "anonymous", "denied").
func (r *Recorder) ObserveAuthOutcome(outcome string) {
	normalized := normalizeName(outcome)
	r.mu.Lock()
	r.authOutcomes[normalized]++
	r.mu.Unlock()
}

// ObserveProposalEvent records moderation workflow activity keyed by event
// (e.g., "created", "approved", "rejected").
func (r *Recorder) ObserveProposalEvent(event string) {
	normalized := normalizeName(event)
	r.mu.Lock()
	r.proposalEvents[normalized]++
	r.mu.Unlock()
}

// ValidationSweepStarted marks the beginning of a video validation sweep.
func (r *Recorder) ValidationSweepStarted() {
	r.mu.Lock()
	r.validationRuns++
	r.mu.Unlock()
	r.validationActive.Add(1)
}

// ValidationSweepFinished marks the end of a video validation sweep.
func (r *Recorder) ValidationSweepFinished() {
	r.decrementGauge(&r.validationActive)
}

// ObserveVideoChecked counts a single availability probe, recording whether
// the video turned out to be unavailable or the probe itself failed.
func (r *Recorder) ObserveVideoChecked(unavailable, failed bool) {
	r.mu.Lock()
	r.videosChecked++
	if unavailable {
		r.videosUnavailable++
	}
	if failed {
		r.validationFailures++
	}
	r.mu.Unlock()
}

// Reset clears all collected metrics. Intended for tests.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.requestCount = make(map[requestLabel]uint64)
	r.requestDuration = make(map[requestLabel]time.Duration)
	r.rateLimitRejected = 0
	r.authOutcomes = make(map[string]uint64)
	r.proposalEvents = make(map[string]uint64)
	r.validationRuns = 0
	r.videosChecked = 0
	r.videosUnavailable = 0
	r.validationFailures = 0
	r.mu.Unlock()
	r.validationActive.Store(0)
}

// Handler exposes the recorder in Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.Write(w)
	})
}

// Write renders the Recorder's metrics in Prometheus text format, sorting
// label sets to provide stable output for scrapes and tests.
func (r *Recorder) Write(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requestLabels := r.sortedRequestLabels()
	authOutcomes := sortedKeys(r.authOutcomes)
	proposalEvents := sortedKeys(r.proposalEvents)

	fmt.Fprintln(w, "# HELP tubecurator_http_requests_total Total number of HTTP requests processed by the API")
	fmt.Fprintln(w, "# TYPE tubecurator_http_requests_total counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "tubecurator_http_requests_total{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP tubecurator_http_request_duration_seconds_sum Cumulative duration of HTTP requests in seconds")
	fmt.Fprintln(w, "# TYPE tubecurator_http_request_duration_seconds_sum counter")
	for _, label := range requestLabels {
		duration := r.requestDuration[label].Seconds()
		fmt.Fprintf(w, "tubecurator_http_request_duration_seconds_sum{method=\"%s\",path=\"%s\",status=\"%s\"} %f\n", label.method, label.path, label.status, duration)
	}

	fmt.Fprintln(w, "# HELP tubecurator_ratelimit_rejections_total Requests rejected by admission control")
	fmt.Fprintln(w, "# TYPE tubecurator_ratelimit_rejections_total counter")
	fmt.Fprintf(w, "tubecurator_ratelimit_rejections_total %d\n", r.rateLimitRejected)

	fmt.Fprintln(w, "# HELP tubecurator_auth_outcomes_total Authentication stage decisions by outcome")
	fmt.Fprintln(w, "# TYPE tubecurator_auth_outcomes_total counter")
	for _, outcome := range authOutcomes {
		fmt.Fprintf(w, "tubecurator_auth_outcomes_total{outcome=\"%s\"} %d\n", outcome, r.authOutcomes[outcome])
	}

	fmt.Fprintln(w, "# HELP tubecurator_proposal_events_total Moderation proposal events by type")
	fmt.Fprintln(w, "# TYPE tubecurator_proposal_events_total counter")
	for _, event := range proposalEvents {
		fmt.Fprintf(w, "tubecurator_proposal_events_total{event=\"%s\"} %d\n", event, r.proposalEvents[event])
	}

	fmt.Fprintln(w, "# HELP tubecurator_validation_sweeps_total Completed and in-flight video validation sweeps")
	fmt.Fprintln(w, "# TYPE tubecurator_validation_sweeps_total counter")
	fmt.Fprintf(w, "tubecurator_validation_sweeps_total %d\n", r.validationRuns)

	fmt.Fprintln(w, "# HELP tubecurator_validation_videos_checked_total Videos probed by the validation job")
	fmt.Fprintln(w, "# TYPE tubecurator_validation_videos_checked_total counter")
	fmt.Fprintf(w, "tubecurator_validation_videos_checked_total %d\n", r.videosChecked)

	fmt.Fprintln(w, "# HELP tubecurator_validation_videos_unavailable_total Videos marked unavailable by the validation job")
	fmt.Fprintln(w, "# TYPE tubecurator_validation_videos_unavailable_total counter")
	fmt.Fprintf(w, "tubecurator_validation_videos_unavailable_total %d\n", r.videosUnavailable)

	fmt.Fprintln(w, "# HELP tubecurator_validation_probe_failures_total Availability probes that failed outright")
	fmt.Fprintln(w, "# TYPE tubecurator_validation_probe_failures_total counter")
	fmt.Fprintf(w, "tubecurator_validation_probe_failures_total %d\n", r.validationFailures)

	fmt.Fprintln(w, "# HELP tubecurator_validation_active_sweeps Currently running validation sweeps")
	fmt.Fprintln(w, "# TYPE tubecurator_validation_active_sweeps gauge")
	fmt.Fprintf(w, "tubecurator_validation_active_sweeps %d\n", r.validationActive.Load())
}

func (r *Recorder) sortedRequestLabels() []requestLabel {
	labels := make([]requestLabel, 0, len(r.requestCount))
	for label := range r.requestCount {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].method != labels[j].method {
			return labels[i].method < labels[j].method
		}
		if labels[i].path != labels[j].path {
			return labels[i].path < labels[j].path
		}
		return labels[i].status < labels[j].status
	})
	return labels
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (r *Recorder) decrementGauge(gauge *atomic.Int64) {
	if gauge.Add(-1) < 0 {
		gauge.Store(0)
	}
}

func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if looksLikeIdentifier(part) {
			parts[i] = ":id"
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasSuffix(normalized, "/") && len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

// looksLikeIdentifier treats long hex strings and UUID-shaped segments as
// opaque identifiers so the label cardinality stays bounded.
func looksLikeIdentifier(segment string) bool {
	if len(segment) == 36 && strings.Count(segment, "-") == 4 {
		return true
	}
	if len(segment) < 16 {
		return false
	}
	for _, r := range segment {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
