package triage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DatasetKind tells callers where the overview's tickets came from.
type DatasetKind string

const (
	// DatasetNone means nothing has been fetched yet.
	DatasetNone DatasetKind = ""
	// DatasetLive is a successful, non-empty fetch.
	DatasetLive DatasetKind = "live"
	// DatasetEmpty is a successful fetch that returned no tickets.
	DatasetEmpty DatasetKind = "empty"
	// DatasetStale keeps the last good fetch after a failed refresh.
	DatasetStale DatasetKind = "stale"
	// DatasetDegraded holds placeholder tickets after a failed initial fetch.
	DatasetDegraded DatasetKind = "degraded"
)

const placeholderCount = 2

// OverviewState is a copy of the overview controller's state.
type OverviewState struct {
	Loading   bool
	Dataset   DatasetKind
	Tickets   []TicketRecord
	Summary   Summary
	Expanded  map[string]bool
	Err       error
	FetchedAt time.Time
}

// Overview owns the full ticket collection and the collapsible section state.
type Overview struct {
	tracker Tracker
	cfg     ClassifierConfig
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.Mutex
	gen       uint64
	closed    bool
	loading   bool
	hasLive   bool
	dataset   DatasetKind
	tickets   []TicketRecord
	summary   Summary
	expanded  map[string]bool
	err       error
	fetchedAt time.Time
}

// OverviewOption configures an Overview.
type OverviewOption func(*Overview)

// WithClassifierConfig replaces the default allowlist and priority groups.
func WithClassifierConfig(cfg ClassifierConfig) OverviewOption {
	return func(o *Overview) {
		o.cfg = cfg
	}
}

// WithOverviewLogger sets the logger.
func WithOverviewLogger(logger *zap.Logger) OverviewOption {
	return func(o *Overview) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides time.Now, used for placeholder timestamps.
func WithClock(now func() time.Time) OverviewOption {
	return func(o *Overview) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOverview creates an overview with every section expanded.
func NewOverview(tracker Tracker, opts ...OverviewOption) *Overview {
	o := &Overview{
		tracker: tracker,
		cfg:     DefaultClassifierConfig(),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	o.summary = EmptySummary(o.cfg)
	o.expanded = make(map[string]bool, len(o.summary.GroupOrder))
	for _, name := range o.summary.GroupOrder {
		o.expanded[name] = true
	}
	return o
}

// FetchAll replaces the collection with the tracker's list and reclassifies.
// On failure the returned state is still populated: the previous live data
// when there is some, placeholder tickets otherwise.
func (o *Overview) FetchAll(ctx context.Context) (OverviewState, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return OverviewState{}, preconditionf("fetch tickets", "overview is closed")
	}
	o.gen++
	gen := o.gen
	o.loading = true
	o.mu.Unlock()

	tickets, err := o.tracker.ListTickets(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || gen != o.gen {
		return o.snapshotLocked(), ErrStale
	}
	o.loading = false
	o.fetchedAt = o.now()

	if err != nil {
		o.err = err
		if o.hasLive {
			o.dataset = DatasetStale
			o.logger.Warn("ticket refresh failed, keeping last result", zap.Error(err))
		} else {
			o.tickets = PlaceholderTickets(o.fetchedAt, placeholderCount)
			o.summary = EmptySummary(o.cfg)
			o.dataset = DatasetDegraded
			o.logger.Error("initial ticket fetch failed", zap.Error(err))
		}
		return o.snapshotLocked(), err
	}

	o.err = nil
	o.hasLive = true
	o.tickets = cloneRecords(tickets)
	if o.tickets == nil {
		o.tickets = []TicketRecord{}
	}
	o.summary = Classify(o.tickets, o.cfg)
	if len(o.tickets) == 0 {
		o.dataset = DatasetEmpty
	} else {
		o.dataset = DatasetLive
	}
	o.logger.Debug("tickets classified",
		zap.Int("count", len(o.tickets)),
		zap.Int("other_statuses", o.summary.Overflow()))
	return o.snapshotLocked(), nil
}

// ToggleSection flips one group's expanded flag and returns the new value.
func (o *Overview) ToggleSection(name string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	current, ok := o.expanded[name]
	if !ok {
		return false, preconditionf("toggle section", "unknown section %q", name)
	}
	o.expanded[name] = !current
	return !current, nil
}

// Filtered runs the current collection through Filter.
func (o *Overview) Filtered(criteria FilterCriteria) []TicketRecord {
	o.mu.Lock()
	tickets := o.tickets
	o.mu.Unlock()
	return Filter(tickets, criteria)
}

// State returns a copy of the current state.
func (o *Overview) State() OverviewState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Close discards the overview; a fetch still in flight drops its result.
func (o *Overview) Close() {
	o.mu.Lock()
	o.closed = true
	o.loading = false
	o.gen++
	o.mu.Unlock()
}

func (o *Overview) snapshotLocked() OverviewState {
	expanded := make(map[string]bool, len(o.expanded))
	for k, v := range o.expanded {
		expanded[k] = v
	}
	return OverviewState{
		Loading:   o.loading,
		Dataset:   o.dataset,
		Tickets:   cloneRecords(o.tickets),
		Summary:   cloneSummary(o.summary),
		Expanded:  expanded,
		Err:       o.err,
		FetchedAt: o.fetchedAt,
	}
}

func cloneSummary(s Summary) Summary {
	out := Summary{
		StatusCounts: make(map[string]int, len(s.StatusCounts)),
		StatusOrder:  append([]string(nil), s.StatusOrder...),
		Groups:       make(map[string][]TicketRecord, len(s.Groups)),
		GroupOrder:   append([]string(nil), s.GroupOrder...),
	}
	for k, v := range s.StatusCounts {
		out.StatusCounts[k] = v
	}
	for k, v := range s.Groups {
		out.Groups[k] = cloneRecords(v)
	}
	return out
}
