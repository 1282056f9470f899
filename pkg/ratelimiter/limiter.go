// Package ratelimiter implements the warm-up rate limiter: per-(domain,
// account) send accounting across minute/hour/day windows, gated by a
// deterministic account-age tier schedule and a consecutive-failure
// circuit breaker.
//
// The track map is striped: each (domain, account_id) key hashes to one
// of a fixed number of shards, so unrelated keys never contend on the
// same lock. The per-key state is windowed counters, not a token bucket.
package ratelimiter

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/outboxguard/engine/pkg/clock"
)

const numShards = 64

// Key identifies a rate-limited sender.
type Key struct {
	Domain    string
	AccountID string
}

// Window holds the current counts for a Decision.
type Window struct {
	Minute int
	Hour   int
	Day    int
}

// Decision is the result of a Check call.
type Decision struct {
	Allowed      bool
	Reason       string // "per_minute", "per_hour", "per_day", "circuit_open"
	RetryAfterMs int64
	Current      Window
	Limits       Tier
}

// Event is emitted by every Check once the decision is made and the shard
// lock is released. Subscribers run synchronously on the caller's
// goroutine, before Check returns the decision.
type Event struct {
	Allowed   bool
	Domain    string
	AccountID string
	Reason    string
}

// Config configures a Limiter.
type Config struct {
	Tiers                       TierTable
	ConsecutiveFailureThreshold int  // default 10
	HardLimit                   bool // if false, denials downgrade: Check still reports them, but callers are expected to treat allowed as permit-with-warning (see Decision.Reason)
	Clock                       clock.Clock
}

// track is the per-key windowed counter state, owned exclusively by the
// Limiter.
type track struct {
	minuteWindowStart time.Time
	hourWindowStart   time.Time
	dayWindowStart    time.Time
	sentThisMinute    int
	sentThisHour      int
	sentToday         int
	failureCountTotal int
	consecutiveFails  int
	lastSendAt        time.Time

	// accountAgeDays is the age the most recent Check call carried, kept
	// so utilization readers can resolve the same tier the admission
	// decision used.
	accountAgeDays int
}

type shard struct {
	mu     sync.Mutex
	tracks map[Key]*track
}

// Limiter enforces the multi-window quota per (domain, account_id).
type Limiter struct {
	cfg         Config
	shards      [numShards]*shard
	subscribers []func(Event)
}

// New creates a Limiter. A zero Config uses DefaultTiers, a
// ConsecutiveFailureThreshold of 10, and the real clock. HardLimit has no
// applied default — a bool can't distinguish "unset" from "explicitly
// false" — so production wiring sets it from the options struct, which
// does carry a `json:",default=true"` tag (see internal/config).
func New(cfg Config) *Limiter {
	if len(cfg.Tiers.rows) == 0 {
		cfg.Tiers = NewTierTable(nil)
	}
	if cfg.ConsecutiveFailureThreshold <= 0 {
		cfg.ConsecutiveFailureThreshold = 10
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}

	l := &Limiter{cfg: cfg}
	for i := range l.shards {
		l.shards[i] = &shard{tracks: make(map[Key]*track)}
	}
	return l
}

// Subscribe registers a listener for LimiterEvents, called in registration
// order after the decision is made, before Check returns.
func (l *Limiter) Subscribe(fn func(Event)) {
	l.subscribers = append(l.subscribers, fn)
}

func (l *Limiter) shardFor(k Key) *shard {
	h := fnv.New32a()
	h.Write([]byte(k.Domain))
	h.Write([]byte{0})
	h.Write([]byte(k.AccountID))
	return l.shards[h.Sum32()%numShards]
}

// Check resolves the caller's tier and evaluates the deny precedence:
// per-minute, per-hour, per-day, then the consecutive-failure circuit
// breaker. It does not mutate counters — only RecordSuccess does.
func (l *Limiter) Check(domain, accountID string, accountAgeDays int) Decision {
	key := Key{Domain: domain, AccountID: accountID}
	tier := l.cfg.Tiers.Resolve(accountAgeDays)
	now := l.cfg.Clock.Now().UTC()

	s := l.shardFor(key)
	s.mu.Lock()
	t, ok := s.tracks[key]
	if !ok {
		t = newTrack(now)
		s.tracks[key] = t
	}
	t.accountAgeDays = accountAgeDays
	resetExpiredWindows(t, now)

	decision := Decision{
		Current: Window{Minute: t.sentThisMinute, Hour: t.sentThisHour, Day: t.sentToday},
		Limits:  tier,
	}

	switch {
	case t.sentThisMinute >= tier.PerMinute:
		decision.Reason = "per_minute"
		decision.RetryAfterMs = msUntil(now, t.minuteWindowStart.Add(time.Minute))
	case t.sentThisHour >= tier.PerHour:
		decision.Reason = "per_hour"
		decision.RetryAfterMs = msUntil(now, t.hourWindowStart.Add(time.Hour))
	case t.sentToday >= tier.PerDay:
		decision.Reason = "per_day"
		decision.RetryAfterMs = msUntil(now, t.dayWindowStart.Add(24*time.Hour))
	case t.consecutiveFails >= l.cfg.ConsecutiveFailureThreshold:
		decision.Reason = "circuit_open"
		decision.RetryAfterMs = 60_000
	default:
		decision.Allowed = true
	}
	s.mu.Unlock()

	l.emit(Event{Allowed: decision.Allowed, Domain: domain, AccountID: accountID, Reason: decision.Reason})
	return decision
}

// RecordSuccess increments all three window counters and clears
// consecutive_failures.
func (l *Limiter) RecordSuccess(domain, accountID string) {
	key := Key{Domain: domain, AccountID: accountID}
	now := l.cfg.Clock.Now().UTC()

	s := l.shardFor(key)
	s.mu.Lock()
	t, ok := s.tracks[key]
	if !ok {
		t = newTrack(now)
		s.tracks[key] = t
	}
	resetExpiredWindows(t, now)
	t.sentThisMinute++
	t.sentThisHour++
	t.sentToday++
	t.consecutiveFails = 0
	t.lastSendAt = now
	s.mu.Unlock()
}

// RecordFailure increments failure_count_total and consecutive_failures
// only; it never touches the send windows.
func (l *Limiter) RecordFailure(domain, accountID string) {
	key := Key{Domain: domain, AccountID: accountID}
	now := l.cfg.Clock.Now().UTC()

	s := l.shardFor(key)
	s.mu.Lock()
	t, ok := s.tracks[key]
	if !ok {
		t = newTrack(now)
		s.tracks[key] = t
	}
	resetExpiredWindows(t, now)
	t.failureCountTotal++
	t.consecutiveFails++
	s.mu.Unlock()
}

// Snapshot returns a read-only copy of the track for (domain, accountID),
// used by the Monitor. ok is false if the key has never been seen.
func (l *Limiter) Snapshot(domain, accountID string) (track Window, ok bool) {
	key := Key{Domain: domain, AccountID: accountID}
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	t, exists := s.tracks[key]
	if !exists {
		return Window{}, false
	}
	return Window{Minute: t.sentThisMinute, Hour: t.sentThisHour, Day: t.sentToday}, true
}

// TrackedKeys returns every (domain, account_id) pair currently tracked,
// for the Monitor's per-domain utilization sample.
func (l *Limiter) TrackedKeys() []Key {
	var keys []Key
	for _, s := range l.shards {
		s.mu.Lock()
		for k := range s.tracks {
			keys = append(keys, k)
		}
		s.mu.Unlock()
	}
	return keys
}

// AccountAgeDays returns the age the most recent Check call carried for
// (domain, accountID), so utilization readers resolve the same tier the
// admission decision used. A key seen only via RecordSuccess/RecordFailure
// reports 0, the most restrictive tier.
func (l *Limiter) AccountAgeDays(domain, accountID string) int {
	key := Key{Domain: domain, AccountID: accountID}
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tracks[key]; ok {
		return t.accountAgeDays
	}
	return 0
}

// TrackState is a serializable copy of one (domain, account_id) track,
// used to snapshot the limiter's state across restarts.
type TrackState struct {
	Domain              string
	AccountID           string
	AccountAgeDays      int
	MinuteWindowStart   time.Time
	HourWindowStart     time.Time
	DayWindowStart      time.Time
	SentThisMinute      int
	SentThisHour        int
	SentToday           int
	FailureCountTotal   int
	ConsecutiveFailures int
	LastSendAt          time.Time
}

// ExportTracks returns a copy of every tracked key's state.
func (l *Limiter) ExportTracks() []TrackState {
	var out []TrackState
	for _, s := range l.shards {
		s.mu.Lock()
		for k, t := range s.tracks {
			out = append(out, TrackState{
				Domain:              k.Domain,
				AccountID:           k.AccountID,
				AccountAgeDays:      t.accountAgeDays,
				MinuteWindowStart:   t.minuteWindowStart,
				HourWindowStart:     t.hourWindowStart,
				DayWindowStart:      t.dayWindowStart,
				SentThisMinute:      t.sentThisMinute,
				SentThisHour:        t.sentThisHour,
				SentToday:           t.sentToday,
				FailureCountTotal:   t.failureCountTotal,
				ConsecutiveFailures: t.consecutiveFails,
				LastSendAt:          t.lastSendAt,
			})
		}
		s.mu.Unlock()
	}
	return out
}

// RestoreTracks installs previously exported state, overwriting any
// existing entry for the same key. Stale windows are not reset here; the
// next Check or Record call resets whichever windows have since expired.
func (l *Limiter) RestoreTracks(states []TrackState) {
	for _, st := range states {
		key := Key{Domain: st.Domain, AccountID: st.AccountID}
		s := l.shardFor(key)
		s.mu.Lock()
		s.tracks[key] = &track{
			minuteWindowStart: st.MinuteWindowStart,
			hourWindowStart:   st.HourWindowStart,
			dayWindowStart:    st.DayWindowStart,
			sentThisMinute:    st.SentThisMinute,
			sentThisHour:      st.SentThisHour,
			sentToday:         st.SentToday,
			failureCountTotal: st.FailureCountTotal,
			consecutiveFails:  st.ConsecutiveFailures,
			lastSendAt:        st.LastSendAt,
			accountAgeDays:    st.AccountAgeDays,
		}
		s.mu.Unlock()
	}
}

// ConsecutiveFailures returns the consecutive-failure count for
// (domain, accountID), for the Monitor's alert rule (d).
func (l *Limiter) ConsecutiveFailures(domain, accountID string) int {
	key := Key{Domain: domain, AccountID: accountID}
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tracks[key]; ok {
		return t.consecutiveFails
	}
	return 0
}

// TrackedCount returns the total number of tracked (domain, account_id)
// keys, for the rate-limiter health check's cap comparison.
func (l *Limiter) TrackedCount() int {
	n := 0
	for _, s := range l.shards {
		s.mu.Lock()
		n += len(s.tracks)
		s.mu.Unlock()
	}
	return n
}

// Tier exposes the resolved tier for an account age, so callers (e.g. the
// Monitor) can compute utilization without duplicating the table.
func (l *Limiter) Tier(accountAgeDays int) Tier {
	return l.cfg.Tiers.Resolve(accountAgeDays)
}

// HardLimit reports whether callers must treat a denial as a hard stop.
// When false, the processor downgrades a denial to a warning and permits
// the send anyway, per the hard_limit configuration option.
func (l *Limiter) HardLimit() bool {
	return l.cfg.HardLimit
}

func (l *Limiter) emit(ev Event) {
	checksTotal.Inc(allowedLabel(ev.Allowed), ev.Reason)
	for _, sub := range l.subscribers {
		sub(ev)
	}
}

func newTrack(now time.Time) *track {
	return &track{
		minuteWindowStart: now.Truncate(time.Minute),
		hourWindowStart:   now.Truncate(time.Hour),
		dayWindowStart:    now.Truncate(24 * time.Hour),
	}
}

func resetExpiredWindows(t *track, now time.Time) {
	if !t.minuteWindowStart.Add(time.Minute).After(now) {
		t.minuteWindowStart = now.Truncate(time.Minute)
		t.sentThisMinute = 0
	}
	if !t.hourWindowStart.Add(time.Hour).After(now) {
		t.hourWindowStart = now.Truncate(time.Hour)
		t.sentThisHour = 0
	}
	if !t.dayWindowStart.Add(24 * time.Hour).After(now) {
		t.dayWindowStart = now.Truncate(24 * time.Hour)
		t.sentToday = 0
	}
}

func msUntil(now, deadline time.Time) int64 {
	d := deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}
