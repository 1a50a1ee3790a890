package services

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	headerLimit     = "X-RateLimit-Limit"
	headerRemaining = "X-RateLimit-Remaining"
	headerReset     = "X-RateLimit-Reset"
)

// RateState is the last rate-limit headroom reported by one host.
type RateState struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Known     bool // at least one response carried both headers
	UpdatedAt time.Time
}

// Headroom returns remaining/limit, or 1 when the host has not reported a limit yet.
func (s RateState) Headroom() float64 {
	if !s.Known || s.Limit <= 0 {
		return 1
	}
	return float64(s.Remaining) / float64(s.Limit)
}

// Pacing configures inter-request delays.
type Pacing struct {
	BaseDelay      time.Duration // baseline spacing between requests to one host
	ElevatedFactor float64       // multiplier applied when headroom is low
	LowHeadroom    float64       // remaining/limit threshold below which pacing is elevated
}

// DefaultPacing is 100ms between requests, 500ms once less than a tenth of the window remains.
var DefaultPacing = Pacing{BaseDelay: 100 * time.Millisecond, ElevatedFactor: 5, LowHeadroom: 0.10}

func (p Pacing) interval(s RateState) time.Duration {
	if s.Headroom() < p.LowHeadroom {
		return time.Duration(float64(p.BaseDelay) * p.ElevatedFactor)
	}
	return p.BaseDelay
}

type hostRate struct {
	state    RateState
	limiter  *rate.Limiter
	interval time.Duration
}

// RateBook holds the [RateState] of every host a process talks to.
//
// All reads and writes go through one mutex. Clients targeting the same host share a book
// so their pacing accounts for each other.
type RateBook struct {
	mu     sync.Mutex
	pacing Pacing
	hosts  map[string]*hostRate
}

// NewRateBook creates an empty book.
func NewRateBook(p Pacing) *RateBook {
	if p.ElevatedFactor < 1 {
		p.ElevatedFactor = 1
	}
	return &RateBook{pacing: p, hosts: make(map[string]*hostRate)}
}

// State returns a copy of the state for host.
func (b *RateBook) State(host string) RateState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if h, ok := b.hosts[host]; ok {
		return h.state
	}
	return RateState{}
}

// Reserve claims the next request slot for host and returns how long the caller must wait
// before sending. Spacing is the baseline delay, or the elevated delay while headroom is low,
// counted from the later of the previous reservation and the previous [RateBook.Complete].
func (b *RateBook) Reserve(host string, now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := b.host(host)
	interval := b.pacing.interval(h.state)
	if interval <= 0 {
		return 0
	}

	if h.limiter == nil {
		h.limiter = rate.NewLimiter(rate.Every(interval), 1)
		h.interval = interval
	} else if interval != h.interval {
		h.limiter.SetLimitAt(now, rate.Every(interval))
		h.interval = interval
	}

	return h.limiter.ReserveN(now, 1).DelayFrom(now)
}

// Complete marks a response from host as finished at now, so the next [RateBook.Reserve] waits a
// full interval from this point however long the exchange took. Slots already reserved by
// concurrent callers are left in place.
func (b *RateBook) Complete(host string, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := b.host(host)
	interval := b.pacing.interval(h.state)
	if interval <= 0 {
		return
	}
	if h.limiter != nil && h.limiter.TokensAt(now) < 0 {
		return
	}

	h.limiter = rate.NewLimiter(rate.Every(interval), 1)
	h.interval = interval
	h.limiter.ReserveN(now, 1)
}

// Observe records the rate-limit headers of a response. Missing or malformed headers leave
// the previous values in place.
func (b *RateBook) Observe(host string, header http.Header, now time.Time) {
	limit, limitOK := headerInt(header, headerLimit)
	remaining, remainingOK := headerInt(header, headerRemaining)
	reset, resetOK := parseReset(header.Get(headerReset))
	if !limitOK && !remainingOK && !resetOK {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	h := b.host(host)
	if limitOK {
		h.state.Limit = limit
	}
	if remainingOK {
		h.state.Remaining = remaining
	}
	if resetOK {
		h.state.ResetAt = reset
	}
	h.state.Known = h.state.Known || (limitOK && remainingOK)
	h.state.UpdatedAt = now
}

func (b *RateBook) host(host string) *hostRate {
	h, ok := b.hosts[host]
	if !ok {
		h = &hostRate{}
		b.hosts[host] = h
	}
	return h
}

func headerInt(h http.Header, key string) (int, bool) {
	v := strings.TrimSpace(h.Get(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// parseReset accepts an RFC3339 timestamp, an HTTP date, or epoch seconds.
func parseReset(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if t, err := http.ParseTime(v); err == nil {
		return t, true
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
		return time.Unix(n, 0), true
	}
	return time.Time{}, false
}
