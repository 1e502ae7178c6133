package app

import (
	"container/list"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/rulehub/internal/domain"
)

type GuardConfig struct {
	Capacity     int
	Shards       int
	TTL          time.Duration
	MinInterval  time.Duration
	ChangeWindow time.Duration
	MaxChanges   int
}

func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Capacity:     10_000,
		Shards:       16,
		TTL:          24 * time.Hour,
		MinInterval:  time.Second,
		ChangeWindow: time.Minute,
		MaxChanges:   3,
	}
}

// VoteGuard tracks recent voting behaviour per (fingerprint, item) and
// rejects votes that come too fast or flip direction too often.
//
// Records live in a bounded LRU split into shards. A shard's mutex covers the
// whole read-modify-write of an evaluation, so two votes for the same key are
// serialised while unrelated keys proceed in parallel. State is process-local
// and lost on restart or eviction.
type VoteGuard struct {
	cfg      GuardConfig
	clock    clockwork.Clock
	observer GuardObserver
	shards   []*guardShard
}

type guardShard struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
	seq      uint64
}

type guardEntry struct {
	key       string
	record    domain.VoteRecord
	expiresAt time.Time
	version   uint64
}

// Evaluation is the guard's verdict on one vote.
// An allowed evaluation is a reservation: call Rollback if the vote is not
// applied downstream.
type Evaluation struct {
	Allowed   bool
	Reason    string
	Previous  domain.Vote
	Resulting domain.Vote

	key     string
	shard   *guardShard
	before  *guardEntry // nil when the record was created by this evaluation
	version uint64
}

// NewVoteGuard builds a guard. observer may be nil.
func NewVoteGuard(cfg GuardConfig, clock clockwork.Clock, observer GuardObserver) *VoteGuard {
	if observer == nil {
		observer = NoopObserver{}
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.Shards < 1 {
		cfg.Shards = 1
	}
	if cfg.Shards > cfg.Capacity {
		cfg.Shards = cfg.Capacity
	}

	g := &VoteGuard{cfg: cfg, clock: clock, observer: observer}
	g.shards = make([]*guardShard, cfg.Shards)

	base, extra := cfg.Capacity/cfg.Shards, cfg.Capacity%cfg.Shards
	for i := range g.shards {
		capacity := base
		if i < extra {
			capacity++
		}
		g.shards[i] = &guardShard{
			capacity: capacity,
			order:    list.New(),
			entries:  make(map[string]*list.Element, capacity),
		}
	}
	return g
}

func guardKey(fingerprint, itemID string) string {
	return fingerprint + "\x00" + itemID
}

func (g *VoteGuard) shardFor(key string) *guardShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return g.shards[h.Sum32()%uint32(len(g.shards))]
}

// Evaluate screens a vote and, if allowed, records it.
func (g *VoteGuard) Evaluate(fingerprint, itemID string, requested domain.Vote) Evaluation {
	key := guardKey(fingerprint, itemID)
	sh := g.shardFor(key)
	now := g.clock.Now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	el, ok := sh.entries[key]
	if ok && !now.Before(el.Value.(*guardEntry).expiresAt) {
		sh.remove(el)
		g.observer.ObserveGuardEvictions("expired", 1)
		ok = false
	}

	if !ok {
		resulting := domain.ResultingVote(domain.VoteNone, requested)
		entry := &guardEntry{
			key: key,
			record: domain.VoteRecord{
				LastVote:          resulting,
				LastVoteTimestamp: now,
				TotalVotes:        1,
			},
			expiresAt: now.Add(g.cfg.TTL),
			version:   sh.nextVersion(),
		}
		sh.entries[key] = sh.order.PushFront(entry)
		if evicted := sh.evictOverflow(); evicted > 0 {
			g.observer.ObserveGuardEvictions("capacity", evicted)
		}
		g.observer.ObserveGuardDecision(OutcomeAllowed)

		return Evaluation{
			Allowed:   true,
			Previous:  domain.VoteNone,
			Resulting: resulting,
			key:       key,
			shard:     sh,
			version:   entry.version,
		}
	}

	entry := el.Value.(*guardEntry)
	rec := entry.record
	elapsed := now.Sub(rec.LastVoteTimestamp)

	if elapsed < g.cfg.MinInterval {
		g.observer.ObserveGuardDecision(OutcomeDenied)
		return Evaluation{Reason: domain.ReasonTooSoon, Previous: rec.LastVote}
	}

	before := *entry

	if elapsed < g.cfg.ChangeWindow {
		if requested != rec.LastVote {
			rec.RapidChangeCount++
			if rec.RapidChangeCount > g.cfg.MaxChanges {
				// The increment sticks so that further flips stay rejected
				// until the change window lapses.
				entry.record.RapidChangeCount = rec.RapidChangeCount
				entry.version = sh.nextVersion()
				sh.order.MoveToFront(el)
				g.observer.ObserveGuardDecision(OutcomeDenied)
				return Evaluation{Reason: domain.ReasonTooManyChanges, Previous: rec.LastVote}
			}
		}
	} else {
		rec.RapidChangeCount = 0
	}

	previous := rec.LastVote
	rec.LastVote = domain.ResultingVote(previous, requested)
	rec.LastVoteTimestamp = now
	rec.TotalVotes++

	entry.record = rec
	entry.expiresAt = now.Add(g.cfg.TTL)
	entry.version = sh.nextVersion()
	sh.order.MoveToFront(el)
	g.observer.ObserveGuardDecision(OutcomeAllowed)

	return Evaluation{
		Allowed:   true,
		Previous:  previous,
		Resulting: rec.LastVote,
		key:       key,
		shard:     sh,
		before:    &before,
		version:   entry.version,
	}
}

// Rollback undoes an allowed evaluation whose vote was never applied.
// It is a no-op when a later evaluation has already touched the record.
func (g *VoteGuard) Rollback(ev Evaluation) {
	if !ev.Allowed || ev.shard == nil {
		return
	}
	sh := ev.shard

	sh.mu.Lock()
	defer sh.mu.Unlock()

	el, ok := sh.entries[ev.key]
	if !ok {
		return
	}
	entry := el.Value.(*guardEntry)
	if entry.version != ev.version {
		slog.Debug("Guard rollback skipped, record superseded", "version", ev.version, "current", entry.version)
		return
	}

	if ev.before == nil {
		sh.remove(el)
		return
	}
	entry.record = ev.before.record
	entry.expiresAt = ev.before.expiresAt
	entry.version = sh.nextVersion()
}

// CurrentVote reports the vote the guard believes fingerprint holds on itemID.
// It does not refresh LRU position.
func (g *VoteGuard) CurrentVote(fingerprint, itemID string) domain.Vote {
	rec, ok := g.Record(fingerprint, itemID)
	if !ok {
		return domain.VoteNone
	}
	return rec.LastVote
}

// Record returns a copy of the live record for (fingerprint, itemID).
func (g *VoteGuard) Record(fingerprint, itemID string) (domain.VoteRecord, bool) {
	key := guardKey(fingerprint, itemID)
	sh := g.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	el, ok := sh.entries[key]
	if !ok {
		return domain.VoteRecord{}, false
	}
	entry := el.Value.(*guardEntry)
	if !g.clock.Now().Before(entry.expiresAt) {
		return domain.VoteRecord{}, false
	}
	return entry.record, true
}

// Len returns the number of stored records, including expired ones not yet evicted.
func (g *VoteGuard) Len() int {
	n := 0
	for _, sh := range g.shards {
		sh.mu.Lock()
		n += sh.order.Len()
		sh.mu.Unlock()
	}
	return n
}

// EvictExpired drops every expired record and returns how many were removed.
func (g *VoteGuard) EvictExpired() int {
	now := g.clock.Now()
	evicted := 0

	for _, sh := range g.shards {
		sh.mu.Lock()
		for el := sh.order.Back(); el != nil; {
			prev := el.Prev()
			if !now.Before(el.Value.(*guardEntry).expiresAt) {
				sh.remove(el)
				evicted++
			}
			el = prev
		}
		sh.mu.Unlock()
	}

	if evicted > 0 {
		g.observer.ObserveGuardEvictions("expired", evicted)
	}
	return evicted
}

// StartEvictionTimer periodically evicts expired records.
// Returns a stop function that must be called to release the goroutine.
func (g *VoteGuard) StartEvictionTimer(interval time.Duration) func() {
	ticker := g.clock.NewTicker(interval)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-ticker.Chan():
				if evicted := g.EvictExpired(); evicted > 0 {
					slog.Debug("Evicted expired vote records", "count", evicted)
				}
				g.observer.SetGuardEntries(g.Len())
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
	}
}

func (sh *guardShard) nextVersion() uint64 {
	sh.seq++
	return sh.seq
}

func (sh *guardShard) remove(el *list.Element) {
	sh.order.Remove(el)
	delete(sh.entries, el.Value.(*guardEntry).key)
}

func (sh *guardShard) evictOverflow() int {
	evicted := 0
	for sh.order.Len() > sh.capacity {
		sh.remove(sh.order.Back())
		evicted++
	}
	return evicted
}
