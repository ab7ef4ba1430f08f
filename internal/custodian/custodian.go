// Package custodian keeps a per-campaign history of extracted
// Snapshots and broadcasts each new one to subscribers, grounded on
// original_source/backend/src/model/custodian.rs's ModelCustodian (a
// single goroutine is the only writer of the history, fed by a channel
// carrying Data/Exit messages; readers take a read lock against it) and original_source/backend/src/broadcaster/prod.rs
// for the subscriber-fanout idea (a slice of per-client channels,
// pruned of any that can't keep up).
package custodian

import (
	"sort"
	"sync"
	"time"

	"github.com/standardbeagle/clausewitz/internal/config"
	"github.com/standardbeagle/clausewitz/internal/debug"
	"github.com/standardbeagle/clausewitz/internal/extractor"
	"github.com/standardbeagle/clausewitz/pkg/pathutil"
)

// Snapshotter is satisfied trivially by Custodian's in-memory history
// (Save always succeeds); a future on-disk store could implement the
// same interface without its callers changing, per spec.md §6's
// "optional persistent store" — no concrete backend exists here.
type Snapshotter interface {
	Save(campaign string, snap extractor.Snapshot) error
}

// CampaignSummary is a derived, lightweight view of one campaign's
// history for the HTTP surface, carrying what
// original_source's CampaignDto/SaveGameDto add beyond the core
// Snapshot: a last-write timestamp and the empire name list.
type CampaignSummary struct {
	Name          string
	LastIngested  time.Time
	SourcePath    string
	EmpireNames   []string
	SnapshotCount int
}

type msgKind int

const (
	msgData msgKind = iota
	msgExit
)

type msg struct {
	kind     msgKind
	campaign string
	snap     extractor.Snapshot
	path     string
}

// Custodian owns per-campaign Snapshot history behind a single
// channel-fed goroutine and fans out every newly ingested Snapshot to
// subscribers.
type Custodian struct {
	maxPerCampaign int
	watchRoot      string

	mu           sync.RWMutex
	history      map[string][]extractor.Snapshot
	lastIngested map[string]time.Time
	lastPath     map[string]string

	msgCh  chan msg
	doneCh chan struct{}

	subMu sync.Mutex
	subs  []chan extractor.Snapshot
}

// New creates a Custodian and starts its owning goroutine.
// cfg.History.MaxSnapshotsPerCampaign bounds how much history each
// campaign retains; the oldest Snapshot is dropped once the bound is
// exceeded. cfg.Watch.Root is used only to render each campaign's
// source path relative to the watched directory for CampaignSummary.
func New(cfg *config.Config) *Custodian {
	max := cfg.History.MaxSnapshotsPerCampaign
	if max <= 0 {
		max = 1
	}
	c := &Custodian{
		maxPerCampaign: max,
		watchRoot:      cfg.Watch.Root,
		history:        make(map[string][]extractor.Snapshot),
		lastIngested:   make(map[string]time.Time),
		lastPath:       make(map[string]string),
		msgCh:          make(chan msg, cfg.Ingest.QueueSize),
		doneCh:         make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *Custodian) run() {
	defer close(c.doneCh)
	for m := range c.msgCh {
		if m.kind == msgExit {
			return
		}
		c.append(m.campaign, m.snap, m.path)
		c.broadcast(m.snap)
	}
}

func (c *Custodian) append(campaign string, snap extractor.Snapshot, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hist := append(c.history[campaign], snap)
	if over := len(hist) - c.maxPerCampaign; over > 0 {
		hist = hist[over:]
	}
	c.history[campaign] = hist
	c.lastIngested[campaign] = time.Now()
	if path != "" {
		c.lastPath[campaign] = path
	}
}

func (c *Custodian) broadcast(snap extractor.Snapshot) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	live := c.subs[:0]
	for _, sub := range c.subs {
		select {
		case sub <- snap:
			live = append(live, sub)
		default:
			debug.Log("CUSTODIAN", "dropping slow subscriber\n")
			close(sub)
		}
	}
	c.subs = live
}

// Ingest is an ingest.Sink: it queues snap for the owning goroutine to
// append to campaign history and broadcast. Safe to call
// concurrently.
func (c *Custodian) Ingest(snap extractor.Snapshot, path string) {
	select {
	case c.msgCh <- msg{kind: msgData, campaign: snap.CampaignName, snap: snap, path: path}:
	case <-c.doneCh:
	}
}

// Save implements Snapshotter by routing through the same path as
// Ingest.
func (c *Custodian) Save(campaign string, snap extractor.Snapshot) error {
	c.Ingest(snap, "")
	return nil
}

// Close signals the owning goroutine to exit and waits for it.
func (c *Custodian) Close() {
	select {
	case c.msgCh <- msg{kind: msgExit}:
	case <-c.doneCh:
	}
	<-c.doneCh

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, sub := range c.subs {
		close(sub)
	}
	c.subs = nil
}

// History returns a copy of campaign's retained Snapshots, oldest
// first.
func (c *Custodian) History(campaign string) []extractor.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hist := c.history[campaign]
	out := make([]extractor.Snapshot, len(hist))
	copy(out, hist)
	return out
}

// Latest returns campaign's most recently ingested Snapshot, if any.
func (c *Custodian) Latest(campaign string) (extractor.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hist := c.history[campaign]
	if len(hist) == 0 {
		return extractor.Snapshot{}, false
	}
	return hist[len(hist)-1], true
}

// Campaigns lists every campaign the Custodian has ingested at least
// one Snapshot for, sorted by name.
func (c *Custodian) Campaigns() []CampaignSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]CampaignSummary, 0, len(c.history))
	for name, hist := range c.history {
		if len(hist) == 0 {
			continue
		}
		latest := hist[len(hist)-1]
		names := make([]string, len(latest.Empires))
		for i, e := range latest.Empires {
			names[i] = e.Name
		}
		out = append(out, CampaignSummary{
			Name:          name,
			LastIngested:  c.lastIngested[name],
			SourcePath:    pathutil.ToRelative(c.lastPath[name], c.watchRoot),
			EmpireNames:   names,
			SnapshotCount: len(hist),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Subscribe returns a channel that receives every Snapshot ingested
// from this point on. The channel is closed (and dropped) if the
// subscriber falls behind, or when Close is called.
func (c *Custodian) Subscribe() <-chan extractor.Snapshot {
	ch := make(chan extractor.Snapshot, 16)
	c.subMu.Lock()
	c.subs = append(c.subs, ch)
	c.subMu.Unlock()
	return ch
}
