// Package battlelog implements the append-only battle log of spec §4.10:
// sequentially indexed entries with a per-entry visibility mask, rendered
// to the `|`-delimited wire format of spec §6.
package battlelog

import (
	"sort"
	"strings"
	"sync"
)

// Visibility controls which sides may see a Log entry.
type Visibility struct {
	public    bool
	side      int
	hasSide   bool
	mon       string
	hasMon    bool
}

// Public is visible to every side.
var Public = Visibility{public: true}

// Side restricts visibility to side i.
func Side(i int) Visibility { return Visibility{side: i, hasSide: true} }

// Private restricts visibility to whatever owns mon (a private per-mon
// detail, e.g. exact HP percentages an opposing side should not see).
func Private(mon string) Visibility { return Visibility{mon: mon, hasMon: true} }

// VisibleTo reports whether an entry with this Visibility is visible to
// the given side index (mon-private entries are never visible through the
// side filter; callers wanting those use a dedicated per-mon view).
func (v Visibility) VisibleTo(side int) bool {
	if v.public {
		return true
	}
	if v.hasSide {
		return v.side == side
	}
	return false
}

// Entry is one ordered, indexed log record.
type Entry struct {
	Index      int
	Tag        string
	Parts      []KV
	Visibility Visibility

	// CorrelationID ties every entry in a Log back to the owning battle
	// for external consumers (telemetry spans, replay storage). It is not
	// part of the wire format Format() renders, since spec's log grammar
	// is per-entry only.
	CorrelationID string
}

// KV is one key/value pair of an Entry, kept as an ordered slice (not a
// map) so wire-format rendering never depends on map iteration order.
type KV struct {
	Key   string
	Value string
}

// Format renders the entry as `tag|k1:v1|k2:v2|...`, per spec §6.
func (e Entry) Format() string {
	var b strings.Builder
	b.WriteString(e.Tag)
	for _, kv := range e.Parts {
		b.WriteByte('|')
		b.WriteString(kv.Key)
		b.WriteByte(':')
		b.WriteString(kv.Value)
	}
	return b.String()
}

// Log is the append-only, strictly-increasing-index log for one Battle.
type Log struct {
	mu            sync.Mutex
	entries       []Entry
	subs          []chan Entry
	correlationID string
}

// New creates an empty Log with no correlation ID.
func New() *Log { return &Log{} }

// NewWithCorrelationID creates an empty Log that stamps every Entry with
// id, so external consumers (telemetry spans, replay storage) can tie a
// batch of entries back to one battle without it leaking into the wire
// format.
func NewWithCorrelationID(id string) *Log { return &Log{correlationID: id} }

// CorrelationID returns the Log's correlation ID, if any.
func (l *Log) CorrelationID() string { return l.correlationID }

// Append adds a new entry with the next sequential index and fans it out
// to any active Subscribe channels. Once appended, an entry at index i is
// never rewritten (spec §3 invariant).
func (l *Log) Append(tag string, vis Visibility, parts ...KV) Entry {
	l.mu.Lock()
	entry := Entry{Index: len(l.entries), Tag: tag, Parts: parts, Visibility: vis, CorrelationID: l.correlationID}
	l.entries = append(l.entries, entry)
	subs := append([]chan Entry(nil), l.subs...)
	l.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- entry:
		default:
			// a slow subscriber never blocks the engine; it simply
			// misses entries produced while its buffer was full.
		}
	}
	return entry
}

// FullLog returns every entry visible to side, rendered to wire format, in
// index order. side < 0 returns the full unfiltered log (an operator / test
// view).
func (l *Log) FullLog(side int) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		if side < 0 || e.Visibility.VisibleTo(side) {
			out = append(out, e.Format())
		}
	}
	return out
}

// LastEntry returns the most recent entry visible to side, or (_, false)
// if none exists.
func (l *Log) LastEntry(side int) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		if side < 0 || l.entries[i].Visibility.VisibleTo(side) {
			return l.entries[i], true
		}
	}
	return Entry{}, false
}

// Subscribe returns a channel that receives every entry visible to side as
// it is produced, plus a cancel func to stop receiving.
func (l *Log) Subscribe(side int) (<-chan Entry, func()) {
	raw := make(chan Entry, 64)
	filtered := make(chan Entry, 64)

	l.mu.Lock()
	l.subs = append(l.subs, raw)
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for {
			select {
			case e, ok := <-raw:
				if !ok {
					close(filtered)
					return
				}
				if side < 0 || e.Visibility.VisibleTo(side) {
					filtered <- e
				}
			case <-done:
				close(filtered)
				return
			}
		}
	}()

	cancel := func() {
		l.mu.Lock()
		for i, ch := range l.subs {
			if ch == raw {
				l.subs = append(l.subs[:i], l.subs[i+1:]...)
				break
			}
		}
		l.mu.Unlock()
		close(done)
	}
	return filtered, cancel
}

// Len reports the number of entries appended so far.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// ParseEntry parses a wire-format line back into tag and ordered KVs, for
// test assertions and structured consumers (spec §6: "structured consumers
// parse by splitting on `|` then `:`").
func ParseEntry(line string) (tag string, parts []KV) {
	segments := strings.Split(line, "|")
	if len(segments) == 0 {
		return "", nil
	}
	tag = segments[0]
	for _, seg := range segments[1:] {
		k, v, ok := strings.Cut(seg, ":")
		if !ok {
			parts = append(parts, KV{Key: seg})
			continue
		}
		parts = append(parts, KV{Key: k, Value: v})
	}
	return tag, parts
}

// FilterTag returns only the lines whose tag matches any of tags, in
// order, useful for scenario assertions that only care about a subset of
// the log (e.g. ignoring `time` noise entries per spec §4.10).
func FilterTag(lines []string, tags ...string) []string {
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		tag, _ := ParseEntry(line)
		if want[tag] {
			out = append(out, line)
		}
	}
	return out
}

// ExcludeTag returns every line whose tag is not in tags, preserving
// order; the standard way tests strip the randomized `time` entries.
func ExcludeTag(lines []string, tags ...string) []string {
	exclude := make(map[string]bool, len(tags))
	for _, t := range tags {
		exclude[t] = true
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		tag, _ := ParseEntry(line)
		if !exclude[tag] {
			out = append(out, line)
		}
	}
	return out
}

// sortKeys is a small helper used by callers building KV slices from maps
// where deterministic key order matters (e.g. rendering effect-state
// dumps); kept here since Entry.Format depends on callers pre-sorting.
func sortKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KVsFromMap renders m into a deterministically ordered (sorted by key) KV
// slice, for callers whose source data is a map but whose log output must
// not depend on map iteration order.
func KVsFromMap(m map[string]string) []KV {
	keys := sortKeys(m)
	out := make([]KV, 0, len(keys))
	for _, k := range keys {
		out = append(out, KV{Key: k, Value: m[k]})
	}
	return out
}
