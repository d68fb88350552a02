package bridge

import (
	"sort"

	"chatbridge/lib/scrapers/chat"
)

type DirectionFilter string

const (
	FilterAll      DirectionFilter = "all"
	FilterIncoming DirectionFilter = "incoming"
	FilterOutgoing DirectionFilter = "outgoing"
)

// ScrapeOptions are the caller-supplied filter parameters for one
// session. Unmarshal rpc params on top of DefaultScrapeOptions so
// absent fields keep their defaults.
type ScrapeOptions struct {
	Direction    DirectionFilter `json:"direction"`
	MinLength    int             `json:"min_length"`
	IncludeMedia bool            `json:"include_media"`
	IncludeText  bool            `json:"include_text"`
	MaxSteps     int             `json:"max_steps"`
}

const DefaultMaxSteps = 200

func DefaultScrapeOptions() ScrapeOptions {
	return ScrapeOptions{
		Direction:    FilterAll,
		MinLength:    0,
		IncludeMedia: true,
		IncludeText:  true,
		MaxSteps:     DefaultMaxSteps,
	}
}

func (o ScrapeOptions) normalized() ScrapeOptions {
	if o.Direction == "" {
		o.Direction = FilterAll
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = DefaultMaxSteps
	}
	return o
}

func (o ScrapeOptions) allows(r chat.Record) bool {
	switch o.Direction {
	case FilterIncoming:
		if r.Direction != chat.DirectionIncoming {
			return false
		}
	case FilterOutgoing:
		if r.Direction != chat.DirectionOutgoing {
			return false
		}
	}
	if r.HasMedia && !o.IncludeMedia {
		return false
	}
	if !r.HasMedia && !o.IncludeText {
		return false
	}
	return len(r.Text) >= o.MinLength
}

// store owns the collected records of one session. Nothing else
// mutates them; merging the same batch twice is a no-op the second
// time.
type store struct {
	opts    ScrapeOptions
	seen    map[string]struct{}
	records []chat.Record
}

func newStore(opts ScrapeOptions) *store {
	return &store{
		opts: opts,
		seen: map[string]struct{}{},
	}
}

// merge adds every candidate that is unseen and passes the filter
// predicate, returning how many were newly added.
func (s *store) merge(candidates []chat.Record) int {
	added := 0
	for _, candidate := range candidates {
		if _, dup := s.seen[candidate.ID]; dup {
			continue
		}
		if !s.opts.allows(candidate) {
			continue
		}
		s.seen[candidate.ID] = struct{}{}
		s.records = append(s.records, candidate)
		added++
	}
	return added
}

func (s *store) size() int {
	return len(s.records)
}

// sortByTime orders records by parsed timestamp ascending. Records
// with an unknown timestamp carry the zero-time sentinel key, so the
// stable sort keeps their relative insertion order.
func (s *store) sortByTime() {
	sort.SliceStable(s.records, func(i, j int) bool {
		return s.records[i].Timestamp.Before(s.records[j].Timestamp)
	})
}

func (s *store) snapshot() []chat.Record {
	out := make([]chat.Record, len(s.records))
	copy(out, s.records)
	return out
}
