package chat

import "time"

type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// Record is one scraped message. Records are immutable once built;
// ID is the sole deduplication key.
type Record struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	// never ambiguous: rows whose direction can't be determined are
	// dropped during extraction, not defaulted.
	Direction Direction `json:"direction"`
	// zero value means the display timestamp could not be parsed; the
	// raw string is kept so nothing is lost.
	Timestamp    time.Time `json:"timestamp"`
	RawTimestamp string    `json:"raw_timestamp,omitempty"`
	Author       string    `json:"author,omitempty"`
	HasMedia     bool      `json:"has_media"`
}

func (r Record) TimeKnown() bool {
	return !r.Timestamp.IsZero()
}

// ChatPreview is the metadata shown for one top-level conversation in
// the sidebar list.
type ChatPreview struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	LastMessage string `json:"last_message,omitempty"`
	LastTime    string `json:"last_time,omitempty"`
	UnreadCount int    `json:"unread_count"`
}
