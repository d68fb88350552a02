package chatdom

import (
	"context"
	"fmt"

	"chatbridge/lib/scrapers/chat"

	"github.com/PuerkitoBio/goquery"
)

// the message pane is missing entirely, e.g. no conversation is open.
// sessions treat this as a fatal precondition, not something to retry.
var ErrNoScrollContainer = fmt.Errorf("message pane scroll container not found")

// ListMetrics describes the observable size of the virtualized message
// list at one instant. Growth in either field counts as pagination
// progress.
type ListMetrics struct {
	ScrollHeight int `json:"scrollHeight"`
	ItemCount    int `json:"itemCount"`
}

// Page is the live document the scraper drives. The engine and the rpc
// bridge only ever talk to this interface; the production
// implementation sits on the Chrome DevTools Protocol, tests use an
// in-memory fake.
type Page interface {
	// Snapshot returns a parsed copy of the message pane as it is
	// currently rendered. Only the visible window of the virtualized
	// list is present in it.
	Snapshot(ctx context.Context) (*goquery.Document, error)
	Metrics(ctx context.Context) (ListMetrics, error)
	// LoadEarlier activates the load-more affordance when present and
	// reports whether it was found. A missing affordance is not an
	// error.
	LoadEarlier(ctx context.Context) (bool, error)
	ResetScroll(ctx context.Context) error
	// ExpandTruncated activates every visible "read more" control so
	// truncated bodies are captured in full. Best-effort.
	ExpandTruncated(ctx context.Context) error
	// ScrollBy pages the list by the given number of steps, negative
	// for history-ward.
	ScrollBy(ctx context.Context, steps int) error

	Chats(ctx context.Context) ([]chat.ChatPreview, error)
	Search(ctx context.Context, query string) error
	ClearSearch(ctx context.Context) error
	OpenChat(ctx context.Context, id string) error
	// ActiveChat reports the currently focused conversation; the bool
	// is false when no conversation is open.
	ActiveChat(ctx context.Context) (chat.ChatPreview, bool, error)
}
