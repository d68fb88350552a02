package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"chatbridge/lib/scrapers/chat"
	"chatbridge/lib/textutil"

	"github.com/antzucaro/matchr"
)

type methodFunc func(ctx context.Context, params json.RawMessage) (any, error)

func (b *Bridge) registerMethods() {
	b.methods = map[string]methodFunc{
		"status":        b.handleStatus,
		"listChats":     b.handleListChats,
		"searchChats":   b.handleSearchChats,
		"clearSearch":   b.handleClearSearch,
		"openChat":      b.handleOpenChat,
		"getActiveChat": b.handleGetActiveChat,
		"readMessages":  b.handleReadMessages,
		"pageBack":      b.handlePageBack,
		"pageForward":   b.handlePageForward,
		"scrapeAll":     b.handleScrapeAll,
		"stopScrape":    b.handleStopScrape,
	}
}

func decodeParams[T any](params json.RawMessage, out *T) error {
	if len(params) == 0 {
		return nil
	}
	err := json.Unmarshal(params, out)
	if err != nil {
		return fmt.Errorf("bad params: %w", err)
	}
	return nil
}

type statusResult struct {
	Connected   bool `json:"connected"`
	ContextOpen bool `json:"contextOpen"`
}

func (b *Bridge) handleStatus(ctx context.Context, _ json.RawMessage) (any, error) {
	_, open, err := b.page.ActiveChat(ctx)
	if err != nil {
		open = false
	}
	return statusResult{
		// a response implies the transport is up
		Connected:   true,
		ContextOpen: open,
	}, nil
}

const chatCacheKey = "previews"

func (b *Bridge) chats(ctx context.Context) ([]chat.ChatPreview, error) {
	cached, hit := b.chatCache.Get(chatCacheKey)
	if hit {
		return cached, nil
	}
	previews, err := b.page.Chats(ctx)
	if err != nil {
		return nil, err
	}
	b.chatCache.Add(chatCacheKey, previews)
	return previews, nil
}

func (b *Bridge) handleListChats(ctx context.Context, _ json.RawMessage) (any, error) {
	previews, err := b.chats(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"chats": previews, "count": len(previews)}, nil
}

func (b *Bridge) handleSearchChats(ctx context.Context, params json.RawMessage) (any, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := decodeParams(params, &args); err != nil {
		return nil, err
	}
	if args.Query == "" {
		return nil, fmt.Errorf("search query must not be empty")
	}

	if err := b.page.Search(ctx, args.Query); err != nil {
		return nil, err
	}
	// the sidebar now shows filtered rows, cached previews are stale
	b.chatCache.Remove(chatCacheKey)
	return map[string]any{"query": args.Query}, nil
}

func (b *Bridge) handleClearSearch(ctx context.Context, _ json.RawMessage) (any, error) {
	if err := b.page.ClearSearch(ctx); err != nil {
		return nil, err
	}
	b.chatCache.Remove(chatCacheKey)
	return map[string]any{"cleared": true}, nil
}

func (b *Bridge) handleOpenChat(ctx context.Context, params json.RawMessage) (any, error) {
	var args struct {
		Name string `json:"name"`
	}
	if err := decodeParams(params, &args); err != nil {
		return nil, err
	}
	if args.Name == "" {
		return nil, fmt.Errorf("chat name must not be empty")
	}

	previews, err := b.chats(ctx)
	if err != nil {
		return nil, err
	}

	// first case-insensitive substring match wins
	query := strings.ToLower(args.Name)
	for _, preview := range previews {
		if strings.Contains(strings.ToLower(preview.Name), query) {
			err := b.page.OpenChat(ctx, preview.ID)
			if err != nil {
				return nil, err
			}
			b.chatCache.Remove(chatCacheKey)
			return map[string]any{"opened": preview.Name}, nil
		}
	}

	var mostSimilarity float64
	var mostSimilar string
	for _, preview := range previews {
		similarity := matchr.JaroWinkler(
			textutil.NormalizeName(args.Name),
			textutil.NormalizeName(preview.Name),
			false,
		)
		if similarity > mostSimilarity {
			mostSimilarity = similarity
			mostSimilar = preview.Name
		}
	}
	if mostSimilar != "" {
		return nil, fmt.Errorf("no chat matching %q, closest is %q", args.Name, mostSimilar)
	}
	return nil, fmt.Errorf("no chat matching %q", args.Name)
}

func (b *Bridge) handleGetActiveChat(ctx context.Context, _ json.RawMessage) (any, error) {
	preview, open, err := b.page.ActiveChat(ctx)
	if err != nil {
		return nil, err
	}
	if !open {
		return map[string]any{"open": false}, nil
	}
	return map[string]any{"open": true, "chat": preview}, nil
}

func (b *Bridge) handleReadMessages(ctx context.Context, params json.RawMessage) (any, error) {
	var args struct {
		Direction DirectionFilter `json:"direction"`
	}
	if err := decodeParams(params, &args); err != nil {
		return nil, err
	}

	doc, err := b.page.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	records := chat.ExtractVisible(ctx, doc)

	if args.Direction != "" && args.Direction != FilterAll {
		filtered := records[:0]
		for _, record := range records {
			if string(record.Direction) == string(args.Direction) {
				filtered = append(filtered, record)
			}
		}
		records = filtered
	}
	return map[string]any{"messages": records, "count": len(records)}, nil
}

type pageArgs struct {
	Steps int `json:"steps"`
}

func (a pageArgs) steps() int {
	if a.Steps <= 0 {
		return 1
	}
	return a.Steps
}

func (b *Bridge) handlePageBack(ctx context.Context, params json.RawMessage) (any, error) {
	var args pageArgs
	if err := decodeParams(params, &args); err != nil {
		return nil, err
	}
	err := b.page.ScrollBy(ctx, -args.steps())
	if err != nil {
		return nil, err
	}
	return map[string]any{"steps": args.steps()}, nil
}

func (b *Bridge) handlePageForward(ctx context.Context, params json.RawMessage) (any, error) {
	var args pageArgs
	if err := decodeParams(params, &args); err != nil {
		return nil, err
	}
	err := b.page.ScrollBy(ctx, args.steps())
	if err != nil {
		return nil, err
	}
	return map[string]any{"steps": args.steps()}, nil
}

// handleScrapeAll runs a full history scrape with the caller's
// options. It must not corrupt an independently installed session:
// the current handle is swapped out for a fresh one and swapped back
// once the run finishes, whatever its outcome.
func (b *Bridge) handleScrapeAll(ctx context.Context, params json.RawMessage) (any, error) {
	opts := DefaultScrapeOptions()
	if err := decodeParams(params, &opts); err != nil {
		return nil, err
	}

	fresh := NewSession(opts)
	previous := b.swapSession(fresh)
	defer b.swapSession(previous)

	err := b.engine.Run(ctx, fresh)
	if err != nil {
		return nil, err
	}

	records := fresh.Result()
	steps, _ := fresh.Progress()
	return map[string]any{
		"session_id": fresh.ID,
		"messages":   records,
		"count":      len(records),
		"steps":      steps,
	}, nil
}

func (b *Bridge) handleStopScrape(_ context.Context, _ json.RawMessage) (any, error) {
	session := b.CurrentSession()
	if session == nil || session.State() != StateRunning {
		return map[string]any{"stopped": false}, nil
	}
	session.Stop()
	return map[string]any{"stopped": true}, nil
}
