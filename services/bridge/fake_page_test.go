package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"chatbridge/lib/chatdom"
	"chatbridge/lib/scrapers/chat"

	"github.com/PuerkitoBio/goquery"
)

type fakeMsg struct {
	id       string
	text     string
	meta     string
	incoming bool
	media    bool
}

func outMsg(id, text string) fakeMsg {
	return fakeMsg{id: "true_chat_" + id, text: text}
}

func inMsg(id, text string) fakeMsg {
	return fakeMsg{id: "false_chat_" + id, text: text, incoming: true}
}

func (m fakeMsg) html() string {
	class := "message-out"
	if m.incoming {
		class = "message-in"
	}
	media := ""
	if m.media {
		media = `<img alt="" src="blob:fake">`
	}
	return fmt.Sprintf(
		`<div data-id=%q class=%q data-pre-plain-text=%q>`+
			`<span class="selectable-text">%s</span>%s</div>`,
		m.id, class, m.meta, m.text, media,
	)
}

// fakePage simulates a virtualized list: states[idx] is the full
// visible window, each successful LoadEarlier activation advances to
// the next state (re-renders may reorder or duplicate items).
type fakePage struct {
	mu     sync.Mutex
	states [][]fakeMsg
	idx    int
	noPane bool

	loadClicks int
	expands    int
	scrolled   []int
	searches   []string
	cleared    int
	opened     []string

	chats  []chat.ChatPreview
	active string
}

var _ chatdom.Page = (*fakePage)(nil)

func (p *fakePage) visible() []fakeMsg {
	if len(p.states) == 0 {
		return nil
	}
	return p.states[p.idx]
}

func (p *fakePage) Snapshot(_ context.Context) (*goquery.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.noPane {
		return nil, chatdom.ErrNoScrollContainer
	}
	var rows strings.Builder
	rows.WriteString(`<div id="pane">`)
	for _, msg := range p.visible() {
		rows.WriteString(msg.html())
	}
	rows.WriteString(`</div>`)
	return goquery.NewDocumentFromReader(strings.NewReader(rows.String()))
}

func (p *fakePage) Metrics(_ context.Context) (chatdom.ListMetrics, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.noPane {
		return chatdom.ListMetrics{}, chatdom.ErrNoScrollContainer
	}
	count := len(p.visible())
	return chatdom.ListMetrics{
		ScrollHeight: count * 100,
		ItemCount:    count,
	}, nil
}

func (p *fakePage) LoadEarlier(_ context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadClicks++
	if p.idx < len(p.states)-1 {
		p.idx++
		return true, nil
	}
	return false, nil
}

func (p *fakePage) ResetScroll(_ context.Context) error {
	return nil
}

func (p *fakePage) ExpandTruncated(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expands++
	return nil
}

func (p *fakePage) ScrollBy(_ context.Context, steps int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrolled = append(p.scrolled, steps)
	return nil
}

func (p *fakePage) Chats(_ context.Context) ([]chat.ChatPreview, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chats, nil
}

func (p *fakePage) Search(_ context.Context, query string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searches = append(p.searches, query)
	return nil
}

func (p *fakePage) ClearSearch(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared++
	return nil
}

func (p *fakePage) OpenChat(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened = append(p.opened, id)
	p.active = id
	return nil
}

func (p *fakePage) ActiveChat(_ context.Context) (chat.ChatPreview, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == "" {
		return chat.ChatPreview{}, false, nil
	}
	return chat.ChatPreview{ID: p.active, Name: p.active}, true, nil
}
