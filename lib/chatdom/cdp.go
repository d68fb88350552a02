package chatdom

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"chatbridge/lib/restyutil"
	"chatbridge/lib/scrapers/chat"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("chatdom")

// selectors into the hosting page. the scraping selectors proper live
// in lib/scrapers/chat; these only locate panes and controls.
const (
	selMessagePane  = "#main [data-testid=conversation-panel-messages]"
	selLoadEarlier  = "#main button[data-testid=load-earlier-messages]"
	selReadMore     = "#main [data-testid=read-more-button]"
	selChatRow      = "#pane-side [data-testid=cell-frame-container]"
	selChatTitle    = "[data-testid=cell-frame-title] span"
	selChatPreview  = "[data-testid=last-msg-status]"
	selChatTime     = "[data-testid=cell-frame-secondary] span"
	selChatUnread   = "[data-testid=icon-unread-count]"
	selSearchBox    = "[data-testid=chat-list-search]"
	selSearchClear  = "button[data-testid=x-alt]"
	selActiveHeader = "#main header [data-testid=conversation-info-header-chat-title]"
)

type CDPOptions struct {
	// host:port of the browser's devtools endpoint
	DevtoolsAddr string
	// substring of the tab url that hosts the chat app
	TargetURL string
}

// CDPPage drives a live browser tab over the Chrome DevTools Protocol.
type CDPPage struct {
	tab    context.Context
	cancel []context.CancelFunc
}

var _ Page = (*CDPPage)(nil)

type devtoolsVersion struct {
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Attach discovers the devtools websocket endpoint and binds to the
// first tab whose url contains opts.TargetURL.
func Attach(ctx context.Context, opts CDPOptions) (*CDPPage, error) {
	ctx, span := tracer.Start(ctx, "Attach")
	defer span.End()

	if opts.DevtoolsAddr == "" {
		opts.DevtoolsAddr = "127.0.0.1:9222"
	}

	client := resty.New()
	client.SetHeader("user-agent", "chatbridge/1.0")
	client.SetTimeout(time.Second * 10)

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	res, err := client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("http://%s/json/version", opts.DevtoolsAddr))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to reach devtools endpoint")
		return nil, err
	}
	var version devtoolsVersion
	err = json.Unmarshal(res.Body(), &version)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse devtools version")
		return nil, err
	}
	if version.WebSocketDebuggerURL == "" {
		return nil, fmt.Errorf("devtools endpoint %q returned no websocket url", opts.DevtoolsAddr)
	}

	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(
		ctx,
		version.WebSocketDebuggerURL,
		chromedp.NoModifyURL,
	)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	infos, err := chromedp.Targets(browserCtx)
	if err != nil {
		cancelBrowser()
		cancelAlloc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list browser targets")
		return nil, err
	}

	var targetID target.ID
	for _, info := range infos {
		if info.Type == "page" && strings.Contains(info.URL, opts.TargetURL) {
			targetID = info.TargetID
			break
		}
	}
	if targetID == "" {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("no open tab matches %q", opts.TargetURL)
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx, chromedp.WithTargetID(targetID))
	return &CDPPage{
		tab:    tabCtx,
		cancel: []context.CancelFunc{cancelTab, cancelBrowser, cancelAlloc},
	}, nil
}

func (p *CDPPage) Close() {
	for _, cancel := range p.cancel {
		cancel()
	}
}

func (p *CDPPage) eval(ctx context.Context, js string, out any) error {
	runCtx, cancel := context.WithTimeout(p.tab, time.Second*20)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(runCtx, chromedp.Evaluate(js, out))
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (p *CDPPage) Snapshot(ctx context.Context) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "Snapshot")
	defer span.End()

	js := fmt.Sprintf(`(() => {
		const pane = document.querySelector(%q);
		return pane ? pane.outerHTML : "";
	})()`, selMessagePane)

	var html string
	err := p.eval(ctx, js, &html)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read pane html")
		return nil, err
	}
	if html == "" {
		span.SetStatus(codes.Error, ErrNoScrollContainer.Error())
		return nil, ErrNoScrollContainer
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (p *CDPPage) Metrics(ctx context.Context) (ListMetrics, error) {
	js := fmt.Sprintf(`(() => {
		const pane = document.querySelector(%q);
		if (!pane) return { found: false, scrollHeight: 0, itemCount: 0 };
		return {
			found: true,
			scrollHeight: pane.scrollHeight,
			itemCount: pane.querySelectorAll("[data-id]").length,
		};
	})()`, selMessagePane)

	var out struct {
		Found        bool `json:"found"`
		ScrollHeight int  `json:"scrollHeight"`
		ItemCount    int  `json:"itemCount"`
	}
	err := p.eval(ctx, js, &out)
	if err != nil {
		return ListMetrics{}, err
	}
	if !out.Found {
		return ListMetrics{}, ErrNoScrollContainer
	}
	return ListMetrics{ScrollHeight: out.ScrollHeight, ItemCount: out.ItemCount}, nil
}

func (p *CDPPage) LoadEarlier(ctx context.Context) (bool, error) {
	ctx, span := tracer.Start(ctx, "LoadEarlier")
	defer span.End()

	js := fmt.Sprintf(`(() => {
		const button = document.querySelector(%q);
		if (!button) return false;
		button.click();
		return true;
	})()`, selLoadEarlier)

	var clicked bool
	err := p.eval(ctx, js, &clicked)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	return clicked, nil
}

func (p *CDPPage) ResetScroll(ctx context.Context) error {
	js := fmt.Sprintf(`(() => {
		const pane = document.querySelector(%q);
		if (pane) pane.scrollTop = 0;
		return true;
	})()`, selMessagePane)

	var ok bool
	return p.eval(ctx, js, &ok)
}

func (p *CDPPage) ExpandTruncated(ctx context.Context) error {
	js := fmt.Sprintf(`(() => {
		const buttons = document.querySelectorAll(%q);
		for (const b of buttons) b.click();
		return buttons.length;
	})()`, selReadMore)

	var expanded int
	return p.eval(ctx, js, &expanded)
}

func (p *CDPPage) ScrollBy(ctx context.Context, steps int) error {
	js := fmt.Sprintf(`(() => {
		const pane = document.querySelector(%q);
		if (!pane) return false;
		pane.scrollBy(0, pane.clientHeight * %d);
		return true;
	})()`, selMessagePane, steps)

	var ok bool
	err := p.eval(ctx, js, &ok)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoScrollContainer
	}
	return nil
}

func (p *CDPPage) Chats(ctx context.Context) ([]chat.ChatPreview, error) {
	ctx, span := tracer.Start(ctx, "Chats")
	defer span.End()

	js := fmt.Sprintf(`(() => {
		const rows = document.querySelectorAll(%q);
		const out = [];
		for (const row of rows) {
			const title = row.querySelector(%q);
			if (!title) continue;
			const preview = row.querySelector(%q);
			const time = row.querySelector(%q);
			const unread = row.querySelector(%q);
			out.push({
				id: title.innerText,
				name: title.innerText,
				last_message: preview ? preview.innerText : "",
				last_time: time ? time.innerText : "",
				unread_count: unread ? parseInt(unread.innerText, 10) || 0 : 0,
			});
		}
		return out;
	})()`, selChatRow, selChatTitle, selChatPreview, selChatTime, selChatUnread)

	var previews []chat.ChatPreview
	err := p.eval(ctx, js, &previews)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list chats")
		return nil, err
	}
	return previews, nil
}

func (p *CDPPage) Search(ctx context.Context, query string) error {
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return err
	}
	js := fmt.Sprintf(`(() => {
		const box = document.querySelector(%q);
		if (!box) return false;
		box.focus();
		document.execCommand("selectAll", false, null);
		document.execCommand("insertText", false, %s);
		return true;
	})()`, selSearchBox, queryJSON)

	var ok bool
	err = p.eval(ctx, js, &ok)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("chat search box not found")
	}
	return nil
}

func (p *CDPPage) ClearSearch(ctx context.Context) error {
	js := fmt.Sprintf(`(() => {
		const clear = document.querySelector(%q);
		if (clear) clear.click();
		return true;
	})()`, selSearchClear)

	var ok bool
	return p.eval(ctx, js, &ok)
}

func (p *CDPPage) OpenChat(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "OpenChat")
	defer span.End()

	idJSON, err := json.Marshal(id)
	if err != nil {
		return err
	}
	js := fmt.Sprintf(`(() => {
		const rows = document.querySelectorAll(%q);
		for (const row of rows) {
			const title = row.querySelector(%q);
			if (title && title.innerText === %s) {
				row.click();
				return true;
			}
		}
		return false;
	})()`, selChatRow, selChatTitle, idJSON)

	var clicked bool
	err = p.eval(ctx, js, &clicked)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !clicked {
		err := fmt.Errorf("no visible chat row named %q", id)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (p *CDPPage) ActiveChat(ctx context.Context) (chat.ChatPreview, bool, error) {
	js := fmt.Sprintf(`(() => {
		const header = document.querySelector(%q);
		return header ? header.innerText : "";
	})()`, selActiveHeader)

	var name string
	err := p.eval(ctx, js, &name)
	if err != nil {
		return chat.ChatPreview{}, false, err
	}
	if name == "" {
		return chat.ChatPreview{}, false, nil
	}
	return chat.ChatPreview{ID: name, Name: name}, true, nil
}
