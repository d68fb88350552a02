package bridge

import (
	"context"
	"encoding/json"
	"testing"

	"chatbridge/lib/scrapers/chat"

	"github.com/stretchr/testify/require"
)

func newTestBridge(page *fakePage) *Bridge {
	engineOpts := DefaultEngineOptions()
	engineOpts.Sleep = (&sleepRecorder{}).sleep
	return New(page, NewEngine(page, engineOpts), Options{})
}

func TestScrapeAllIsolation(t *testing.T) {
	page := &fakePage{states: [][]fakeMsg{
		{inMsg("x", "from before")},
		{inMsg("x", "from before"), inMsg("y", "revealed")},
	}}
	b := newTestBridge(page)

	// an interactively started session sits paused with its own
	// options and a partial collected set
	interactiveOpts := DefaultScrapeOptions()
	interactiveOpts.Direction = FilterOutgoing
	interactiveOpts.MinLength = 3
	interactive := NewSession(interactiveOpts)
	interactive.merge([]chat.Record{
		{ID: "held", Text: "partial", Direction: chat.DirectionOutgoing},
	})
	b.SetSession(interactive)

	result, err := b.handleScrapeAll(
		context.Background(),
		json.RawMessage(`{"direction":"incoming","min_length":1,"max_steps":2}`),
	)
	require.NoError(t, err)

	payload := result.(map[string]any)
	records := payload["messages"].([]chat.Record)

	// the rpc run reflects only its own options and collected set
	require.Len(t, records, 2)
	for _, r := range records {
		require.Equal(t, chat.DirectionIncoming, r.Direction)
	}
	require.NotEqual(t, interactive.ID, payload["session_id"])

	// the prior session handle is restored untouched
	require.Same(t, interactive, b.CurrentSession())
	require.Equal(t, interactiveOpts.normalized(), b.CurrentSession().Options())
	held := b.CurrentSession().Result()
	require.Len(t, held, 1)
	require.Equal(t, "held", held[0].ID)
}

func TestHandleReadMessagesDirectionFilter(t *testing.T) {
	page := &fakePage{states: [][]fakeMsg{
		{outMsg("a", "mine"), inMsg("b", "theirs"), outMsg("c", "mine too")},
	}}
	b := newTestBridge(page)

	result, err := b.handleReadMessages(
		context.Background(),
		json.RawMessage(`{"direction":"outgoing"}`),
	)
	require.NoError(t, err)

	payload := result.(map[string]any)
	require.Equal(t, 2, payload["count"])
	for _, r := range payload["messages"].([]chat.Record) {
		require.Equal(t, chat.DirectionOutgoing, r.Direction)
	}
}

func TestHandleOpenChatSubstringMatch(t *testing.T) {
	page := &fakePage{
		states: [][]fakeMsg{{}},
		chats: []chat.ChatPreview{
			{ID: "Family Group", Name: "Family Group"},
			{ID: "Work Stuff", Name: "Work Stuff"},
		},
	}
	b := newTestBridge(page)

	// first case-insensitive substring match wins
	result, err := b.handleOpenChat(
		context.Background(),
		json.RawMessage(`{"name":"wORk"}`),
	)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"opened": "Work Stuff"}, result)
	require.Equal(t, []string{"Work Stuff"}, page.opened)
}

func TestHandlePaging(t *testing.T) {
	page := &fakePage{states: [][]fakeMsg{{}}}
	b := newTestBridge(page)

	_, err := b.handlePageBack(context.Background(), json.RawMessage(`{"steps":3}`))
	require.NoError(t, err)
	_, err = b.handlePageForward(context.Background(), nil)
	require.NoError(t, err)

	require.Equal(t, []int{-3, 1}, page.scrolled)
}

func TestHandleSearchInvalidatesChatCache(t *testing.T) {
	page := &fakePage{
		states: [][]fakeMsg{{}},
		chats:  []chat.ChatPreview{{ID: "One", Name: "One"}},
	}
	b := newTestBridge(page)

	_, err := b.handleListChats(context.Background(), nil)
	require.NoError(t, err)

	// mutate the sidebar behind the cache
	page.mu.Lock()
	page.chats = append(page.chats, chat.ChatPreview{ID: "Two", Name: "Two"})
	page.mu.Unlock()

	// cached
	result, err := b.handleListChats(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.(map[string]any)["count"])

	_, err = b.handleSearchChats(context.Background(), json.RawMessage(`{"query":"tw"}`))
	require.NoError(t, err)
	require.Equal(t, []string{"tw"}, page.searches)

	result, err = b.handleListChats(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 2, result.(map[string]any)["count"])
}

func TestDispatchExactlyOneResponse(t *testing.T) {
	b := newTestBridge(&fakePage{states: [][]fakeMsg{{}}})

	// malformed: no id recoverable, no response
	_, ok := b.dispatch(context.Background(), []byte(`{oops`))
	require.False(t, ok)

	// missing id: also dropped
	_, ok = b.dispatch(context.Background(), []byte(`{"method":"status"}`))
	require.False(t, ok)

	// valid: exactly one response, result xor error
	response, ok := b.dispatch(context.Background(), []byte(`{"id":"a","method":"status"}`))
	require.True(t, ok)
	require.NotNil(t, response.Result)
	require.Nil(t, response.Error)

	response, ok = b.dispatch(context.Background(), []byte(`{"id":"b","method":"nope"}`))
	require.True(t, ok)
	require.Nil(t, response.Result)
	require.NotNil(t, response.Error)
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	b := newTestBridge(&fakePage{states: [][]fakeMsg{{}}})
	b.methods["boom"] = func(context.Context, json.RawMessage) (any, error) {
		panic("kaboom")
	}

	response, ok := b.dispatch(context.Background(), []byte(`{"id":"x","method":"boom"}`))
	require.True(t, ok)
	require.NotNil(t, response.Error)
	require.Contains(t, response.Error.Message, "kaboom")
}
