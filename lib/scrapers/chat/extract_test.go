package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"chatbridge/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func rowFromHTML(t testing.TB, fragment string) *goquery.Selection {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		t.Fatal(err)
	}
	row := doc.Find(SelectorMessageRow).First()
	require.Greater(t, row.Length(), 0, "fixture has no message row")
	return row
}

func TestExtract(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/chat")
	defer cleanup()

	testCases := []struct {
		name     string
		html     string
		ok       bool
		expected Record
	}{
		{
			name: "outgoing text message",
			html: `<div data-id="true_abc_1" class="message-out">
				<div class="copyable-text" data-pre-plain-text="[12:05, 3/4/2024] Alice Smith: ">
					<span class="selectable-text">hello   there</span>
				</div>
			</div>`,
			ok: true,
			expected: Record{
				ID:           "true_abc_1",
				Text:         "hello there",
				Direction:    DirectionOutgoing,
				Timestamp:    time.Date(2024, time.April, 3, 12, 5, 0, 0, time.Local),
				RawTimestamp: "[12:05, 3/4/2024] Alice Smith:",
				Author:       "Alice Smith",
			},
		},
		{
			name: "incoming media caption fallback",
			html: `<div data-id="false_abc_2">
				<span data-icon="tail-in"></span>
				<img alt="a photo of a cat" src="blob:x">
			</div>`,
			ok: true,
			expected: Record{
				ID:        "false_abc_2",
				Text:      "a photo of a cat",
				Direction: DirectionIncoming,
				HasMedia:  true,
			},
		},
		{
			name: "copy container last resort",
			html: `<div data-id="true_abc_3" class="message-out">
				<div class="copyable-text">fallback body</div>
			</div>`,
			ok: true,
			expected: Record{
				ID:        "true_abc_3",
				Text:      "fallback body",
				Direction: DirectionOutgoing,
			},
		},
		{
			name: "direction from id prefix alone",
			html: `<div data-id="false_abc_4">
				<span class="selectable-text">plain</span>
			</div>`,
			ok: true,
			expected: Record{
				ID:        "false_abc_4",
				Text:      "plain",
				Direction: DirectionIncoming,
			},
		},
		{
			name: "undetermined direction is dropped",
			html: `<div data-id="xyz_5">
				<span class="selectable-text">mystery</span>
			</div>`,
			ok: false,
		},
		{
			name: "unparseable metadata keeps raw string",
			html: `<div data-id="true_abc_6" class="message-out"
				data-pre-plain-text="yesterday, someone">
				<span class="selectable-text">late</span>
			</div>`,
			ok: true,
			expected: Record{
				ID:           "true_abc_6",
				Text:         "late",
				Direction:    DirectionOutgoing,
				RawTimestamp: "yesterday, someone",
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			row := rowFromHTML(t, testCase.html)
			record, ok := Extract(row)
			require.Equal(t, testCase.ok, ok)
			if !testCase.ok {
				return
			}
			require.Equal(t, testCase.expected, record)
		})
	}
}

func TestExtractIdempotent(t *testing.T) {
	row := rowFromHTML(t, `<div data-id="true_a_1" class="message-out">
		<span class="selectable-text">a

`+"\t"+`
		b    c
	</span></div>`)

	first, ok := Extract(row)
	require.True(t, ok)
	second, ok := Extract(row)
	require.True(t, ok)
	require.Equal(t, first.Text, second.Text)
}

func TestExtractVisible(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<div id="pane">
			<div data-id="true_a_1" class="message-out"><span class="selectable-text">one</span></div>
			<div data-id="false_a_2" class="message-in"><span class="selectable-text">two</span></div>
			<div data-id="orphan"><span class="selectable-text">no direction</span></div>
		</div>`))
	if err != nil {
		t.Fatal(err)
	}

	records := ExtractVisible(context.Background(), doc)
	require.Len(t, records, 2)
	require.Equal(t, "true_a_1", records[0].ID)
	require.Equal(t, "false_a_2", records[1].ID)
}
