package chat

import (
	"context"
	"strings"

	"chatbridge/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("scrapers/chat")

// Selectors for the pieces of a message row. These encode a fallback
// chain against markup variants, they are not self-healing against
// arbitrary future changes.
const (
	SelectorMessageRow = "[data-id]"

	selSelectableText = ".selectable-text"
	selCopyableText   = ".copyable-text"
	selMediaAlt       = "img[alt]"
	selTailOut        = "span[data-icon=tail-out]"
	selTailIn         = "span[data-icon=tail-in]"

	attrItemID       = "data-id"
	attrPrePlainText = "data-pre-plain-text"

	outgoingIDPrefix = "true_"
	incomingIDPrefix = "false_"
	outgoingClass    = "message-out"
	incomingClass    = "message-in"
)

// a textStrategy tries one way of reading a message body out of a row,
// returning "" when the row doesn't carry that shape of content.
type textStrategy func(*goquery.Selection) string

// ordered: first strategy that yields non-empty text wins.
var textStrategies = []textStrategy{
	selectableText,
	mediaAltText,
	copyableText,
}

func selectableText(row *goquery.Selection) string {
	node := row.Find(selSelectableText).First()
	if node.Length() == 0 {
		return ""
	}
	return node.Text()
}

func mediaAltText(row *goquery.Selection) string {
	alt, _ := row.Find(selMediaAlt).First().Attr("alt")
	return alt
}

func copyableText(row *goquery.Selection) string {
	node := row.Find(selCopyableText).First()
	if node.Length() == 0 {
		return ""
	}
	return node.Text()
}

func rowID(row *goquery.Selection) string {
	id, ok := row.Attr(attrItemID)
	if !ok {
		id, _ = row.Find("[" + attrItemID + "]").First().Attr(attrItemID)
	}
	return id
}

// classifyDirection ORs together several structural signals. A row
// matching none of them is not a valid message.
func classifyDirection(row *goquery.Selection, id string) (Direction, bool) {
	if row.HasClass(outgoingClass) || row.Find("."+outgoingClass).Length() > 0 {
		return DirectionOutgoing, true
	}
	if row.HasClass(incomingClass) || row.Find("."+incomingClass).Length() > 0 {
		return DirectionIncoming, true
	}
	if row.Find(selTailOut).Length() > 0 {
		return DirectionOutgoing, true
	}
	if row.Find(selTailIn).Length() > 0 {
		return DirectionIncoming, true
	}
	if strings.HasPrefix(id, outgoingIDPrefix) {
		return DirectionOutgoing, true
	}
	if strings.HasPrefix(id, incomingIDPrefix) {
		return DirectionIncoming, true
	}
	return "", false
}

func rowMetaAttr(row *goquery.Selection) string {
	raw, ok := row.Attr(attrPrePlainText)
	if ok {
		return raw
	}
	raw, _ = row.Find("["+attrPrePlainText+"]").First().Attr(attrPrePlainText)
	return raw
}

// Extract builds a Record from one list-item row. The second return is
// false when the row is not extractable, which is a soft failure the
// caller should skip, not an error.
func Extract(row *goquery.Selection) (Record, bool) {
	id := rowID(row)
	if id == "" {
		return Record{}, false
	}

	direction, ok := classifyDirection(row, id)
	if !ok {
		return Record{}, false
	}

	text := ""
	for _, strategy := range textStrategies {
		text = textutil.NormalizeBody(strategy(row))
		if text != "" {
			break
		}
	}

	rawMeta := rowMetaAttr(row)
	meta := parseMeta(rawMeta)

	return Record{
		ID:           id,
		Text:         text,
		Direction:    direction,
		Timestamp:    meta.Timestamp,
		RawTimestamp: strings.TrimSpace(rawMeta),
		Author:       meta.Author,
		HasMedia:     row.Find("img").Length() > 0,
	}, true
}

// ExtractVisible runs Extract over every message row currently present
// in the snapshot, skipping rows that don't produce a Record.
func ExtractVisible(ctx context.Context, doc *goquery.Document) []Record {
	_, span := tracer.Start(ctx, "ExtractVisible")
	defer span.End()

	var records []Record
	doc.Find(SelectorMessageRow).Each(func(_ int, row *goquery.Selection) {
		record, ok := Extract(row)
		if !ok {
			return
		}
		records = append(records, record)
	})

	span.AddEvent("extracted", trace.WithAttributes(attribute.Int("count", len(records))))
	return records
}
