package chat

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// the combined metadata attribute looks like
//
//	[12:05, 3/4/2024] Alice Smith:
//
// with a day/month/year date. everything after the closing bracket up
// to the trailing colon is the author.
var prePlainRegex = regexp.MustCompile(`^\[(\d{1,2}):(\d{2}),\s*(\d{1,2})/(\d{1,2})/(\d{4})\]\s*(.*?):?\s*$`)

type messageMeta struct {
	Timestamp time.Time
	Author    string
}

// parseMeta pulls the timestamp and author out of the combined
// metadata string. Failure is not an error: the zero meta is returned
// and the caller keeps the raw string.
func parseMeta(raw string) messageMeta {
	groups := prePlainRegex.FindStringSubmatch(strings.TrimSpace(raw))
	if len(groups) < 7 {
		return messageMeta{}
	}

	hour, err := strconv.Atoi(groups[1])
	if err != nil || hour > 23 {
		return messageMeta{}
	}
	minute, err := strconv.Atoi(groups[2])
	if err != nil || minute > 59 {
		return messageMeta{}
	}
	day, err := strconv.Atoi(groups[3])
	if err != nil {
		return messageMeta{}
	}
	month, err := strconv.Atoi(groups[4])
	if err != nil || month < 1 || month > 12 {
		return messageMeta{}
	}
	year, err := strconv.Atoi(groups[5])
	if err != nil {
		return messageMeta{}
	}

	ts := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.Local)
	return messageMeta{
		Timestamp: ts,
		Author:    strings.TrimSpace(groups[6]),
	}
}
