package chat

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseMeta(t *testing.T) {
	testCases := []struct {
		raw      string
		expected messageMeta
	}{
		{
			raw: "[12:05, 3/4/2024] Alice Smith: ",
			expected: messageMeta{
				Timestamp: time.Date(2024, time.April, 3, 12, 5, 0, 0, time.Local),
				Author:    "Alice Smith",
			},
		},
		{
			raw: "[9:07, 28/12/2023] Bob:",
			expected: messageMeta{
				Timestamp: time.Date(2023, time.December, 28, 9, 7, 0, 0, time.Local),
				Author:    "Bob",
			},
		},
		{
			// hour out of range
			raw:      "[25:05, 3/4/2024] Alice:",
			expected: messageMeta{},
		},
		{
			// month out of range
			raw:      "[12:05, 3/13/2024] Alice:",
			expected: messageMeta{},
		},
		{
			raw:      "yesterday at noon",
			expected: messageMeta{},
		},
		{
			raw:      "",
			expected: messageMeta{},
		},
	}

	for _, testCase := range testCases {
		got := parseMeta(testCase.raw)
		if diff := cmp.Diff(testCase.expected, got); diff != "" {
			t.Fatalf("parseMeta(%q) mismatch (-want +got):\n%s", testCase.raw, diff)
		}
	}
}
