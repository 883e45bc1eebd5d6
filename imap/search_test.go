package imap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Variables

var rawJan02 []byte
var rawJan03 []byte
var rawNoDate []byte

// Functions

func init() {

	rawJan02 = []byte("From: alice@example.org\r\nDate: Mon, 02 Jan 2006 23:59:00 +0000\r\nSubject: early\r\n\r\nbody\r\n")
	rawJan03 = []byte("From: bob@example.org\r\nDate: Tue, 03 Jan 2006 00:01:00 +0000\r\nSubject: late\r\n\r\nbody\r\n")
	rawNoDate = []byte("From: carol@example.org\r\nSubject: undated\r\n\r\nbody\r\n")
}

// matchPayload is a test shorthand: parse the payload and
// evaluate it against one message.
func matchPayload(t *testing.T, payload string, seen bool, raw []byte) bool {

	keys, err := ParseSearch(payload)
	if err != nil {
		t.Fatalf("expected success parsing '%s' but received: '%s'", payload, err.Error())
	}

	return MatchesAll(keys, seen, raw)
}

// TestSearchFlags checks the flag-based search criteria.
func TestSearchFlags(t *testing.T) {

	assert.True(t, matchPayload(t, "ALL", true, rawJan02))
	assert.True(t, matchPayload(t, "ALL", false, rawNoDate))

	assert.True(t, matchPayload(t, "SEEN", true, rawJan02))
	assert.False(t, matchPayload(t, "SEEN", false, rawJan02))

	assert.True(t, matchPayload(t, "UNSEEN", false, rawJan02))
	assert.False(t, matchPayload(t, "UNSEEN", true, rawJan02))

	// Empty criteria behave like ALL.
	assert.True(t, matchPayload(t, "", false, rawJan02))
}

// TestSearchDates checks that SINCE is inclusive and BEFORE
// exclusive on the date portion of the Date header, with the
// time of day ignored.
func TestSearchDates(t *testing.T) {

	// rawJan02 is dated 23:59 on Jan 2 and still matches
	// SINCE 2-Jan-2006.
	assert.True(t, matchPayload(t, "SINCE 2-Jan-2006", false, rawJan02))
	assert.True(t, matchPayload(t, "SINCE 2-Jan-2006", false, rawJan03))
	assert.False(t, matchPayload(t, "SINCE 3-Jan-2006", false, rawJan02))

	// rawJan03 is dated 00:01 on Jan 3 and does not match
	// BEFORE 3-Jan-2006.
	assert.True(t, matchPayload(t, "BEFORE 3-Jan-2006", false, rawJan02))
	assert.False(t, matchPayload(t, "BEFORE 3-Jan-2006", false, rawJan03))

	// Both date layouts name the same day.
	assert.True(t, matchPayload(t, "SINCE 2006-01-03", false, rawJan03))
	assert.False(t, matchPayload(t, "SINCE 2006-01-03", false, rawJan02))

	// A date range combines as conjunction.
	assert.True(t, matchPayload(t, "SINCE 2-Jan-2006 BEFORE 3-Jan-2006", false, rawJan02))
	assert.False(t, matchPayload(t, "SINCE 2-Jan-2006 BEFORE 3-Jan-2006", false, rawJan03))

	// A message without parseable date never matches a
	// date-bounded criterion.
	assert.False(t, matchPayload(t, "SINCE 1-Jan-1970", false, rawNoDate))
	assert.False(t, matchPayload(t, "BEFORE 1-Jan-2100", false, rawNoDate))
}

// TestSearchOperators checks NOT and OR composition.
func TestSearchOperators(t *testing.T) {

	assert.True(t, matchPayload(t, "NOT SEEN", false, rawJan02))
	assert.False(t, matchPayload(t, "NOT SEEN", true, rawJan02))

	assert.True(t, matchPayload(t, "OR SEEN SINCE 3-Jan-2006", true, rawJan02))
	assert.True(t, matchPayload(t, "OR SEEN SINCE 3-Jan-2006", false, rawJan03))
	assert.False(t, matchPayload(t, "OR SEEN SINCE 3-Jan-2006", false, rawJan02))

	assert.True(t, matchPayload(t, "NOT BEFORE 3-Jan-2006", false, rawJan03))

	// A message without date also fails the negated bound,
	// NOT BEFORE therefore matches it.
	assert.True(t, matchPayload(t, "NOT BEFORE 1-Jan-2100", false, rawNoDate))
}

// TestSearchUnknownCriteria pins the permissive fallback:
// criteria lark does not recognize match every message.
func TestSearchUnknownCriteria(t *testing.T) {

	assert.True(t, matchPayload(t, "LARGER 1024", true, rawJan02))
	assert.True(t, matchPayload(t, "SUBJECT hello", false, rawNoDate))

	// Under NOT the fallback inverts to match-nothing.
	assert.False(t, matchPayload(t, "NOT FROM alice", false, rawJan02))
}

// TestSearchParseErrors checks criteria with missing
// arguments.
func TestSearchParseErrors(t *testing.T) {

	for _, payload := range []string{"SINCE", "BEFORE", "SINCE someday", "NOT", "OR SEEN"} {

		_, err := ParseSearch(payload)
		assert.NotNil(t, err, "expected parse error for '%s'", payload)
	}
}
