package imap

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Constants

// Search predicate kinds. KeyAll doubles as the permissive
// fallback for criteria lark does not recognize.
const (
	KeyAll = iota
	KeySeen
	KeyUnseen
	KeySince
	KeyBefore
	KeyNot
	KeyOr
)

// Structs

// SearchKey is one node of a parsed search predicate tree.
// Multiple top-level keys combine as a conjunction.
type SearchKey struct {
	Kind int
	Date time.Time
	Sub  []*SearchKey
}

// Functions

// ParseSearch parses the payload of a SEARCH command into
// a list of predicate tree roots. Dates are accepted in the
// classic IMAP form '2-Jan-2006' as well as '2006-01-02'.
// Criteria lark does not know degrade to match-all instead
// of failing the whole command.
func ParseSearch(payload string) ([]*SearchKey, error) {

	tokens := strings.Fields(payload)

	keys := make([]*SearchKey, 0, 4)

	pos := 0
	for pos < len(tokens) {

		key, next, err := parseSearchKey(tokens, pos)
		if err != nil {
			return nil, err
		}

		keys = append(keys, key)
		pos = next
	}

	return keys, nil
}

// parseSearchKey consumes one search criterion starting at
// pos and returns it together with the position of the first
// unconsumed token.
func parseSearchKey(tokens []string, pos int) (*SearchKey, int, error) {

	switch strings.ToUpper(tokens[pos]) {

	case "ALL":
		return &SearchKey{Kind: KeyAll}, pos + 1, nil

	case "SEEN":
		return &SearchKey{Kind: KeySeen}, pos + 1, nil

	case "UNSEEN":
		return &SearchKey{Kind: KeyUnseen}, pos + 1, nil

	case "SINCE", "BEFORE":

		kind := KeySince
		if strings.ToUpper(tokens[pos]) == "BEFORE" {
			kind = KeyBefore
		}

		if (pos + 1) >= len(tokens) {
			return nil, 0, fmt.Errorf("search criterion %s requires a date argument", tokens[pos])
		}

		date, err := parseSearchDate(tokens[pos+1])
		if err != nil {
			return nil, 0, err
		}

		return &SearchKey{Kind: kind, Date: date}, pos + 2, nil

	case "NOT":

		if (pos + 1) >= len(tokens) {
			return nil, 0, fmt.Errorf("search criterion NOT requires an operand")
		}

		sub, next, err := parseSearchKey(tokens, pos+1)
		if err != nil {
			return nil, 0, err
		}

		return &SearchKey{Kind: KeyNot, Sub: []*SearchKey{sub}}, next, nil

	case "OR":

		if (pos + 1) >= len(tokens) {
			return nil, 0, fmt.Errorf("search criterion OR requires two operands")
		}

		left, next, err := parseSearchKey(tokens, pos+1)
		if err != nil {
			return nil, 0, err
		}

		if next >= len(tokens) {
			return nil, 0, fmt.Errorf("search criterion OR requires two operands")
		}

		right, next, err := parseSearchKey(tokens, next)
		if err != nil {
			return nil, 0, err
		}

		return &SearchKey{Kind: KeyOr, Sub: []*SearchKey{left, right}}, next, nil

	default:
		// Unknown criteria match everything. Tests pin this
		// inherited behavior, change it only deliberately.
		return &SearchKey{Kind: KeyAll}, pos + 1, nil
	}
}

// parseSearchDate accepts '2-Jan-2006' and '2006-01-02'
// formatted date arguments.
func parseSearchDate(token string) (time.Time, error) {

	for _, layout := range []string{"2-Jan-2006", "2006-01-02"} {

		if date, err := time.Parse(layout, token); err == nil {
			return date, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid search date '%s'", token)
}

// Matches evaluates the predicate against one message,
// described by its seen flag and raw payload.
func (k *SearchKey) Matches(seen bool, raw []byte) bool {

	switch k.Kind {

	case KeySeen:
		return seen

	case KeyUnseen:
		return !seen

	case KeySince:

		date, ok := MessageDate(raw)
		if !ok {
			return false
		}

		return !date.Before(k.Date)

	case KeyBefore:

		date, ok := MessageDate(raw)
		if !ok {
			return false
		}

		return date.Before(k.Date)

	case KeyNot:
		return !k.Sub[0].Matches(seen, raw)

	case KeyOr:
		return k.Sub[0].Matches(seen, raw) || k.Sub[1].Matches(seen, raw)

	default:
		return true
	}
}

// MatchesAll reports whether the message satisfies every
// supplied predicate root (top-level conjunction).
func MatchesAll(keys []*SearchKey, seen bool, raw []byte) bool {

	for _, key := range keys {

		if !key.Matches(seen, raw) {
			return false
		}
	}

	return true
}

// MessageDate scans the header section of a raw message for
// a date field and reduces it to its date portion.
// Messages without a parseable date field report ok = false
// and therefore never match any date-bounded predicate.
func MessageDate(raw []byte) (time.Time, bool) {

	for _, line := range strings.Split(string(raw), "\n") {

		line = strings.TrimRight(line, "\r")

		// The blank line terminates the header section.
		if line == "" {
			break
		}

		if !strings.HasPrefix(strings.ToLower(line), "date:") {
			continue
		}

		parsed, err := mail.ParseDate(strings.TrimSpace(line[len("Date:"):]))
		if err != nil {
			return time.Time{}, false
		}

		year, month, day := parsed.Date()

		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
	}

	return time.Time{}, false
}
