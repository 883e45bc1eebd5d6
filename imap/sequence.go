package imap

import (
	"fmt"
	"strconv"
	"strings"
)

// Functions

// ParseSequenceSet parses a UID set of the form understood
// by FETCH, STORE and COPY: single values ('7'), comma
// separated lists ('1,3,5') and ranges ('2:9'). The wildcard
// '*' resolves to maxUID, so '1:*' addresses every message
// in the folder.
func ParseSequenceSet(set string, maxUID uint32) ([]uint32, error) {

	uids := make([]uint32, 0, 8)

	for _, part := range strings.Split(set, ",") {

		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty element in sequence set '%s'", set)
		}

		bounds := strings.SplitN(part, ":", 2)

		lo, err := parseSeqNumber(bounds[0], maxUID)
		if err != nil {
			return nil, err
		}

		if len(bounds) == 1 {
			uids = append(uids, lo)
			continue
		}

		hi, err := parseSeqNumber(bounds[1], maxUID)
		if err != nil {
			return nil, err
		}

		// A range may be given in either order.
		if lo > hi {
			lo, hi = hi, lo
		}

		for uid := lo; uid <= hi; uid++ {
			uids = append(uids, uid)
		}
	}

	return uids, nil
}

func parseSeqNumber(token string, maxUID uint32) (uint32, error) {

	if token == "*" {
		return maxUID, nil
	}

	value, err := strconv.ParseUint(token, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid element '%s' in sequence set", token)
	}

	if value == 0 {
		return 0, fmt.Errorf("sequence numbers are 1-based, received 0")
	}

	return uint32(value), nil
}
