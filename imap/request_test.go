package imap

import (
	"testing"
)

// Structs

var parseRequestTests = []struct {
	in      string
	tag     string
	command string
	payload string
	err     string
}{
	{"a001 CAPABILITY", "a001", "CAPABILITY", "", ""},
	{"1337 capability", "1337", "CAPABILITY", "", ""},
	{"qwerty LOGIN user secret", "qwerty", "LOGIN", "user secret", ""},
	{"t1 select INBOX", "t1", "SELECT", "INBOX", ""},
	{"t2 FETCH 1:* BODY[]", "t2", "FETCH", "1:* BODY[]", ""},
	{"CAPABILITY", "", "", "", "* BAD Received invalid IMAP command"},
	{"LOGIN user secret", "", "", "", "* BAD Received invalid IMAP command"},
	{"lonelytag", "", "", "", "lonelytag BAD Received invalid IMAP command"},
	{"", "", "", "", "* BAD Received invalid IMAP command"},
}

// Functions

// TestParseRequest executes a white-box table test on the
// implemented ParseRequest() function.
func TestParseRequest(t *testing.T) {

	for _, tt := range parseRequestTests {

		req, err := ParseRequest(tt.in)

		if tt.err != "" {

			if err == nil {
				t.Fatalf("expected parse error for '%s' but received 'nil'", tt.in)
			}

			if err.Error() != tt.err {
				t.Fatalf("expected error '%s' for '%s' but received '%s'", tt.err, tt.in, err.Error())
			}

			continue
		}

		if err != nil {
			t.Fatalf("expected success for '%s' but received: '%s'", tt.in, err.Error())
		}

		if req.Tag != tt.tag {
			t.Fatalf("expected tag '%s' for '%s' but received '%s'", tt.tag, tt.in, req.Tag)
		}

		if req.Command != tt.command {
			t.Fatalf("expected command '%s' for '%s' but received '%s'", tt.command, tt.in, req.Command)
		}

		if req.Payload != tt.payload {
			t.Fatalf("expected payload '%s' for '%s' but received '%s'", tt.payload, tt.in, req.Payload)
		}
	}
}
