package imap

import (
	"fmt"
	"strings"
)

// Variables

// SupportedCommands is a quick access map
// for checking if a supplied IMAP command
// is supported by lark.
var SupportedCommands map[string]bool

// Structs

// Request represents the parsed content of a client
// command line sent to lark. Payload will be examined
// further in command specific functions.
type Request struct {
	Tag     string
	Command string
	Payload string
}

// Functions

func init() {

	// Set supported IMAP commands to true in
	// a map to have quick access.
	SupportedCommands = make(map[string]bool)

	SupportedCommands["STARTTLS"] = true
	SupportedCommands["LOGIN"] = true
	SupportedCommands["CAPABILITY"] = true
	SupportedCommands["NOOP"] = true
	SupportedCommands["LOGOUT"] = true
	SupportedCommands["LIST"] = true
	SupportedCommands["SELECT"] = true
	SupportedCommands["SEARCH"] = true
	SupportedCommands["FETCH"] = true
	SupportedCommands["STORE"] = true
	SupportedCommands["COPY"] = true
	SupportedCommands["EXPUNGE"] = true
}

// ParseRequest takes in a raw string representing
// a received IMAP request and parses it into the
// defined request structure above. Any error encountered
// is handled useful to the IMAP protocol: the returned
// error text is the full response line to send, keyed to
// whatever tag-like token could be salvaged from the
// input, or to '*' if none was found.
func ParseRequest(req string) (*Request, error) {

	// Split req at space symbols at maximum two times.
	tmpReq := strings.SplitN(req, " ", 3)

	// Check that the tag was not left out.
	if SupportedCommands[strings.ToUpper(tmpReq[0])] {
		return nil, fmt.Errorf("* BAD Received invalid IMAP command")
	}

	// There exists no first class IMAP command with less
	// than two arguments. If only one token was found,
	// salvage it as the tag of the error response.
	if len(tmpReq) < 2 {

		tag := tmpReq[0]
		if tag == "" {
			tag = "*"
		}

		return nil, fmt.Errorf("%s BAD Received invalid IMAP command", tag)
	}

	// Assign corresponding parts in new struct.
	finalReq := &Request{
		Tag:     tmpReq[0],
		Command: strings.ToUpper(tmpReq[1]),
	}

	// If the command has a defined payload, add
	// it to the struct as blob payload text.
	if len(tmpReq) > 2 {
		finalReq.Payload = tmpReq[2]
	}

	return finalReq, nil
}
