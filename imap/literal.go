package imap

import (
	"fmt"
	"strconv"
	"strings"
)

// Functions

// SendLiteral emits one FETCH data response carrying the
// supplied message body as a counted literal:
//
//	* <seq> FETCH (UID <uid> BODY[] {<len>}\r\n
//	<len raw bytes>
//	)\r\n
//
// The declared length must exactly equal the payload length,
// since the peer reads that many bytes blindly. An undercount
// desynchronizes the whole connection.
func (c *Connection) SendLiteral(seq int, uid uint32, body []byte) error {

	err := c.Send(fmt.Sprintf("* %d FETCH (UID %d BODY[] {%d}", seq, uid, len(body)))
	if err != nil {
		return err
	}

	if err := c.SendRaw(body); err != nil {
		return err
	}

	return c.Send(")")
}

// ParseLiteralHeader inspects a received untagged FETCH line
// for a trailing counted literal marker. On success it returns
// the 1-based sequence number, the UID and the announced number
// of payload bytes that follow on the wire.
func ParseLiteralHeader(line string) (seq int, uid uint32, numBytes int, ok bool) {

	if !strings.HasPrefix(line, "* ") || !strings.HasSuffix(line, "}") {
		return 0, 0, 0, false
	}

	open := strings.LastIndex(line, "{")
	if open < 0 {
		return 0, 0, 0, false
	}

	numBytes, err := strconv.Atoi(line[(open + 1):(len(line) - 1)])
	if err != nil {
		return 0, 0, 0, false
	}

	// Expected shape: '* <seq> FETCH (UID <uid> BODY[] {<len>}'.
	fields := strings.Fields(line)
	if (len(fields) < 6) || (fields[2] != "FETCH") || (fields[3] != "(UID") {
		return 0, 0, 0, false
	}

	seq, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, 0, false
	}

	parsedUID, err := strconv.ParseUint(fields[4], 10, 32)
	if err != nil {
		return 0, 0, 0, false
	}

	return seq, uint32(parsedUID), numBytes, true
}

// ReadLiteral consumes the counted payload announced by a
// literal header plus the closing parenthesis line. It reads
// exactly numBytes bytes regardless of content.
func (c *Connection) ReadLiteral(numBytes int) ([]byte, error) {

	body, err := c.ReceiveRaw(numBytes)
	if err != nil {
		return nil, err
	}

	// Expect the closer of the enclosing FETCH structure.
	closer, err := c.Receive()
	if err != nil {
		return nil, err
	}

	if closer != ")" {
		return nil, fmt.Errorf("expected literal closer ')' but received '%s'", closer)
	}

	return body, nil
}
