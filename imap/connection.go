package imap

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
)

// Structs

// Connection carries all information specific
// to one observed connection on its way through
// a lark node. It wraps the underlying stream
// with line-based send and receive primitives.
type Connection struct {
	Conn   net.Conn
	Reader *bufio.Reader
}

// Functions

// NewConnection creates a new element of above
// connection struct and fills it with content from
// a supplied network connection. Call it again after
// a TLS upgrade to wrap the encrypted stream.
func NewConnection(c net.Conn) *Connection {

	return &Connection{
		Conn:   c,
		Reader: bufio.NewReader(c),
	}
}

// Send takes in an answer text from a node as a
// string, appends the protocol line ending and
// writes it to the connection to the peer. In case
// an error occurs, this method returns it to the
// calling function.
func (c *Connection) Send(text string) error {

	_, err := fmt.Fprintf(c.Conn, "%s\r\n", text)
	if err != nil {
		return err
	}

	return nil
}

// SendRaw writes the supplied bytes to the connection
// exactly as given, with no line ending translation.
// It is used for the payload part of counted literals.
func (c *Connection) SendRaw(data []byte) error {

	_, err := c.Conn.Write(data)
	if err != nil {
		return err
	}

	return nil
}

// Receive wraps the main io.Reader function that awaits text
// until an IMAP newline symbol and deletes the symbols after-
// wards again. It returns the resulting string or an error.
func (c *Connection) Receive() (string, error) {

	text, err := c.Reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimRight(text, "\r\n"), nil
}

// ReceiveRaw reads exactly n bytes from the connection,
// regardless of their content. It is the counterpart of
// SendRaw on the decoding side of a counted literal.
func (c *Connection) ReceiveRaw(n int) ([]byte, error) {

	buf := make([]byte, n)

	if _, err := io.ReadFull(c.Reader, buf); err != nil {
		return nil, err
	}

	return buf, nil
}

// Close closes the underlying network connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}
