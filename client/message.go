package client

import (
	"bytes"
	"io"
	"time"

	"net/mail"

	"github.com/pkg/errors"
)

// Structs

// Message is one mail retrieved from the authority, with
// the commonly used header fields broken out.
type Message struct {
	UID     uint32
	Subject string
	From    string
	To      string
	Date    time.Time
	Body    string
	Raw     []byte
}

// Functions

// ParseMessage splits one raw RFC 5322 message into header
// fields and body. A missing or unparseable Date header
// leaves the zero time in place, the message itself is
// still returned.
func ParseMessage(uid uint32, raw []byte) (*Message, error) {

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "reading message failed")
	}

	body, err := io.ReadAll(parsed.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading message body failed")
	}

	msg := &Message{
		UID:     uid,
		Subject: parsed.Header.Get("Subject"),
		From:    parsed.Header.Get("From"),
		To:      parsed.Header.Get("To"),
		Body:    string(body),
		Raw:     raw,
	}

	if date, err := parsed.Header.Date(); err == nil {
		msg.Date = date
	}

	return msg, nil
}
