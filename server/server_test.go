package server

import (
	"net"
	"testing"

	"crypto/tls"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/larkmail/lark/auth"
	"github.com/larkmail/lark/crypto"
	"github.com/larkmail/lark/imap"
	"github.com/larkmail/lark/mailbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Functions

func runTestServer(t *testing.T) *Server {

	cert, err := crypto.GenerateSelfSigned("127.0.0.1")
	require.Nil(t, err)

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	m := Metrics{
		Logins:   discard.NewCounter(),
		Logouts:  discard.NewCounter(),
		Commands: discard.NewCounter(),
	}

	s, err := InitServer(log.NewNopLogger(), m, "127.0.0.1:0", "lark test ready", tlsConfig, auth.NewAcceptAll(), mailbox.NewStandardMailbox())
	require.Nil(t, err)

	go s.Run()

	return s
}

// TestGreetingAndUpgradeGate checks that the cleartext
// phase of a connection only admits STARTTLS and that any
// other command terminates it.
func TestGreetingAndUpgradeGate(t *testing.T) {

	s := runTestServer(t)
	defer s.Socket.Close()

	conn, err := net.Dial("tcp", s.Socket.Addr().String())
	require.Nil(t, err)

	c := imap.NewConnection(conn)

	greeting, err := c.Receive()
	require.Nil(t, err)
	assert.Equal(t, "* OK [CAPABILITY IMAP4rev1 STARTTLS] lark test ready", greeting)

	require.Nil(t, c.Send("a1 NOOP"))

	answer, err := c.Receive()
	require.Nil(t, err)
	assert.Equal(t, "a1 BAD Expected STARTTLS", answer)

	// The authority hangs up after the refusal.
	_, err = c.Receive()
	assert.NotNil(t, err)

	conn.Close()
}

// TestMalformedPreUpgradeCommand checks the salvaged-tag
// error answer for garbage before the upgrade.
func TestMalformedPreUpgradeCommand(t *testing.T) {

	s := runTestServer(t)
	defer s.Socket.Close()

	conn, err := net.Dial("tcp", s.Socket.Addr().String())
	require.Nil(t, err)

	c := imap.NewConnection(conn)

	_, err = c.Receive()
	require.Nil(t, err)

	// A line starting with a command name has no tag
	// to salvage.
	require.Nil(t, c.Send("STARTTLS now please"))

	answer, err := c.Receive()
	require.Nil(t, err)
	assert.Equal(t, "* BAD Received invalid IMAP command", answer)

	// The authority hangs up after the parse error.
	_, err = c.Receive()
	assert.NotNil(t, err)

	conn.Close()
}
