// Package utils provides the shared test environment used
// by the integration tests: an in-process authority on a
// loopback port with self-signed TLS and a pre-seeded
// mailbox.
package utils

import (
	"net"

	"crypto/tls"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/larkmail/lark/auth"
	"github.com/larkmail/lark/config"
	"github.com/larkmail/lark/crypto"
	"github.com/larkmail/lark/mailbox"
	"github.com/larkmail/lark/server"
)

// Structs

// TestEnv carries everything needed for a full grown test
// of a lark authority with connected initiators.
type TestEnv struct {
	Logger    log.Logger
	TLSConfig *tls.Config
	Mailbox   *mailbox.Mailbox
	Server    *server.Server
}

// Functions

// TestMessage renders a minimal RFC 5322 message with the
// supplied Date header day for seeding test mailboxes.
func TestMessage(from string, subject string, day string) []byte {

	raw := "From: " + from + "\r\n" +
		"To: user@example.org\r\n" +
		"Date: " + day + " 10:00:00 +0000\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		"Hello from " + from + "\r\n"

	return []byte(raw)
}

// SeededMailbox returns a mailbox with the standard folder
// set and a small INBOX population covering seen and unseen
// messages across three days.
func SeededMailbox() *mailbox.Mailbox {

	return mailbox.NewBuilder().
		Folder("INBOX").
		Message(1, true, TestMessage("alice@example.org", "first", "Mon, 02 Jan 2006")).
		Message(2, false, TestMessage("bob@example.org", "second", "Tue, 03 Jan 2006")).
		Message(3, false, TestMessage("carol@example.org", "third", "Wed, 04 Jan 2006")).
		Folder("Sent").
		Folder("Drafts").
		Folder("Trash").
		Folder("Archive").
		Build()
}

// CreateTestEnv initializes the needed environment for
// performing tests against a complete lark authority: a
// fresh self-signed certificate for the loopback address
// and a seeded mailbox.
func CreateTestEnv() (*TestEnv, error) {

	cert, err := crypto.GenerateSelfSigned("127.0.0.1", "localhost")
	if err != nil {
		return nil, err
	}

	return &TestEnv{
		Logger: log.NewNopLogger(),
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
		Mailbox: SeededMailbox(),
	}, nil
}

// RunServer brings up the authority of this environment on
// an ephemeral loopback port and returns a client config
// pointing at it. Shut it down by closing Server.Socket.
func (env *TestEnv) RunServer() (*config.Client, error) {

	m := server.Metrics{
		Logins:   discard.NewCounter(),
		Logouts:  discard.NewCounter(),
		Commands: discard.NewCounter(),
	}

	srv, err := server.InitServer(env.Logger, m, "127.0.0.1:0", "lark test ready", env.TLSConfig, auth.NewAcceptAll(), env.Mailbox)
	if err != nil {
		return nil, err
	}

	env.Server = srv

	go srv.Run()

	host, port, err := net.SplitHostPort(srv.Socket.Addr().String())
	if err != nil {
		srv.Socket.Close()
		return nil, err
	}

	return &config.Client{
		Host:     host,
		Port:     port,
		Username: "tester",
		Password: "secret",
		// The test certificate is self-signed.
		InsecureTLS: true,
	}, nil
}
