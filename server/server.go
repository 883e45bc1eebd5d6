// Package server implements the lark mailbox authority: it
// owns the public listener, drives each connection through
// the greeting, STARTTLS upgrade and authenticated command
// loop, and dispatches parsed commands to their handlers.
package server

import (
	"fmt"
	"net"
	"strings"

	"crypto/tls"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics"
	"github.com/larkmail/lark/auth"
	"github.com/larkmail/lark/imap"
	"github.com/larkmail/lark/mailbox"
	"github.com/pkg/errors"
)

// Structs

// Metrics bundles the instrumentation counters the
// authority maintains during operation.
type Metrics struct {
	Logins   metrics.Counter
	Logouts  metrics.Counter
	Commands metrics.Counter
}

// Session contains the per-connection state surviving
// across iterations of the command loop.
type Session struct {
	ClientAddr     string
	UserName       string
	SelectedFolder string
}

// Server bundles information needed in operation of a
// lark mailbox authority.
type Server struct {
	logger        log.Logger
	greeting      string
	tlsConfig     *tls.Config
	authenticator auth.PlainAuthenticator
	mailbox       *mailbox.Mailbox
	Socket        net.Listener
	Metrics       Metrics
}

// Functions

// InitServer opens up a TCP socket on the supplied listen
// address and returns the initialized authority bundling
// all information needed to serve connections on it. The
// socket speaks cleartext until each connection upgrades
// itself via STARTTLS with the supplied TLS config.
func InitServer(logger log.Logger, m Metrics, listenAddr string, greeting string, tlsConfig *tls.Config, authenticator auth.PlainAuthenticator, mb *mailbox.Mailbox) (*Server, error) {

	s := &Server{
		logger:        logger,
		greeting:      greeting,
		tlsConfig:     tlsConfig,
		authenticator: authenticator,
		mailbox:       mb,
		Metrics:       m,
	}

	// Start to listen for incoming connections on defined address.
	var err error
	s.Socket, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, errors.Wrap(err, "listening for connections failed")
	}

	level.Info(logger).Log(
		"msg", "listening for incoming IMAP requests",
		"addr", s.Socket.Addr().String(),
	)

	return s, nil
}

// Run loops over incoming requests at the authority and
// dispatches each one to a goroutine taking care of the
// commands supplied.
func (s *Server) Run() error {

	for {
		// Accept request or fail on error.
		conn, err := s.Socket.Accept()
		if err != nil {
			return errors.Wrap(err, "accepting incoming request failed")
		}

		// Dispatch into own goroutine.
		go s.HandleConnection(conn)
	}
}

// HandleConnection performs the main actions on one public
// connection to a lark authority: send the greeting, require
// the STARTTLS upgrade, and afterwards loop on authenticated
// commands until logout or disconnect.
func (s *Server) HandleConnection(conn net.Conn) {

	c := imap.NewConnection(conn)
	clientAddr := conn.RemoteAddr().String()

	// Send initial server greeting before reading anything.
	err := c.Send(fmt.Sprintf("* OK [CAPABILITY IMAP4rev1 STARTTLS] %s", s.greeting))
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while sending greeting to client %s", clientAddr),
			"err", err,
		)
		conn.Close()
		return
	}

	// The one and only pre-upgrade command we accept
	// is the request to upgrade. Anything else fails
	// the connection closed, with no retry.
	rawReq, err := c.Receive()
	if err != nil {
		conn.Close()
		return
	}

	req, err := imap.ParseRequest(rawReq)
	if err != nil {
		c.Send(err.Error())
		conn.Close()
		return
	}

	if req.Command != "STARTTLS" {

		err := c.Send(fmt.Sprintf("%s BAD Expected STARTTLS", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", clientAddr),
				"err", err,
			)
		}

		conn.Close()
		return
	}

	err = c.Send(fmt.Sprintf("%s OK Begin TLS negotiation now", req.Tag))
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while sending text to client %s", clientAddr),
			"err", err,
		)
		conn.Close()
		return
	}

	// Hand the raw stream to the TLS upgrade. On failure
	// the connection is terminated without further notice.
	tlsConn := tls.Server(conn, s.tlsConfig)

	if err := tlsConn.Handshake(); err != nil {
		level.Debug(s.logger).Log(
			"msg", fmt.Sprintf("TLS upgrade with client %s failed", clientAddr),
			"err", err,
		)
		conn.Close()
		return
	}

	// From here on all traffic flows through the
	// encrypted channel.
	c = imap.NewConnection(tlsConn)

	session := &Session{
		ClientAddr: clientAddr,
	}

	// As long as we did not receive a LOGOUT command from
	// the client or experienced an error, we accept requests.
	recvUntil := ""
	cmdOK := false

	for recvUntil != "LOGOUT" {

		// Receive next incoming client command.
		rawReq, err := c.Receive()
		if err != nil {

			// A read failure or simple disconnect silently
			// terminates the session loop.
			if err.Error() == "EOF" {
				level.Debug(s.logger).Log("msg", fmt.Sprintf("client at %s disconnected", clientAddr))
			}

			break
		}

		// Empty lines are ignored.
		if strings.TrimSpace(rawReq) == "" {
			continue
		}

		// Parse received next raw request into struct.
		req, err := imap.ParseRequest(rawReq)
		if err != nil {

			// Signal error to client.
			err := c.Send(err.Error())
			if err != nil {
				level.Error(s.logger).Log(
					"msg", fmt.Sprintf("error while sending text to client %s", clientAddr),
					"err", err,
				)
				break
			}

			// Go back to beginning of loop.
			continue
		}

		s.Metrics.Commands.With("command", req.Command).Add(1)

		switch req.Command {

		case "CAPABILITY":
			cmdOK = s.Capability(c, req, session)

		case "NOOP":
			cmdOK = s.Noop(c, req, session)

		case "STARTTLS":
			cmdOK = s.StartTLS(c, req, session)

		case "LOGIN":
			cmdOK = s.Login(c, req, session)

		case "LOGOUT":
			cmdOK = s.Logout(c, req, session)
			if cmdOK {
				// A LOGOUT marks connection termination.
				recvUntil = "LOGOUT"
			}

		case "LIST":
			cmdOK = s.List(c, req, session)

		case "SELECT":
			cmdOK = s.Select(c, req, session)

		case "SEARCH":
			cmdOK = s.Search(c, req, session)

		case "FETCH":
			cmdOK = s.Fetch(c, req, session)

		case "STORE":
			cmdOK = s.Store(c, req, session)

		case "COPY":
			cmdOK = s.Copy(c, req, session)

		case "EXPUNGE":
			cmdOK = s.Expunge(c, req, session)

		default:
			// Client sent inappropriate command. Signal tagged error.
			cmdOK = true
			err := c.Send(fmt.Sprintf("%s BAD Received invalid IMAP command", req.Tag))
			if err != nil {
				level.Error(s.logger).Log(
					"msg", fmt.Sprintf("error while sending text to client %s", clientAddr),
					"err", err,
				)
				cmdOK = false
			}
		}

		// Executed command above indicated failure in
		// operation. Return from function.
		if !cmdOK {
			break
		}
	}

	tlsConn.Close()
}
