// Package client implements the lark initiator side: a
// read-only mail access client and a thin read-write
// wrapper around it. The split is enforced at the type
// level, code holding only a Client cannot alter mailbox
// state on the authority.
package client

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"crypto/tls"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/larkmail/lark/config"
	"github.com/larkmail/lark/crypto"
	"github.com/larkmail/lark/imap"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

// Structs

// Client is the read-only initiator handle. All methods on
// it leave the mailbox state at the authority untouched.
type Client struct {
	logger    log.Logger
	conn      *imap.Connection
	tagPrefix string
	tagSeq    int
}

// FolderStatus carries the counts the authority reported in
// response to a SELECT.
type FolderStatus struct {
	Name    string
	Exists  int
	UIDNext uint32
	Unseen  int
}

// Functions

// Connect dials the authority at the address from the
// supplied config, upgrades the connection via STARTTLS and
// logs in. The returned handle is read-only.
func Connect(logger log.Logger, conf *config.Client) (*Client, error) {

	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%s", conf.Host, conf.Port))
	if err != nil {
		return nil, errors.Wrap(err, "dialing authority failed")
	}

	c := &Client{
		logger:    logger,
		conn:      imap.NewConnection(conn),
		tagPrefix: fmt.Sprintf("%.8s", uuid.NewV4().String()),
	}

	greeting, err := c.conn.Receive()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "receiving server greeting failed")
	}

	if !strings.HasPrefix(greeting, "* OK") {
		conn.Close()
		return nil, errors.Errorf("unexpected server greeting: %s", greeting)
	}

	// Request the TLS upgrade. This is the only command the
	// authority accepts on the cleartext stream.
	tag := c.nextTag()

	err = c.conn.Send(fmt.Sprintf("%s STARTTLS", tag))
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "sending STARTTLS failed")
	}

	answer, err := c.conn.Receive()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "receiving STARTTLS answer failed")
	}

	if !strings.HasPrefix(answer, fmt.Sprintf("%s OK", tag)) {
		conn.Close()
		return nil, errors.Errorf("authority refused STARTTLS: %s", answer)
	}

	tlsConn := tls.Client(conn, crypto.NewClientTLSConfig(conf.Host, conf.InsecureTLS))

	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "TLS handshake with authority failed")
	}

	c.conn = imap.NewConnection(tlsConn)

	level.Debug(logger).Log(
		"msg", "connection to authority upgraded to TLS",
		"addr", tlsConn.RemoteAddr().String(),
	)

	_, _, err = c.do(fmt.Sprintf("LOGIN %s %s", conf.Username, conf.Password))
	if err != nil {
		tlsConn.Close()
		return nil, errors.Wrap(err, "login at authority failed")
	}

	return c, nil
}

// nextTag produces the next unique command tag of
// this session.
func (c *Client) nextTag() string {
	c.tagSeq++
	return fmt.Sprintf("%s%d", c.tagPrefix, c.tagSeq)
}

// do sends one tagged command and collects all untagged
// lines up to the tagged completion. A tagged NO or BAD is
// returned as error carrying the server text.
func (c *Client) do(cmd string) (string, []string, error) {

	tag := c.nextTag()

	err := c.conn.Send(fmt.Sprintf("%s %s", tag, cmd))
	if err != nil {
		return "", nil, errors.Wrap(err, "sending command failed")
	}

	var untagged []string

	for {
		line, err := c.conn.Receive()
		if err != nil {
			return "", nil, errors.Wrap(err, "receiving answer failed")
		}

		if !strings.HasPrefix(line, fmt.Sprintf("%s ", tag)) {
			untagged = append(untagged, line)
			continue
		}

		status := strings.TrimPrefix(line, fmt.Sprintf("%s ", tag))

		if !strings.HasPrefix(status, "OK") {
			return status, untagged, errors.Errorf("authority answered: %s", status)
		}

		return status, untagged, nil
	}
}

// Folders returns the names of all folders the authority
// holds for this mailbox.
func (c *Client) Folders() ([]string, error) {

	_, untagged, err := c.do("LIST \"\" \"*\"")
	if err != nil {
		return nil, err
	}

	folders := make([]string, 0, len(untagged))

	for _, line := range untagged {

		if !strings.HasPrefix(line, "* LIST ") {
			continue
		}

		// Folder name is the last quoted element of the line.
		open := strings.LastIndex(line, "\"/\" ")
		if open < 0 {
			continue
		}

		name := strings.TrimSpace(line[(open + 4):])
		name = strings.Trim(name, "\"")

		folders = append(folders, name)
	}

	return folders, nil
}

// Select makes the supplied folder the target of following
// folder-scoped commands and returns its reported status.
func (c *Client) Select(folder string) (*FolderStatus, error) {

	_, untagged, err := c.do(fmt.Sprintf("SELECT \"%s\"", folder))
	if err != nil {
		return nil, err
	}

	status := &FolderStatus{
		Name: folder,
	}

	for _, line := range untagged {

		if exists, ok := strings.CutSuffix(line, " EXISTS"); ok {
			status.Exists, _ = strconv.Atoi(strings.TrimPrefix(exists, "* "))
			continue
		}

		if strings.HasPrefix(line, "* OK [UIDNEXT ") {
			rest := strings.TrimPrefix(line, "* OK [UIDNEXT ")
			if end := strings.Index(rest, "]"); end > 0 {
				next, _ := strconv.ParseUint(rest[:end], 10, 32)
				status.UIDNext = uint32(next)
			}
			continue
		}

		if strings.HasPrefix(line, "* OK [UNSEEN ") {
			rest := strings.TrimPrefix(line, "* OK [UNSEEN ")
			if end := strings.Index(rest, "]"); end > 0 {
				status.Unseen, _ = strconv.Atoi(rest[:end])
			}
		}
	}

	return status, nil
}

// SearchUIDs evaluates the supplied criteria string in the
// selected folder and returns the UIDs of all matching
// messages.
func (c *Client) SearchUIDs(criteria string) ([]uint32, error) {

	_, untagged, err := c.do(fmt.Sprintf("SEARCH %s", criteria))
	if err != nil {
		return nil, err
	}

	var uids []uint32

	for _, line := range untagged {

		if !strings.HasPrefix(line, "* SEARCH") {
			continue
		}

		for _, element := range strings.Fields(strings.TrimPrefix(line, "* SEARCH")) {

			uid, err := strconv.ParseUint(element, 10, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "malformed UID '%s' in search answer", element)
			}

			uids = append(uids, uint32(uid))
		}
	}

	return uids, nil
}

// fetchSet retrieves the full body of every message in the
// supplied UID set from the selected folder.
func (c *Client) fetchSet(set string) ([]*Message, error) {

	tag := c.nextTag()

	err := c.conn.Send(fmt.Sprintf("%s FETCH %s BODY[]", tag, set))
	if err != nil {
		return nil, errors.Wrap(err, "sending FETCH failed")
	}

	var msgs []*Message

	for {
		line, err := c.conn.Receive()
		if err != nil {
			return nil, errors.Wrap(err, "receiving FETCH answer failed")
		}

		if strings.HasPrefix(line, fmt.Sprintf("%s ", tag)) {

			status := strings.TrimPrefix(line, fmt.Sprintf("%s ", tag))
			if !strings.HasPrefix(status, "OK") {
				return nil, errors.Errorf("authority answered: %s", status)
			}

			return msgs, nil
		}

		// Untagged FETCH answers arrive as counted literals.
		_, uid, numBytes, ok := imap.ParseLiteralHeader(line)
		if !ok {
			continue
		}

		raw, err := c.conn.ReadLiteral(numBytes)
		if err != nil {
			return nil, errors.Wrap(err, "reading literal body failed")
		}

		msg, err := ParseMessage(uid, raw)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing message with UID %d failed", uid)
		}

		msgs = append(msgs, msg)
	}
}

// FetchUID retrieves one message by UID from the selected
// folder. A UID the folder does not contain yields nil.
func (c *Client) FetchUID(uid uint32) (*Message, error) {

	msgs, err := c.fetchSet(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return nil, err
	}

	if len(msgs) == 0 {
		return nil, nil
	}

	return msgs[0], nil
}

// FetchAll retrieves every message of the selected folder.
func (c *Client) FetchAll() ([]*Message, error) {

	uids, err := c.SearchUIDs("ALL")
	if err != nil {
		return nil, err
	}

	if len(uids) == 0 {
		return nil, nil
	}

	return c.fetchSet(formatSet(uids))
}

// FetchUnseen retrieves every message of the selected
// folder not flagged \Seen.
func (c *Client) FetchUnseen() ([]*Message, error) {

	uids, err := c.SearchUIDs("UNSEEN")
	if err != nil {
		return nil, err
	}

	if len(uids) == 0 {
		return nil, nil
	}

	return c.fetchSet(formatSet(uids))
}

// FetchSince retrieves every message of the selected folder
// dated on or after the supplied day.
func (c *Client) FetchSince(day string) ([]*Message, error) {

	uids, err := c.SearchUIDs(fmt.Sprintf("SINCE %s", day))
	if err != nil {
		return nil, err
	}

	if len(uids) == 0 {
		return nil, nil
	}

	return c.fetchSet(formatSet(uids))
}

// FetchDateRange retrieves every message of the selected
// folder dated on or after since and strictly before before.
func (c *Client) FetchDateRange(since string, before string) ([]*Message, error) {

	uids, err := c.SearchUIDs(fmt.Sprintf("SINCE %s BEFORE %s", since, before))
	if err != nil {
		return nil, err
	}

	if len(uids) == 0 {
		return nil, nil
	}

	return c.fetchSet(formatSet(uids))
}

// FetchLastN retrieves the n most recently added messages
// of the selected folder, in folder order.
func (c *Client) FetchLastN(n int) ([]*Message, error) {

	uids, err := c.SearchUIDs("ALL")
	if err != nil {
		return nil, err
	}

	if len(uids) > n {
		uids = uids[(len(uids) - n):]
	}

	if len(uids) == 0 {
		return nil, nil
	}

	return c.fetchSet(formatSet(uids))
}

// Logout ends the session at the authority and closes the
// underlying connection.
func (c *Client) Logout() error {

	_, _, err := c.do("LOGOUT")

	closeErr := c.conn.Close()
	if err != nil {
		return err
	}

	return closeErr
}

// Close terminates the connection without a LOGOUT.
func (c *Client) Close() error {
	return c.conn.Close()
}

// formatSet renders a UID list as comma-separated set
// notation.
func formatSet(uids []uint32) string {

	elements := make([]string, len(uids))
	for i, uid := range uids {
		elements[i] = strconv.FormatUint(uint64(uid), 10)
	}

	return strings.Join(elements, ",")
}
