package server

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-kit/kit/log/level"
	"github.com/larkmail/lark/imap"
	"github.com/larkmail/lark/mailbox"
)

// Functions

// trimQuotes removes one optional layer of double quotes
// around a mailbox name argument.
func trimQuotes(name string) string {

	if len(name) > 1 && strings.HasPrefix(name, "\"") && strings.HasSuffix(name, "\"") {
		return name[1 : len(name)-1]
	}

	return name
}

// Capability handles a CAPABILITY request and advertises
// the supported feature set of this authority.
func (s *Server) Capability(c *imap.Connection, req *imap.Request, session *Session) bool {

	if len(req.Payload) > 0 {

		// If payload was not empty to CAPABILITY command,
		// this is a client error. Return BAD statement.
		err := c.Send(fmt.Sprintf("%s BAD Command CAPABILITY was sent with extra parameters", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	// The TLS upgrade has already happened at this point,
	// but STARTTLS stays advertised as offered capability.
	err := c.Send(fmt.Sprintf("* CAPABILITY IMAP4rev1 STARTTLS\r\n%s OK CAPABILITY completed", req.Tag))
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
			"err", err,
		)
		return false
	}

	return true
}

// Noop handles a NOOP request, which requires no action
// besides a tagged confirmation.
func (s *Server) Noop(c *imap.Connection, req *imap.Request, session *Session) bool {

	if len(req.Payload) > 0 {

		err := c.Send(fmt.Sprintf("%s BAD Command NOOP was sent with extra parameters", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	err := c.Send(fmt.Sprintf("%s OK NOOP completed", req.Tag))
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
			"err", err,
		)
		return false
	}

	return true
}

// StartTLS answers a repeated upgrade request on an already
// encrypted connection with a tagged error.
func (s *Server) StartTLS(c *imap.Connection, req *imap.Request, session *Session) bool {

	err := c.Send(fmt.Sprintf("%s BAD TLS is already active", req.Tag))
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
			"err", err,
		)
		return false
	}

	return true
}

// Login validates the supplied credential pair against the
// configured authenticator. A malformed LOGIN terminates
// the connection.
func (s *Server) Login(c *imap.Connection, req *imap.Request, session *Session) bool {

	// Split payload on every space character.
	userCredentials := strings.Split(req.Payload, " ")

	if len(userCredentials) != 2 {

		// If payload did not contain exactly two elements,
		// this is a client error. Return BAD statement and
		// terminate the connection.
		err := c.Send(fmt.Sprintf("%s BAD Command LOGIN was not sent with exactly two parameters", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
		}

		return false
	}

	err := s.authenticator.AuthenticatePlain(trimQuotes(userCredentials[0]), trimQuotes(userCredentials[1]), session.ClientAddr)
	if err != nil {

		// If supplied credentials failed to authenticate client,
		// they are invalid. Return NO statement.
		err := c.Send(fmt.Sprintf("%s NO Name and / or password wrong", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	session.UserName = trimQuotes(userCredentials[0])
	s.Metrics.Logins.Add(1)

	err = c.Send(fmt.Sprintf("%s OK LOGIN completed", req.Tag))
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
			"err", err,
		)
		return false
	}

	return true
}

// Logout sends the untagged BYE and the tagged confirmation
// that conclude a session.
func (s *Server) Logout(c *imap.Connection, req *imap.Request, session *Session) bool {

	if len(req.Payload) > 0 {

		err := c.Send(fmt.Sprintf("%s BAD Command LOGOUT was sent with extra parameters", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	s.Metrics.Logouts.Add(1)

	err := c.Send(fmt.Sprintf("* BYE Terminating connection\r\n%s OK LOGOUT completed", req.Tag))
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
			"err", err,
		)
		return false
	}

	return true
}

// List enumerates every folder of the mailbox with one
// untagged LIST line each.
func (s *Server) List(c *imap.Connection, req *imap.Request, session *Session) bool {

	var answer strings.Builder

	for _, folder := range s.mailbox.Snapshot() {
		fmt.Fprintf(&answer, "* LIST (\\HasNoChildren) \"/\" \"%s\"\r\n", folder.Name)
	}

	fmt.Fprintf(&answer, "%s OK LIST completed", req.Tag)

	err := c.Send(answer.String())
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
			"err", err,
		)
		return false
	}

	return true
}

// Select marks the supplied folder as the target of all
// following folder-scoped commands in this session and
// reports its status counts to the client.
func (s *Server) Select(c *imap.Connection, req *imap.Request, session *Session) bool {

	if len(req.Payload) < 1 {

		err := c.Send(fmt.Sprintf("%s BAD Command SELECT was not sent with a folder name", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	folder, found := s.mailbox.Lookup(trimQuotes(req.Payload))
	if !found {

		// An unknown folder leaves a prior selection untouched.
		err := c.Send(fmt.Sprintf("%s NO Folder not found", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	var answer strings.Builder

	fmt.Fprintf(&answer, "* FLAGS (\\Answered \\Flagged \\Deleted \\Seen \\Draft)\r\n")
	fmt.Fprintf(&answer, "* %d EXISTS\r\n", len(folder.Messages))
	fmt.Fprintf(&answer, "* 0 RECENT\r\n")
	fmt.Fprintf(&answer, "* OK [UIDVALIDITY 1] UIDs valid\r\n")
	fmt.Fprintf(&answer, "* OK [UIDNEXT %d] Predicted next UID\r\n", folder.NextUID())
	fmt.Fprintf(&answer, "* OK [PERMANENTFLAGS (\\Seen \\Deleted)] Limited\r\n")

	if unseen, ok := folder.FirstUnseen(); ok {
		fmt.Fprintf(&answer, "* OK [UNSEEN %d] First unseen message\r\n", unseen)
	}

	fmt.Fprintf(&answer, "%s OK [READ-WRITE] SELECT completed", req.Tag)

	err := c.Send(answer.String())
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
			"err", err,
		)
		return false
	}

	session.SelectedFolder = folder.Name

	return true
}

// Search evaluates the supplied criteria against every
// message of the selected folder and reports matching UIDs
// in one untagged SEARCH line.
func (s *Server) Search(c *imap.Connection, req *imap.Request, session *Session) bool {

	if session.SelectedFolder == "" {

		err := c.Send(fmt.Sprintf("%s BAD No folder selected", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	folder, found := s.mailbox.Lookup(session.SelectedFolder)
	if !found {

		err := c.Send(fmt.Sprintf("%s BAD Folder not found", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	keys, parseErr := imap.ParseSearch(req.Payload)
	if parseErr != nil {

		err := c.Send(fmt.Sprintf("%s BAD Invalid search criteria", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	matched := make([]string, 0, len(folder.Messages))
	for _, msg := range folder.Messages {

		if imap.MatchesAll(keys, msg.Seen, msg.Raw) {
			matched = append(matched, strconv.FormatUint(uint64(msg.UID), 10))
		}
	}

	// The untagged SEARCH line is emitted even
	// when no message matched.
	answer := "* SEARCH"
	if len(matched) > 0 {
		answer = fmt.Sprintf("* SEARCH %s", strings.Join(matched, " "))
	}

	err := c.Send(fmt.Sprintf("%s\r\n%s OK SEARCH completed", answer, req.Tag))
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
			"err", err,
		)
		return false
	}

	return true
}

// Fetch streams the raw body of every requested message as
// a counted literal. UIDs absent from the folder are skipped
// without notice.
func (s *Server) Fetch(c *imap.Connection, req *imap.Request, session *Session) bool {

	if session.SelectedFolder == "" {

		err := c.Send(fmt.Sprintf("%s BAD No folder selected", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	folder, found := s.mailbox.Lookup(session.SelectedFolder)
	if !found {

		err := c.Send(fmt.Sprintf("%s BAD Folder not found", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	// First payload element is the UID set, any data item
	// names after it are accepted but not interpreted.
	elements := strings.Fields(req.Payload)
	if len(elements) < 1 {

		err := c.Send(fmt.Sprintf("%s BAD Command FETCH was not sent with a sequence set", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	uids, parseErr := imap.ParseSequenceSet(elements[0], folder.MaxUID())
	if parseErr != nil {

		err := c.Send(fmt.Sprintf("%s BAD Invalid sequence set", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	for _, uid := range uids {

		for i, msg := range folder.Messages {

			if msg.UID != uid {
				continue
			}

			err := c.SendLiteral((i + 1), msg.UID, msg.Raw)
			if err != nil {
				level.Error(s.logger).Log(
					"msg", fmt.Sprintf("error while sending literal to client %s", session.ClientAddr),
					"err", err,
				)
				return false
			}

			break
		}
	}

	err := c.Send(fmt.Sprintf("%s OK FETCH completed", req.Tag))
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
			"err", err,
		)
		return false
	}

	return true
}

// Store alters the flags kept per message for the supplied
// UID set. Unless the .SILENT suffix was used, one untagged
// FETCH line reports the resulting flags of each updated
// message.
func (s *Server) Store(c *imap.Connection, req *imap.Request, session *Session) bool {

	if session.SelectedFolder == "" {

		err := c.Send(fmt.Sprintf("%s BAD No folder selected", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	folder, found := s.mailbox.Lookup(session.SelectedFolder)
	if !found {

		err := c.Send(fmt.Sprintf("%s BAD Folder not found", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	elements := strings.Fields(req.Payload)
	if len(elements) < 2 {

		err := c.Send(fmt.Sprintf("%s BAD Command STORE was not sent with enough parameters", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	uids, parseErr := imap.ParseSequenceSet(elements[0], folder.MaxUID())
	if parseErr != nil {

		err := c.Send(fmt.Sprintf("%s BAD Invalid sequence set", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	// Second element is the data item name, optionally
	// carrying the .SILENT suffix.
	item := strings.ToUpper(elements[1])
	silent := strings.HasSuffix(item, ".SILENT")
	item = strings.TrimSuffix(item, ".SILENT")

	var mode mailbox.StoreMode
	switch item {
	case "+FLAGS":
		mode = mailbox.StoreAdd
	case "-FLAGS":
		mode = mailbox.StoreRemove
	case "FLAGS":
		mode = mailbox.StoreReplace
	default:

		err := c.Send(fmt.Sprintf("%s BAD Invalid STORE data item", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	// Remaining elements name the flags, with or without
	// a surrounding parenthesized list.
	flagList := strings.Join(elements[2:], " ")
	flagList = strings.TrimPrefix(flagList, "(")
	flagList = strings.TrimSuffix(flagList, ")")

	seen := false
	deleted := false
	for _, flag := range strings.Fields(flagList) {

		switch flag {
		case imap.FlagSeen:
			seen = true
		case imap.FlagDeleted:
			deleted = true
		}
	}

	updates, updErr := s.mailbox.UpdateFlags(session.SelectedFolder, uids, mode, seen, deleted)
	if updErr != nil {

		err := c.Send(fmt.Sprintf("%s BAD Folder not found", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	var answer strings.Builder

	if !silent {

		for _, upd := range updates {
			fmt.Fprintf(&answer, "* %d FETCH (UID %d FLAGS (%s))\r\n", upd.Seq, upd.UID, strings.Join(upd.Flags, " "))
		}
	}

	fmt.Fprintf(&answer, "%s OK STORE completed", req.Tag)

	err := c.Send(answer.String())
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
			"err", err,
		)
		return false
	}

	return true
}

// Copy duplicates the supplied UID set from the selected
// folder into a destination folder.
func (s *Server) Copy(c *imap.Connection, req *imap.Request, session *Session) bool {

	if session.SelectedFolder == "" {

		err := c.Send(fmt.Sprintf("%s BAD No folder selected", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	elements := strings.SplitN(req.Payload, " ", 2)
	if len(elements) != 2 {

		err := c.Send(fmt.Sprintf("%s BAD Command COPY was not sent with enough parameters", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	folder, found := s.mailbox.Lookup(session.SelectedFolder)
	if !found {

		err := c.Send(fmt.Sprintf("%s BAD Source folder not found", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	uids, parseErr := imap.ParseSequenceSet(elements[0], folder.MaxUID())
	if parseErr != nil {

		err := c.Send(fmt.Sprintf("%s BAD Invalid sequence set", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	copyErr := s.mailbox.Copy(session.SelectedFolder, trimQuotes(strings.TrimSpace(elements[1])), uids)

	if copyErr == mailbox.ErrNoDestination {

		// The TRYCREATE response code invites the client
		// to create the folder and retry.
		err := c.Send(fmt.Sprintf("%s NO [TRYCREATE] Destination folder not found", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	if copyErr != nil {

		err := c.Send(fmt.Sprintf("%s BAD Source folder not found", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	err := c.Send(fmt.Sprintf("%s OK COPY completed", req.Tag))
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
			"err", err,
		)
		return false
	}

	return true
}

// Expunge removes all messages flagged \Deleted from the
// selected folder and reports one untagged EXPUNGE line per
// removal, renumbered against the shrinking folder.
func (s *Server) Expunge(c *imap.Connection, req *imap.Request, session *Session) bool {

	if session.SelectedFolder == "" {

		err := c.Send(fmt.Sprintf("%s BAD No folder selected", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	if len(req.Payload) > 0 {

		err := c.Send(fmt.Sprintf("%s BAD Command EXPUNGE was sent with extra parameters", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	seqs, expErr := s.mailbox.Expunge(session.SelectedFolder)
	if expErr != nil {

		err := c.Send(fmt.Sprintf("%s BAD Folder not found", req.Tag))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
				"err", err,
			)
			return false
		}

		return true
	}

	var answer strings.Builder

	for _, seq := range seqs {
		fmt.Fprintf(&answer, "* %d EXPUNGE\r\n", seq)
	}

	fmt.Fprintf(&answer, "%s OK EXPUNGE completed", req.Tag)

	err := c.Send(answer.String())
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while sending text to client %s", session.ClientAddr),
			"err", err,
		)
		return false
	}

	return true
}
