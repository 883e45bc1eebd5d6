package server

import (
	"net"
	"strings"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/larkmail/lark/auth"
	"github.com/larkmail/lark/imap"
	"github.com/larkmail/lark/mailbox"
	"github.com/stretchr/testify/assert"
)

// Functions

func testServer() *Server {

	mb := mailbox.NewBuilder().
		Folder("INBOX").
		Message(1, true, []byte("From: alice@example.org\r\nDate: Mon, 02 Jan 2006 10:00:00 +0000\r\nSubject: first\r\n\r\nbody one\r\n")).
		Message(2, false, []byte("From: bob@example.org\r\nDate: Tue, 03 Jan 2006 10:00:00 +0000\r\nSubject: second\r\n\r\nbody two\r\n")).
		Message(3, false, []byte("From: carol@example.org\r\nDate: Wed, 04 Jan 2006 10:00:00 +0000\r\nSubject: third\r\n\r\nbody three\r\n")).
		Folder("Archive").
		Build()

	return &Server{
		logger:        log.NewNopLogger(),
		greeting:      "lark test ready",
		authenticator: auth.NewAcceptAll(),
		mailbox:       mb,
		Metrics: Metrics{
			Logins:   discard.NewCounter(),
			Logouts:  discard.NewCounter(),
			Commands: discard.NewCounter(),
		},
	}
}

// runCommand parses one raw request line, hands it to the
// matching handler and returns all response lines it sent.
func runCommand(t *testing.T, s *Server, session *Session, raw string) []string {

	req, err := imap.ParseRequest(raw)
	if err != nil {
		t.Fatalf("expected parseable command '%s' but received: '%s'", raw, err.Error())
	}

	serverSide, clientSide := net.Pipe()

	go func() {

		c := imap.NewConnection(serverSide)

		switch req.Command {
		case "CAPABILITY":
			s.Capability(c, req, session)
		case "NOOP":
			s.Noop(c, req, session)
		case "STARTTLS":
			s.StartTLS(c, req, session)
		case "LOGIN":
			s.Login(c, req, session)
		case "LOGOUT":
			s.Logout(c, req, session)
		case "LIST":
			s.List(c, req, session)
		case "SELECT":
			s.Select(c, req, session)
		case "SEARCH":
			s.Search(c, req, session)
		case "FETCH":
			s.Fetch(c, req, session)
		case "STORE":
			s.Store(c, req, session)
		case "COPY":
			s.Copy(c, req, session)
		case "EXPUNGE":
			s.Expunge(c, req, session)
		default:
			t.Errorf("no handler for command '%s'", req.Command)
		}

		serverSide.Close()
	}()

	c := imap.NewConnection(clientSide)

	var lines []string
	for {
		line, err := c.Receive()
		if err != nil {
			break
		}
		lines = append(lines, line)
	}

	clientSide.Close()

	return lines
}

// TestCapability executes a black-box table test on the
// implemented Capability() function.
func TestCapability(t *testing.T) {

	s := testServer()
	session := &Session{ClientAddr: "127.0.0.1:54321"}

	answer := runCommand(t, s, session, "a001 CAPABILITY")
	assert.Equal(t, []string{"* CAPABILITY IMAP4rev1 STARTTLS", "a001 OK CAPABILITY completed"}, answer)

	answer = runCommand(t, s, session, "b001 CAPABILITY extra")
	assert.Equal(t, []string{"b001 BAD Command CAPABILITY was sent with extra parameters"}, answer)
}

// TestNoopAndStartTLS covers the two trivial handlers.
func TestNoopAndStartTLS(t *testing.T) {

	s := testServer()
	session := &Session{ClientAddr: "127.0.0.1:54321"}

	answer := runCommand(t, s, session, "a001 NOOP")
	assert.Equal(t, []string{"a001 OK NOOP completed"}, answer)

	// The handlers only run on upgraded connections, a
	// repeated STARTTLS is rejected.
	answer = runCommand(t, s, session, "a002 STARTTLS")
	assert.Equal(t, []string{"a002 BAD TLS is already active"}, answer)
}

// TestLogin checks credential handling against the
// accept-all adapter and a file-backed rejection.
func TestLogin(t *testing.T) {

	s := testServer()
	session := &Session{ClientAddr: "127.0.0.1:54321"}

	answer := runCommand(t, s, session, "a001 LOGIN user secret")
	assert.Equal(t, []string{"a001 OK LOGIN completed"}, answer)
	assert.Equal(t, "user", session.UserName)

	answer = runCommand(t, s, session, "a002 LOGIN let me in please")
	assert.Equal(t, []string{"a002 BAD Command LOGIN was not sent with exactly two parameters"}, answer)

	s.authenticator = &auth.FileAuthenticator{Users: []auth.User{{Name: "alice", Password: "wonderland"}}}

	answer = runCommand(t, s, session, "a003 LOGIN smith sesame")
	assert.Equal(t, []string{"a003 NO Name and / or password wrong"}, answer)
}

// TestLogout checks the untagged BYE before the tagged
// confirmation.
func TestLogout(t *testing.T) {

	s := testServer()
	session := &Session{ClientAddr: "127.0.0.1:54321"}

	answer := runCommand(t, s, session, "a001 LOGOUT")
	assert.Equal(t, []string{"* BYE Terminating connection", "a001 OK LOGOUT completed"}, answer)

	answer = runCommand(t, s, session, "b01 LOGOUT some more parameters")
	assert.Equal(t, []string{"b01 BAD Command LOGOUT was sent with extra parameters"}, answer)
}

// TestList checks one untagged LIST line per folder.
func TestList(t *testing.T) {

	s := testServer()
	session := &Session{ClientAddr: "127.0.0.1:54321"}

	answer := runCommand(t, s, session, "a001 LIST \"\" \"*\"")
	assert.Equal(t, []string{
		"* LIST (\\HasNoChildren) \"/\" \"INBOX\"",
		"* LIST (\\HasNoChildren) \"/\" \"Archive\"",
		"a001 OK LIST completed",
	}, answer)
}

// TestSelect checks the status lines of a successful SELECT
// and that a failed one keeps the previous selection.
func TestSelect(t *testing.T) {

	s := testServer()
	session := &Session{ClientAddr: "127.0.0.1:54321"}

	answer := runCommand(t, s, session, "a001 SELECT INBOX")
	assert.Equal(t, []string{
		"* FLAGS (\\Answered \\Flagged \\Deleted \\Seen \\Draft)",
		"* 3 EXISTS",
		"* 0 RECENT",
		"* OK [UIDVALIDITY 1] UIDs valid",
		"* OK [UIDNEXT 4] Predicted next UID",
		"* OK [PERMANENTFLAGS (\\Seen \\Deleted)] Limited",
		"* OK [UNSEEN 2] First unseen message",
		"a001 OK [READ-WRITE] SELECT completed",
	}, answer)
	assert.Equal(t, "INBOX", session.SelectedFolder)

	// Lowercase inbox resolves to the same folder.
	answer = runCommand(t, s, session, "a002 SELECT inbox")
	assert.Equal(t, "a002 OK [READ-WRITE] SELECT completed", answer[len(answer)-1])
	assert.Equal(t, "INBOX", session.SelectedFolder)

	// An unknown folder answers NO and leaves the
	// selection in place.
	answer = runCommand(t, s, session, "a003 SELECT Nonexistent")
	assert.Equal(t, []string{"a003 NO Folder not found"}, answer)
	assert.Equal(t, "INBOX", session.SelectedFolder)

	// A fully seen folder emits no UNSEEN line.
	answer = runCommand(t, s, session, "a004 SELECT Archive")
	for _, line := range answer {
		assert.False(t, strings.Contains(line, "UNSEEN"), "unexpected UNSEEN line for empty folder: '%s'", line)
	}
}

// TestSearch checks criteria evaluation and the mandatory
// untagged SEARCH line.
func TestSearch(t *testing.T) {

	s := testServer()

	// SEARCH without selection is an error.
	session := &Session{ClientAddr: "127.0.0.1:54321"}
	answer := runCommand(t, s, session, "a001 SEARCH ALL")
	assert.Equal(t, []string{"a001 BAD No folder selected"}, answer)

	session.SelectedFolder = "INBOX"

	answer = runCommand(t, s, session, "a002 SEARCH ALL")
	assert.Equal(t, []string{"* SEARCH 1 2 3", "a002 OK SEARCH completed"}, answer)

	answer = runCommand(t, s, session, "a003 SEARCH UNSEEN")
	assert.Equal(t, []string{"* SEARCH 2 3", "a003 OK SEARCH completed"}, answer)

	answer = runCommand(t, s, session, "a004 SEARCH SINCE 4-Jan-2006")
	assert.Equal(t, []string{"* SEARCH 3", "a004 OK SEARCH completed"}, answer)

	// The untagged line appears even with no match.
	answer = runCommand(t, s, session, "a005 SEARCH SEEN SINCE 3-Jan-2006")
	assert.Equal(t, []string{"* SEARCH", "a005 OK SEARCH completed"}, answer)

	answer = runCommand(t, s, session, "a006 SEARCH SINCE")
	assert.Equal(t, []string{"a006 BAD Invalid search criteria"}, answer)
}

// TestFetch checks literal framing and the silent skip of
// absent UIDs.
func TestFetch(t *testing.T) {

	s := testServer()
	session := &Session{ClientAddr: "127.0.0.1:54321", SelectedFolder: "INBOX"}

	answer := runCommand(t, s, session, "a001 FETCH 2 BODY[]")
	assert.True(t, len(answer) > 2, "expected literal lines but received %v", answer)
	assert.Equal(t, "* 2 FETCH (UID 2 BODY[] {91}", answer[0])
	assert.Equal(t, ")", answer[len(answer)-2])
	assert.Equal(t, "a001 OK FETCH completed", answer[len(answer)-1])

	// UIDs 4 and up do not exist, only UID 3 answers.
	answer = runCommand(t, s, session, "a002 FETCH 3:5 BODY[]")
	assert.Equal(t, "* 3 FETCH (UID 3 BODY[] {94}", answer[0])
	assert.Equal(t, "a002 OK FETCH completed", answer[len(answer)-1])

	// A fully absent UID set completes with no data lines.
	answer = runCommand(t, s, session, "a003 FETCH 99 BODY[]")
	assert.Equal(t, []string{"a003 OK FETCH completed"}, answer)

	answer = runCommand(t, s, session, "a004 FETCH x BODY[]")
	assert.Equal(t, []string{"a004 BAD Invalid sequence set"}, answer)

	session.SelectedFolder = ""
	answer = runCommand(t, s, session, "a005 FETCH 1 BODY[]")
	assert.Equal(t, []string{"a005 BAD No folder selected"}, answer)
}

// TestStore checks the three data items and the .SILENT
// suffix.
func TestStore(t *testing.T) {

	s := testServer()
	session := &Session{ClientAddr: "127.0.0.1:54321", SelectedFolder: "INBOX"}

	answer := runCommand(t, s, session, "a001 STORE 2,3 +FLAGS (\\Seen)")
	assert.Equal(t, []string{
		"* 2 FETCH (UID 2 FLAGS (\\Seen))",
		"* 3 FETCH (UID 3 FLAGS (\\Seen))",
		"a001 OK STORE completed",
	}, answer)

	answer = runCommand(t, s, session, "a002 STORE 2 -FLAGS.SILENT (\\Seen)")
	assert.Equal(t, []string{"a002 OK STORE completed"}, answer)

	folder, _ := s.mailbox.Lookup("INBOX")
	assert.False(t, folder.Messages[1].Seen)
	assert.True(t, folder.Messages[2].Seen)

	answer = runCommand(t, s, session, "a003 STORE 1 FLAGS (\\Deleted)")
	assert.Equal(t, []string{
		"* 1 FETCH (UID 1 FLAGS (\\Deleted))",
		"a003 OK STORE completed",
	}, answer)

	answer = runCommand(t, s, session, "a004 STORE 1 GROW (\\Seen)")
	assert.Equal(t, []string{"a004 BAD Invalid STORE data item"}, answer)
}

// TestCopy checks the destination handling including the
// TRYCREATE advice.
func TestCopy(t *testing.T) {

	s := testServer()
	session := &Session{ClientAddr: "127.0.0.1:54321", SelectedFolder: "INBOX"}

	answer := runCommand(t, s, session, "a001 COPY 1,2 Archive")
	assert.Equal(t, []string{"a001 OK COPY completed"}, answer)

	dest, _ := s.mailbox.Lookup("Archive")
	assert.Equal(t, 2, len(dest.Messages))

	src, _ := s.mailbox.Lookup("INBOX")
	assert.Equal(t, 3, len(src.Messages))

	answer = runCommand(t, s, session, "a002 COPY 1 Nonexistent")
	assert.Equal(t, []string{"a002 NO [TRYCREATE] Destination folder not found"}, answer)

	session.SelectedFolder = ""
	answer = runCommand(t, s, session, "a003 COPY 1 Archive")
	assert.Equal(t, []string{"a003 BAD No folder selected"}, answer)
}

// TestExpunge checks the renumbered untagged EXPUNGE lines.
func TestExpunge(t *testing.T) {

	s := testServer()
	session := &Session{ClientAddr: "127.0.0.1:54321", SelectedFolder: "INBOX"}

	answer := runCommand(t, s, session, "a001 STORE 1,3 +FLAGS.SILENT (\\Deleted)")
	assert.Equal(t, []string{"a001 OK STORE completed"}, answer)

	answer = runCommand(t, s, session, "a002 EXPUNGE")
	assert.Equal(t, []string{
		"* 1 EXPUNGE",
		"* 2 EXPUNGE",
		"a002 OK EXPUNGE completed",
	}, answer)

	folder, _ := s.mailbox.Lookup("INBOX")
	assert.Equal(t, 1, len(folder.Messages))
	assert.Equal(t, uint32(2), folder.Messages[0].UID)

	answer = runCommand(t, s, session, "a003 EXPUNGE extra")
	assert.Equal(t, []string{"a003 BAD Command EXPUNGE was sent with extra parameters"}, answer)
}
