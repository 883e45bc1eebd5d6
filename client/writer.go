package client

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/larkmail/lark/config"
	"github.com/larkmail/lark/imap"
	"github.com/pkg/errors"
)

// Structs

// ReadWriteClient extends the read-only handle with all
// state-changing operations. Obtain one via
// ConnectReadWrite, there is no way to promote an existing
// Client.
type ReadWriteClient struct {
	*Client
}

// Functions

// ConnectReadWrite dials, upgrades and logs in like Connect
// but returns a handle permitted to alter mailbox state.
func ConnectReadWrite(logger log.Logger, conf *config.Client) (*ReadWriteClient, error) {

	c, err := Connect(logger, conf)
	if err != nil {
		return nil, err
	}

	return &ReadWriteClient{Client: c}, nil
}

// StoreSilent applies one flag operation to the supplied
// UID set without requesting untagged flag reports. The
// item is one of +FLAGS, -FLAGS or FLAGS.
func (c *ReadWriteClient) StoreSilent(uids []uint32, item string, flags ...string) error {

	if len(uids) == 0 {
		return nil
	}

	_, _, err := c.do(fmt.Sprintf("STORE %s %s.SILENT (%s)", formatSet(uids), item, strings.Join(flags, " ")))
	return err
}

// AddFlag sets the supplied flag on every message of the
// UID set in the selected folder.
func (c *ReadWriteClient) AddFlag(uids []uint32, flag string) error {
	return c.StoreSilent(uids, "+FLAGS", flag)
}

// RemoveFlag clears the supplied flag on every message of
// the UID set in the selected folder.
func (c *ReadWriteClient) RemoveFlag(uids []uint32, flag string) error {
	return c.StoreSilent(uids, "-FLAGS", flag)
}

// MarkRead flags the supplied messages \Seen.
func (c *ReadWriteClient) MarkRead(uids []uint32) error {
	return c.AddFlag(uids, imap.FlagSeen)
}

// Copy duplicates the supplied UID set from the selected
// folder into the destination folder.
func (c *ReadWriteClient) Copy(uids []uint32, dest string) error {

	if len(uids) == 0 {
		return nil
	}

	_, _, err := c.do(fmt.Sprintf("COPY %s \"%s\"", formatSet(uids), dest))
	return err
}

// Expunge removes all messages flagged \Deleted from the
// selected folder and returns the sequence numbers the
// authority reported for the removals.
func (c *ReadWriteClient) Expunge() ([]int, error) {

	_, untagged, err := c.do("EXPUNGE")
	if err != nil {
		return nil, err
	}

	var seqs []int

	for _, line := range untagged {

		element, ok := strings.CutSuffix(line, " EXPUNGE")
		if !ok {
			continue
		}

		seq, err := strconv.Atoi(strings.TrimPrefix(element, "* "))
		if err != nil {
			return nil, errors.Wrapf(err, "malformed EXPUNGE answer '%s'", line)
		}

		seqs = append(seqs, seq)
	}

	return seqs, nil
}

// MoveToFolder copies the supplied messages to the
// destination folder, then deletes them from the selected
// folder. IMAP has no atomic move, this is the usual
// copy, flag and expunge sequence.
func (c *ReadWriteClient) MoveToFolder(uids []uint32, dest string) error {

	if len(uids) == 0 {
		return nil
	}

	if err := c.Copy(uids, dest); err != nil {
		return err
	}

	if err := c.AddFlag(uids, imap.FlagDeleted); err != nil {
		return err
	}

	_, err := c.Expunge()
	return err
}

// Archive moves the supplied messages from the selected
// folder into the Archive folder.
func (c *ReadWriteClient) Archive(uids []uint32) error {
	return c.MoveToFolder(uids, "Archive")
}

// UnmarkAllRead clears the \Seen flag on every message of
// the selected folder that carries it.
func (c *ReadWriteClient) UnmarkAllRead() error {

	uids, err := c.SearchUIDs("SEEN")
	if err != nil {
		return err
	}

	return c.RemoveFlag(uids, imap.FlagSeen)
}
