// Package mailbox holds the ephemeral in-memory model of
// folders, messages and flags shared by all connections of
// a lark authority. All mutations happen inside short
// critical sections with no I/O, readers work on deep
// snapshots taken under the same lock.
package mailbox

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Variables

// ErrNoFolder indicates that the addressed folder does
// not exist in the mailbox.
var ErrNoFolder = errors.New("folder does not exist")

// ErrNoDestination indicates that the destination folder
// of a copy operation does not exist.
var ErrNoDestination = errors.New("destination folder does not exist")

// Constants

// StoreMode designates how a flag mutation combines the
// supplied flag set with a message's current flags.
type StoreMode int

// Flag combination modes: add the supplied flags, remove
// them, or replace the current set entirely.
const (
	StoreAdd StoreMode = iota
	StoreRemove
	StoreReplace
)

// Structs

// Message is one stored message. The sequence number is
// never stored, it is always derived from the message's
// current position inside its folder.
type Message struct {
	UID     uint32
	Seen    bool
	Deleted bool
	Raw     []byte
}

// Folder is a named, ordered sequence of messages.
type Folder struct {
	Name     string
	Messages []Message
}

// Mailbox is the set of all folders, guarded for
// concurrent access from multiple connection goroutines.
type Mailbox struct {
	lock    sync.RWMutex
	folders []Folder
}

// FlagUpdate captures the outcome of a flag mutation on
// one message: the sequence number and UID it had at the
// time of the update plus its resulting flag set.
type FlagUpdate struct {
	Seq   int
	UID   uint32
	Flags []string
}

// Functions

// NewMailbox constructs a mailbox from the supplied folders.
func NewMailbox(folders ...Folder) *Mailbox {

	mb := &Mailbox{
		folders: make([]Folder, 0, len(folders)),
	}

	for _, folder := range folders {
		mb.folders = append(mb.folders, cloneFolder(folder))
	}

	return mb
}

// NewStandardMailbox constructs a mailbox holding the
// well-known empty folders a fresh account starts with.
func NewStandardMailbox() *Mailbox {

	return NewMailbox(
		Folder{Name: "INBOX"},
		Folder{Name: "Sent"},
		Folder{Name: "Drafts"},
		Folder{Name: "Trash"},
		Folder{Name: "Spam"},
		Folder{Name: "Archive"},
	)
}

// folderIndex returns the position of the named folder.
// INBOX is matched case-insensitively, every other name
// is an exact match.
func folderIndex(folders []Folder, name string) int {

	for i := range folders {

		if folders[i].Name == name {
			return i
		}

		if strings.EqualFold(name, "INBOX") && strings.EqualFold(folders[i].Name, "INBOX") {
			return i
		}
	}

	return -1
}

func cloneFolder(folder Folder) Folder {

	clone := Folder{
		Name:     folder.Name,
		Messages: make([]Message, len(folder.Messages)),
	}

	for i, msg := range folder.Messages {

		raw := make([]byte, len(msg.Raw))
		copy(raw, msg.Raw)

		clone.Messages[i] = Message{
			UID:     msg.UID,
			Seen:    msg.Seen,
			Deleted: msg.Deleted,
			Raw:     raw,
		}
	}

	return clone
}

// Snapshot returns a deep copy of all folders taken under
// the mailbox lock. Callers can inspect and emit it without
// blocking concurrent mutations.
func (mb *Mailbox) Snapshot() []Folder {

	mb.lock.RLock()
	defer mb.lock.RUnlock()

	folders := make([]Folder, len(mb.folders))
	for i, folder := range mb.folders {
		folders[i] = cloneFolder(folder)
	}

	return folders
}

// Lookup returns a deep copy of one folder, if present.
func (mb *Mailbox) Lookup(name string) (Folder, bool) {

	mb.lock.RLock()
	defer mb.lock.RUnlock()

	i := folderIndex(mb.folders, name)
	if i < 0 {
		return Folder{}, false
	}

	return cloneFolder(mb.folders[i]), true
}

// UpdateFlags mutates the seen and deleted flags of every
// message in the folder whose UID appears in uids. Depending
// on mode the supplied flag values are added, removed or
// taken as the complete new flag set. It returns one update
// record per matched message, in folder order.
func (mb *Mailbox) UpdateFlags(folder string, uids []uint32, mode StoreMode, seen bool, deleted bool) ([]FlagUpdate, error) {

	mb.lock.Lock()
	defer mb.lock.Unlock()

	i := folderIndex(mb.folders, folder)
	if i < 0 {
		return nil, ErrNoFolder
	}

	updates := make([]FlagUpdate, 0, len(uids))

	for idx := range mb.folders[i].Messages {

		msg := &mb.folders[i].Messages[idx]

		if !containsUID(uids, msg.UID) {
			continue
		}

		switch mode {

		case StoreAdd:
			if seen {
				msg.Seen = true
			}
			if deleted {
				msg.Deleted = true
			}

		case StoreRemove:
			if seen {
				msg.Seen = false
			}
			if deleted {
				msg.Deleted = false
			}

		case StoreReplace:
			msg.Seen = seen
			msg.Deleted = deleted
		}

		updates = append(updates, FlagUpdate{
			Seq:   idx + 1,
			UID:   msg.UID,
			Flags: msg.FlagStrings(),
		})
	}

	return updates, nil
}

// Copy duplicates every message of the source folder whose
// UID appears in uids into the destination folder. The
// source folder stays untouched. Copies keep their UID if
// it is still free in the destination and receive the next
// free UID otherwise, preserving per-folder UID uniqueness.
func (mb *Mailbox) Copy(src string, dest string, uids []uint32) error {

	mb.lock.Lock()
	defer mb.lock.Unlock()

	si := folderIndex(mb.folders, src)
	if si < 0 {
		return ErrNoFolder
	}

	di := folderIndex(mb.folders, dest)
	if di < 0 {
		return ErrNoDestination
	}

	for _, msg := range mb.folders[si].Messages {

		if !containsUID(uids, msg.UID) {
			continue
		}

		raw := make([]byte, len(msg.Raw))
		copy(raw, msg.Raw)

		clone := Message{
			UID:     msg.UID,
			Seen:    msg.Seen,
			Deleted: msg.Deleted,
			Raw:     raw,
		}

		if uidTaken(mb.folders[di].Messages, clone.UID) {
			clone.UID = nextUID(mb.folders[di].Messages)
		}

		mb.folders[di].Messages = append(mb.folders[di].Messages, clone)
	}

	return nil
}

// Expunge removes every message flagged deleted from the
// folder. It returns the sequence number each message held
// at the moment of its own removal: removals are processed
// front to back, so each reported position accounts for the
// messages already removed in the same call.
func (mb *Mailbox) Expunge(folder string) ([]int, error) {

	mb.lock.Lock()
	defer mb.lock.Unlock()

	i := folderIndex(mb.folders, folder)
	if i < 0 {
		return nil, ErrNoFolder
	}

	seqs := make([]int, 0, 4)
	kept := make([]Message, 0, len(mb.folders[i].Messages))

	for idx, msg := range mb.folders[i].Messages {

		if msg.Deleted {
			seqs = append(seqs, idx+1-len(seqs))
			continue
		}

		kept = append(kept, msg)
	}

	mb.folders[i].Messages = kept

	return seqs, nil
}

// Helpers

func containsUID(uids []uint32, uid uint32) bool {

	for _, u := range uids {
		if u == uid {
			return true
		}
	}

	return false
}

func uidTaken(msgs []Message, uid uint32) bool {

	for _, msg := range msgs {
		if msg.UID == uid {
			return true
		}
	}

	return false
}

func nextUID(msgs []Message) uint32 {

	next := uint32(1)

	for _, msg := range msgs {
		if msg.UID >= next {
			next = msg.UID + 1
		}
	}

	return next
}

// NextUID reports the UID the next message arriving in this
// folder would receive: one above the highest UID present.
func (f Folder) NextUID() uint32 {
	return nextUID(f.Messages)
}

// FirstUnseen returns the 1-based position of the first
// message without the seen flag, if any.
func (f Folder) FirstUnseen() (int, bool) {

	for idx, msg := range f.Messages {
		if !msg.Seen {
			return idx + 1, true
		}
	}

	return 0, false
}

// MaxUID reports the highest UID present in the folder,
// or zero when it is empty.
func (f Folder) MaxUID() uint32 {

	max := uint32(0)

	for _, msg := range f.Messages {
		if msg.UID > max {
			max = msg.UID
		}
	}

	return max
}

// FlagStrings renders the message's current flags in their
// wire representation.
func (m Message) FlagStrings() []string {

	flags := make([]string, 0, 2)

	if m.Seen {
		flags = append(flags, "\\Seen")
	}

	if m.Deleted {
		flags = append(flags, "\\Deleted")
	}

	return flags
}
