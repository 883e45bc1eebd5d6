package mailbox

// Structs

// Builder constructs a mailbox step by step. Call Folder to
// start a new folder, then chain Message calls to fill it,
// and finish with Build.
type Builder struct {
	folders []Folder
}

// Functions

// NewBuilder returns an empty mailbox builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Folder adds a new folder. Subsequent Message calls add
// to this folder.
func (b *Builder) Folder(name string) *Builder {

	b.folders = append(b.folders, Folder{Name: name})

	return b
}

// Message adds a message to the most recently added folder.
// It panics when called before any Folder call, which is a
// programming error in test setup code.
func (b *Builder) Message(uid uint32, seen bool, raw []byte) *Builder {

	if len(b.folders) == 0 {
		panic("mailbox: call Folder before Message")
	}

	last := len(b.folders) - 1
	b.folders[last].Messages = append(b.folders[last].Messages, Message{
		UID:  uid,
		Seen: seen,
		Raw:  raw,
	})

	return b
}

// Build finalizes the builder into a ready mailbox.
func (b *Builder) Build() *Mailbox {
	return NewMailbox(b.folders...)
}
