package imap

// Constants

// Wire representations of the system flags lark
// tracks on messages. Arbitrary keyword flags are
// accepted on the wire but not modelled.
const (
	FlagSeen     = "\\Seen"
	FlagAnswered = "\\Answered"
	FlagFlagged  = "\\Flagged"
	FlagDeleted  = "\\Deleted"
	FlagDraft    = "\\Draft"
)
