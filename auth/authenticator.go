// Package auth bundles the pluggable authentication adapters
// of a lark authority. Authentication policy is deliberately a
// seam: the default adapter accepts any offered credentials.
package auth

// Interfaces

// PlainAuthenticator defines the methods required to
// perform an IMAP LOGIN in order to reach authenticated
// state.
type PlainAuthenticator interface {

	// AuthenticatePlain will be implemented by each of the
	// authentication adapters to perform the actual part
	// of checking supplied credentials.
	AuthenticatePlain(username string, password string, clientAddr string) error
}

// Structs

// AcceptAll is the default authentication adapter. It
// accepts every well-formed username and password pair
// unconditionally.
type AcceptAll struct{}

// Functions

// NewAcceptAll returns the accept-everything adapter.
func NewAcceptAll() *AcceptAll {
	return &AcceptAll{}
}

// AuthenticatePlain accepts any offered credentials.
func (a *AcceptAll) AuthenticatePlain(username string, password string, clientAddr string) error {
	return nil
}
