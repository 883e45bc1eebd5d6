// Package imap provides the protocol primitives shared by the
// lark authority and client: tagged request parsing, line-based
// connection handling, counted literal framing, UID set parsing
// and search predicate evaluation.
package imap
