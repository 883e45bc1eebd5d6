package auth_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/larkmail/lark/auth"
	"github.com/stretchr/testify/assert"
)

// Functions

// TestNewFileAuthenticator executes a black-box test on the
// file-backed authentication adapter.
func TestNewFileAuthenticator(t *testing.T) {

	userFile := filepath.Join(t.TempDir(), "users.txt")

	err := os.WriteFile(userFile, []byte("alice;wonderland\nbob;builder\n"), 0600)
	if err != nil {
		t.Fatal(err)
	}

	// A missing file is an error.
	_, err = auth.NewFileAuthenticator(filepath.Join(t.TempDir(), "missing.txt"), ";")
	assert.NotNil(t, err)

	authenticator, err := auth.NewFileAuthenticator(userFile, ";")
	if err != nil {
		t.Fatalf("expected success but received: '%s'", err.Error())
	}

	// Valid credentials pass.
	assert.Nil(t, authenticator.AuthenticatePlain("alice", "wonderland", "127.0.0.1:54321"))
	assert.Nil(t, authenticator.AuthenticatePlain("bob", "builder", "127.0.0.1:54321"))

	// Wrong password and unknown user fail.
	assert.NotNil(t, authenticator.AuthenticatePlain("alice", "builder", "127.0.0.1:54321"))
	assert.NotNil(t, authenticator.AuthenticatePlain("mallory", "evil", "127.0.0.1:54321"))
}

// TestAcceptAll checks that the permissive adapter admits
// any credential pair.
func TestAcceptAll(t *testing.T) {

	authenticator := auth.NewAcceptAll()

	assert.Nil(t, authenticator.AuthenticatePlain("anyone", "anything", "127.0.0.1:54321"))
	assert.Nil(t, authenticator.AuthenticatePlain("", "", "127.0.0.1:54321"))
}
