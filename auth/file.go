package auth

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Structs

// FileAuthenticator contains file based authentication
// information including the in-memory list of username
// to password mappings.
type FileAuthenticator struct {
	Users []User
}

// User holds name and password from one line of the
// users file.
type User struct {
	Name     string
	Password string
}

// Functions

// NewFileAuthenticator takes in a file name and a separator,
// reads in the specified file and parses it line by line as
// username - password elements separated by the separator.
func NewFileAuthenticator(file string, sep string) (*FileAuthenticator, error) {

	users := make([]User, 0, 16)

	// Open file with authentication information.
	handle, err := os.Open(file)
	if err != nil {
		return nil, errors.Wrap(err, "could not open supplied authentication file")
	}
	defer handle.Close()

	// As long as there are lines left, scan them into memory.
	scanner := bufio.NewScanner(handle)
	for scanner.Scan() {

		// Split read line based on separator defined in config.
		userData := strings.SplitN(scanner.Text(), sep, 2)
		if len(userData) != 2 {
			return nil, errors.Errorf("line in authentication file did not contain two fields separated by '%s'", sep)
		}

		users = append(users, User{
			Name:     userData[0],
			Password: userData[1],
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error while reading authentication file")
	}

	return &FileAuthenticator{Users: users}, nil
}

// AuthenticatePlain checks the supplied credentials against
// the users read from the authentication file.
func (f *FileAuthenticator) AuthenticatePlain(username string, password string, clientAddr string) error {

	for _, user := range f.Users {

		if (user.Name == username) && (user.Password == password) {
			return nil
		}
	}

	return errors.New("username not present or password wrong")
}
