package login

import (
	"strings"

	"github.com/AlexZinkM/abc-core/abc"
)

// FixUsername normalizes a username: lower case, runs of whitespace
// collapsed to one space, trimmed. Only printable ASCII is allowed.
func FixUsername(username string) (string, error) {
	fixed := strings.Join(strings.Fields(strings.ToLower(username)), " ")
	if fixed == "" {
		return "", &abc.ValidationError{Message: "username must not be empty"}
	}
	for _, r := range fixed {
		if r < 0x20 || r > 0x7e {
			return "", &abc.ValidationError{Message: "username must be printable ASCII"}
		}
	}
	return fixed, nil
}
