package utils

import "unicode"

// MaxUserIDLength bounds user ids accepted from the gateway header.
const MaxUserIDLength = 128

// IsValidUserID reports whether id can be stored as a user id: non-empty,
// bounded, and made of printable characters without spaces.
func IsValidUserID(id string) bool {
	if id == "" || len(id) > MaxUserIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case unicode.IsSpace(r):
			return false
		case !unicode.IsPrint(r):
			return false
		}
	}
	return true
}
