package app

import "github.com/google/uuid"

func newID() string {
	return uuid.NewString()
}

func isValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
