package utils

import (
	"crypto/rand"
	"strconv"
	"time"
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// SessionIDLength is the length of websocket session ids.
const SessionIDLength = 9

// NewID returns a random alphanumeric id of the given length.
func NewID(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		// Fallback to timestamp if crypto/rand is unavailable.
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(buf)
}

// NewSessionID returns an id for one websocket connection.
func NewSessionID() string {
	return NewID(SessionIDLength)
}
