package utils

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns a best-effort unique identifier usable as a path segment.
func NewID() string {
	id, err := uuid.NewRandom()
	if err == nil {
		return strings.ReplaceAll(id.String(), "-", "")
	}

	// Fallback to timestamp if the random source is unavailable.
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
