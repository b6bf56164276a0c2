package store

import (
	"fmt"
	"regexp"
	"strings"
)

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// CleanPath trims surrounding slashes.
func CleanPath(p string) string {
	return strings.Trim(p, "/")
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

func splitPath(p string) ([]string, error) {
	p = CleanPath(p)
	if p == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	segments := strings.Split(p, "/")
	for _, s := range segments {
		if !segmentPattern.MatchString(s) {
			return nil, fmt.Errorf("%w: bad segment %q", ErrInvalidPath, s)
		}
	}
	return segments, nil
}

// ValidateDocumentPath checks that p addresses a document (even segment count).
func ValidateDocumentPath(p string) error {
	segments, err := splitPath(p)
	if err != nil {
		return err
	}
	if len(segments)%2 != 0 {
		return fmt.Errorf("%w: %q is a collection path", ErrInvalidPath, p)
	}
	return nil
}

// ValidateCollectionPath checks that p addresses a collection (odd segment count).
func ValidateCollectionPath(p string) error {
	segments, err := splitPath(p)
	if err != nil {
		return err
	}
	if len(segments)%2 != 1 {
		return fmt.Errorf("%w: %q is a document path", ErrInvalidPath, p)
	}
	return nil
}

// SplitDocumentPath returns the parent collection and the document ID.
func SplitDocumentPath(p string) (collection, id string, err error) {
	if err := ValidateDocumentPath(p); err != nil {
		return "", "", err
	}
	p = CleanPath(p)
	i := strings.LastIndex(p, "/")
	return p[:i], p[i+1:], nil
}
