package models

import (
	"fmt"
	"strings"
)

// Source names the resume corpus the backend searches against.
type Source string

const (
	SourceLocal    Source = "local"
	SourceUploaded Source = "uploaded"
)

func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceLocal:
		return SourceLocal, nil
	case SourceUploaded:
		return SourceUploaded, nil
	}
	return "", fmt.Errorf("unknown resume source %q (want %q or %q)", s, SourceLocal, SourceUploaded)
}

func (s Source) String() string {
	return string(s)
}
