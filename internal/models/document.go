package models

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Document is a resume file queued for upload.
type Document struct {
	Name string
	Data []byte
}

// ReadDocuments loads each path from disk. Directories are rejected.
func ReadDocuments(paths []string) ([]Document, error) {
	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", p)
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		docs = append(docs, Document{Name: filepath.Base(p), Data: data})
	}
	return docs, nil
}

func IsResumeFile(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}
