package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mgomes/resumefind/internal/models"
)

const helpText = "/upload <files or globs>  /source local|uploaded  /clear  /status  /quit"

type command struct {
	name string
	args []string
}

// parseCommand splits a slash command. ok is false for plain queries.
func parseCommand(line string) (command, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{}, false
	}
	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return command{name: ""}, true
	}
	return command{name: strings.ToLower(fields[0]), args: fields[1:]}, true
}

// ExpandPaths resolves ~ and globs to PDF files. Patterns without matches
// are an error so a typo never turns into an empty upload.
func ExpandPaths(args []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, arg := range args {
		pattern, err := expandHome(arg)
		if err != nil {
			return nil, err
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %s", arg)
		}

		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() || !models.IsResumeFile(m) {
				continue
			}
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no PDF resumes found")
	}
	return out, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
