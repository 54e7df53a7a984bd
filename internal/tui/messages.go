package tui

import "github.com/mgomes/resumefind/internal/session"

type SetupSubmitMsg struct {
	APIURL   string
	WatchDir string
}

type SetupErrorMsg struct {
	Error string
}

// StartedMsg carries the result of the startup status fetch.
type StartedMsg struct {
	Outcome session.Outcome
}

// OpDoneMsg carries the result of a finished session operation.
type OpDoneMsg struct {
	Outcome session.Outcome
}

// WatchedFilesMsg reports resumes that appeared in the watched inbox.
type WatchedFilesMsg struct {
	Paths []string
}

type openedMsg struct {
	url string
	err error
}
