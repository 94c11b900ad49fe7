package ports

import (
	"context"
)

// GitInfo is the repository context stamped on a work interval.
type GitInfo struct {
	Branch  string
	Commit  string
	Subject string
	Dirty   bool
}

// ShortCommit returns the abbreviated commit hash.
func (g GitInfo) ShortCommit() string {
	if len(g.Commit) > 7 {
		return g.Commit[:7]
	}
	return g.Commit
}

// GitDetector defines the interface for git context detection.
// This is a driven port (implemented by adapters).
type GitDetector interface {
	// Detect reads the repository containing workingDir.
	Detect(ctx context.Context, workingDir string) (*GitInfo, error)
}
