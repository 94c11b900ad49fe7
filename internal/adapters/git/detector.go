// Package git reads the branch and commit of the repository a work
// interval was started in.
package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/xvierd/thirdtime/internal/ports"
)

// ErrNotRepository is returned when no repository contains the directory.
var ErrNotRepository = errors.New("not inside a git repository")

// Detector implements the ports.GitDetector interface using go-git.
type Detector struct {
	// CheckDirty also inspects the worktree, which is slow on big trees.
	CheckDirty bool
}

// NewDetector creates a new git detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Ensure Detector implements ports.GitDetector.
var _ ports.GitDetector = (*Detector)(nil)

// Detect opens the repository containing workingDir, walking up parent
// directories, and reads HEAD.
func (d *Detector) Detect(ctx context.Context, workingDir string) (*ports.GitInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repo, err := git.PlainOpenWithOptions(workingDir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNotRepository
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	info := &ports.GitInfo{
		Branch: head.Name().Short(),
		Commit: head.Hash().String(),
	}
	if !head.Name().IsBranch() {
		info.Branch = "HEAD detached"
	}

	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	info.Subject = strings.SplitN(commit.Message, "\n", 2)[0]

	if d.CheckDirty {
		worktree, err := repo.Worktree()
		if err != nil {
			return nil, fmt.Errorf("failed to get worktree: %w", err)
		}
		status, err := worktree.Status()
		if err != nil {
			return nil, fmt.Errorf("failed to get worktree status: %w", err)
		}
		info.Dirty = !status.IsClean()
	}

	return info, nil
}
