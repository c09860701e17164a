package assets

import (
	"context"
	"errors"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/oshokin/runtime-bundler/internal/failure"
	"github.com/oshokin/runtime-bundler/internal/logger"
)

var errNoRevision = errors.New("commit hash is not available")

// ResolveRevision returns the first non-empty variable of envNames, falling
// back to the HEAD commit of the git repository enclosing repoDir.
func ResolveRevision(ctx context.Context, envNames []string, getenv func(string) string, repoDir string) (string, error) {
	for _, name := range envNames {
		if value := strings.TrimSpace(getenv(name)); value != "" {
			logger.DebugKV(ctx, "Revision taken from environment", "variable", name)

			return value, nil
		}
	}

	repository, err := git.PlainOpenWithOptions(repoDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", failure.Configuration("open git repository", repoDir, errors.Join(errNoRevision, err))
	}

	head, err := repository.Head()
	if err != nil {
		return "", failure.Configuration("read git HEAD", repoDir, errors.Join(errNoRevision, err))
	}

	return head.Hash().String(), nil
}
