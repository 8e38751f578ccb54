package sync

import (
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Paths matching these never sync in either direction: OS and file-manager
// metadata is per-machine and often read-only on other platforms, VCS
// metadata churns constantly and breaks when shared across checkouts.
var defaultIgnoreLines = []string{
	// file-manager metadata
	".directory", // KDE Dolphin view settings
	"Thumbs.db",  // Windows thumbnail cache
	"Desktop.ini",
	".DS_Store",
	// version control metadata
	".git",
	".svn",
	".hg",
}

type IgnoreList struct {
	matcher *gitignore.GitIgnore
}

func NewIgnoreList() *IgnoreList {
	return &IgnoreList{
		matcher: gitignore.CompileIgnoreLines(defaultIgnoreLines...),
	}
}

// ShouldIgnore reports whether relPath is excluded from sync. Backslashes are
// tolerated since remote listings may have been produced by a Windows client.
func (l *IgnoreList) ShouldIgnore(relPath string) bool {
	return l.matcher.MatchesPath(strings.ReplaceAll(relPath, "\\", "/"))
}
