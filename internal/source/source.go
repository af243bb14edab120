// Package source resolves a keron source descriptor (a local directory or a
// remote git URL) into a rooted local directory plus a cleanup handle.
package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/gitsight/go-vcsurl"

	"github.com/icepuma/keron/internal/keronerr"
	"github.com/icepuma/keron/internal/procexec"
)

// Resolved is the outcome of resolving a source descriptor.
type Resolved struct {
	Root    string
	Cleanup func() error
}

var noopCleanup = func() error { return nil }

// Resolve accepts a source descriptor string and returns a rooted local
// directory. Local paths are canonicalized in place (Cleanup is a no-op);
// remote URLs are shallow-cloned into a fresh temp directory (Cleanup
// removes it). On success Cleanup is non-nil and is safe to call more than
// once; on error the returned Resolved is the zero value. The caller is responsible for bounding ctx with the configured
// clone timeout before calling Resolve on a remote descriptor.
func Resolve(ctx context.Context, descriptor string) (Resolved, error) {
	if looksRemote(descriptor) {
		return resolveRemote(ctx, descriptor)
	}
	return resolveLocal(descriptor)
}

func resolveLocal(descriptor string) (Resolved, error) {
	if strings.HasPrefix(descriptor, "file://") {
		return Resolved{}, keronerr.New(keronerr.UnsupportedSource, "file:// URLs are not supported; pass a plain local path")
	}

	abs, err := filepath.Abs(descriptor)
	if err != nil {
		return Resolved{}, keronerr.Wrap(keronerr.PathNotADirectory, descriptor, err)
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return Resolved{}, keronerr.Wrap(keronerr.PathNotADirectory, descriptor, err)
	}
	info, err := os.Stat(canon)
	if err != nil {
		return Resolved{}, keronerr.Wrap(keronerr.PathNotADirectory, descriptor, err)
	}
	if !info.IsDir() {
		return Resolved{}, keronerr.New(keronerr.PathNotADirectory, descriptor)
	}
	return Resolved{Root: canon, Cleanup: noopCleanup}, nil
}

func looksRemote(descriptor string) bool {
	switch {
	case strings.HasPrefix(descriptor, "https://"),
		strings.HasPrefix(descriptor, "http://"),
		strings.HasPrefix(descriptor, "git://"):
		return true
	case strings.HasPrefix(descriptor, "file://"):
		return false
	}
	// scp-style: user@host:path, but not a Windows-style drive path (C:\...)
	if idx := strings.Index(descriptor, "@"); idx > 0 {
		rest := descriptor[idx+1:]
		if strings.Contains(rest, ":") && !strings.Contains(rest, "://") {
			return true
		}
	}
	return false
}

func resolveRemote(ctx context.Context, descriptor string) (Resolved, error) {
	repoURL, subdir, ref, err := parseRemote(descriptor)
	if err != nil {
		return Resolved{}, err
	}
	if strings.HasPrefix(repoURL, "http://") || strings.HasPrefix(repoURL, "https://") {
		if _, err := vcsurl.Parse(repoURL); err != nil {
			return Resolved{}, keronerr.Wrap(keronerr.UnsupportedSource, repoURL, err)
		}
	}

	tmpDir, err := os.MkdirTemp("", "keron-source-")
	if err != nil {
		return Resolved{}, keronerr.Wrap(keronerr.CloneFailed, "mkdtemp", err)
	}
	cleanup := func() error { return os.RemoveAll(tmpDir) }

	args := []string{"clone", "--depth=1"}
	if ref == "" {
		ref = "main"
	}
	args = append(args, "--branch", ref)
	args = append(args, repoURL, tmpDir)

	if err := procexec.Run(ctx, "git", args...); err != nil {
		_ = cleanup()
		return Resolved{}, keronerr.Wrap(keronerr.CloneFailed, repoURL, err)
	}

	root := tmpDir
	if subdir != "" {
		root = filepath.Join(tmpDir, subdir)
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			_ = cleanup()
			return Resolved{}, keronerr.New(keronerr.SubdirNotFound, subdir)
		}
	}

	return Resolved{Root: root, Cleanup: cleanup}, nil
}

// parseRemote splits the <repo-url>//<subdir>?ref=<ref> grammar. The subdir
// and ref tails are optional; a trailing ".git" segment before the subdir
// marker is a valid disambiguator and stays part of repoURL. An absent ref
// is returned as ""; resolveRemote then clones the default ref, "main".
func parseRemote(descriptor string) (repoURL, subdir, ref string, err error) {
	working := descriptor

	if idx := strings.Index(working, "?ref="); idx >= 0 {
		ref = working[idx+len("?ref="):]
		working = working[:idx]
	}

	if idx := strings.Index(working, "//"); idx >= 0 {
		schemeEnd := strings.Index(working, "://")
		searchFrom := 0
		if schemeEnd >= 0 {
			searchFrom = schemeEnd + len("://")
		}
		if nextSlashSlash := strings.Index(working[searchFrom:], "//"); nextSlashSlash >= 0 {
			cut := searchFrom + nextSlashSlash
			repoURL = working[:cut]
			subdir = strings.Trim(working[cut+2:], "/")
		} else {
			repoURL = working
		}
	} else {
		repoURL = working
	}

	if repoURL == "" {
		return "", "", "", keronerr.New(keronerr.UnsupportedSource, descriptor)
	}
	return repoURL, subdir, ref, nil
}
