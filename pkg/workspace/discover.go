// Package workspace discovers tracker-enabled project directories and owns
// the lifecycle of the active project's client and poller pair.
package workspace

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/beadbridge/pkg/model"
)

// MarkerName is the directory whose presence marks a tracker-enabled root.
const MarkerName = ".beads"

// DefaultMaxDepth bounds how deep below each scan root discovery descends.
const DefaultMaxDepth = 3

// skipDirs are directory names never descended into during a scan.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"dist":         true,
}

// Scan walks the given roots in parallel looking for marker directories.
// A root without a marker is not an error, and an unreadable subtree is
// skipped rather than failing the scan. Results are deduplicated by project
// id and sorted by root path.
func Scan(ctx context.Context, roots []string, maxDepth int) ([]model.Project, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	var mu sync.Mutex
	var found []model.Project

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, root := range roots {
		root := root
		g.Go(func() error {
			matches := scanRoot(ctx, root, maxDepth)
			mu.Lock()
			found = append(found, matches...)
			mu.Unlock()
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(found))
	projects := found[:0]
	for _, p := range found {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].RootPath < projects[j].RootPath
	})
	return projects, nil
}

// scanRoot finds marker directories under one root, depth-bounded. Hidden
// directories other than the marker itself are not descended into.
func scanRoot(ctx context.Context, root string, maxDepth int) []model.Project {
	root = filepath.Clean(root)
	var projects []model.Project

	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return filepath.SkipAll
		}
		if err != nil {
			// Unreadable entry: skip, absence is not an error.
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		name := d.Name()
		if name == MarkerName {
			projects = append(projects, model.NewProject(path))
			return filepath.SkipDir
		}
		if path != root {
			if strings.HasPrefix(name, ".") || skipDirs[name] {
				return filepath.SkipDir
			}
			if depthBelow(root, path) >= maxDepth {
				return filepath.SkipDir
			}
		}
		return nil
	})

	return projects
}

// depthBelow counts how many levels path sits below root.
func depthBelow(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
