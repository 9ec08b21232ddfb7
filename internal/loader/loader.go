// Package loader discovers and loads helper scripts for a console session.
// Every eligible script under a root directory is executed in the session's
// engine before the loop starts, so top-level register(...) calls populate
// the action registry the same way import side effects would.
package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dagger/internal/logger"
	"dagger/pkg/types"
)

// scriptSuffix is the file suffix of loadable helper scripts.
const scriptSuffix = ".js"

// reservedPrefix marks files that are never loaded (package markers,
// generated bundles).
const reservedPrefix = "__"

// ignoreDirectories are subdirectory names pruned from discovery.
var ignoreDirectories = map[string]struct{}{
	"venv": {},
	"env":  {},
}

// Module is one entry of the load plan: a dotted module path and the file it
// was derived from. The plan is used once to drive loading and then
// discarded.
type Module struct {
	Path string
	File string
}

// Discover walks root and returns the load plan: one Module per eligible
// script file, sorted by dotted path so load order is reproducible across
// platforms. A file is eligible when it has the script suffix, does not start
// with the reserved prefix, and is not the origin file itself. Origin
// exclusion compares filesystem identity rather than strings, so symlinks and
// relative paths cannot cause a double load. The dotted path is the file's path relative to
// the nearest ancestor directory whose name matches the host package name
// (the base name of origin's parent directory); files outside that package
// segment use their path relative to root instead.
func Discover(root, origin string) ([]Module, error) {
	// The origin may be a compiled-away source path that no longer exists on
	// disk; identity comparison is only possible when it does.
	originInfo, err := os.Stat(origin)
	if err != nil {
		originInfo = nil
	}
	packageName := filepath.Base(filepath.Dir(origin))

	var modules []Module
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, ignored := ignoreDirectories[d.Name()]; ignored && path != root {
				return fs.SkipDir
			}
			return nil
		}

		name := d.Name()
		if !strings.HasSuffix(name, scriptSuffix) || strings.HasPrefix(name, reservedPrefix) {
			return nil
		}

		if originInfo != nil {
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			if os.SameFile(info, originInfo) {
				return nil
			}
		}

		dotted, ok := modulePath(packageName, path)
		if !ok {
			// Scripts outside the host package segment (an absolute override
			// directory, typically) fall back to root-relative paths.
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				logger.Warn("Skipping script outside package root", "file", path, "package", packageName)
				return nil
			}
			rel = strings.TrimSuffix(rel, scriptSuffix)
			dotted = strings.ReplaceAll(rel, string(filepath.Separator), ".")
		}
		modules = append(modules, Module{Path: dotted, File: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("script discovery failed under %s: %w", root, err)
	}

	sort.Slice(modules, func(i, j int) bool { return modules[i].Path < modules[j].Path })
	return modules, nil
}

// modulePath derives a dotted module path from a script file path, relative
// to the nearest ancestor directory named packageName. The suffix is
// stripped and the remaining segments are joined with dots.
func modulePath(packageName, file string) (string, bool) {
	segments := strings.Split(filepath.Clean(file), string(filepath.Separator))
	last := len(segments) - 1
	segments[last] = strings.TrimSuffix(segments[last], scriptSuffix)

	for i := last - 1; i >= 0; i-- {
		if segments[i] == packageName {
			return strings.Join(segments[i+1:], "."), true
		}
	}
	return "", false
}

// Load discovers helper scripts under root and executes each one in the
// engine, in plan order, so their top-level side effects run. A script that
// fails to execute aborts loading; helper scripts are trusted setup code.
func Load(eng types.Engine, root, origin string) error {
	modules, err := Discover(root, origin)
	if err != nil {
		return err
	}
	for _, m := range modules {
		logger.Debug("Loading helper module", "module", m.Path, "file", m.File)
		src, err := os.ReadFile(m.File)
		if err != nil {
			return fmt.Errorf("cannot read helper module %s: %w", m.Path, err)
		}
		if err := eng.Run(m.Path, string(src)); err != nil {
			return fmt.Errorf("helper module %s failed: %w", m.Path, err)
		}
	}
	logger.Debug("Helper modules loaded", "count", len(modules), "root", root)
	return nil
}

// Setup resolves the discovery directory for a session and loads helper
// scripts from it. With an empty dir the call site file's parent directory
// is used; a relative dir resolves against that same parent. The origin file
// itself is always excluded from loading.
func Setup(eng types.Engine, source types.Source, dir string) error {
	origin := source.File
	parent := filepath.Dir(origin)

	switch {
	case dir == "":
		dir = parent
	case !filepath.IsAbs(dir):
		dir = filepath.Join(parent, dir)
	}
	dir = filepath.Clean(dir)

	return Load(eng, dir, origin)
}
