// Package config loads clausewitzd's configuration from layered KDL
// files (grounded on the teacher's internal/config: a global
// ~/.clausewitz.kdl overlaid by a project-local .clausewitz.kdl, merged
// by Load/LoadWithRoot).
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Watch describes the directory the ingest pipeline watches for save
// files, and how bursts of filesystem events are coalesced.
type Watch struct {
	Root           string
	DebounceMs     int
	RecursiveScan  bool
	FollowSymlinks bool
}

// Ingest describes the worker pool that parses and extracts queued
// save files concurrently (spec.md §5: concurrency is the caller's
// concern, not the parser's).
type Ingest struct {
	Workers    int
	QueueSize  int
	TimeoutSec int
}

// Cache describes the xxhash-keyed parse-result cache.
type Cache struct {
	Enabled    bool
	MaxEntries int
}

// Server describes the HTTP surface's listen address and whether it
// starts at all (a `parse`-only invocation has no use for it).
type Server struct {
	Enabled bool
	Addr    string
}

// History describes how much snapshot history the custodian retains
// per campaign.
type History struct {
	MaxSnapshotsPerCampaign int
}

// Config is clausewitzd's full configuration (spec.md §2.3 / §6).
type Config struct {
	Version int

	ProjectRoot string

	Watch   Watch
	Ingest  Ingest
	Cache   Cache
	Server  Server
	History History

	// Include/Exclude are doublestar glob patterns matched against
	// save-file paths under Watch.Root, mirroring the teacher's
	// Include/Exclude file-indexing filters.
	Include []string
	Exclude []string
}

// Load resolves configuration the same way the teacher's indexer
// does: a global ~/.clausewitz.kdl overlaid by a project-local
// .clausewitz.kdl found under path.
func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

// LoadWithRoot is Load but resolves relative save-directory roots
// against rootDir instead of the process's working directory.
func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := rootDir
	if searchDir == "" {
		searchDir = path
	}
	if searchDir == "" {
		searchDir = "."
	}

	var baseConfig *Config
	if homeDir, err := os.UserHomeDir(); err == nil {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	var projectConfig *Config
	kdlCfg, err := LoadKDL(searchDir)
	if err != nil {
		return nil, err
	}
	if kdlCfg != nil {
		projectConfig = kdlCfg
	}

	switch {
	case baseConfig != nil && projectConfig != nil:
		return mergeConfigs(baseConfig, projectConfig), nil
	case projectConfig != nil:
		return projectConfig, nil
	case baseConfig != nil:
		root := rootDir
		if root == "" {
			root = searchDir
		}
		baseConfig.Watch.Root = root
		baseConfig.ProjectRoot = root
		return baseConfig, nil
	}

	return defaultConfig(rootDir, searchDir), nil
}

func defaultConfig(rootDir, searchDir string) *Config {
	root := rootDir
	if root == "" {
		root = searchDir
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	return &Config{
		Version:     1,
		ProjectRoot: root,
		Watch: Watch{
			Root:           root,
			DebounceMs:     300,
			RecursiveScan:  true,
			FollowSymlinks: false,
		},
		Ingest: Ingest{
			Workers:    runtime.NumCPU(),
			QueueSize:  64,
			TimeoutSec: 30,
		},
		Cache: Cache{
			Enabled:    true,
			MaxEntries: 256,
		},
		Server: Server{
			Enabled: true,
			Addr:    ":8080",
		},
		History: History{
			MaxSnapshotsPerCampaign: 500,
		},
		Include: []string{"**/*.sav", "**/*.zip"},
		Exclude: []string{"**/*.tmp", "**/*.partial", "**/.*"},
	}
}

// mergeConfigs overlays project onto base the way the teacher's
// mergeConfigs does: project wins on scalar fields, Exclude patterns
// union, Include is project-or-base (whichever is non-empty, project
// preferred).
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		seen := make(map[string]bool, len(base.Exclude)+len(project.Exclude))
		combined := make([]string, 0, len(base.Exclude)+len(project.Exclude))
		for _, pattern := range base.Exclude {
			if !seen[pattern] {
				seen[pattern] = true
				combined = append(combined, pattern)
			}
		}
		for _, pattern := range project.Exclude {
			if !seen[pattern] {
				seen[pattern] = true
				combined = append(combined, pattern)
			}
		}
		merged.Exclude = combined
	}

	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}

	return &merged
}
