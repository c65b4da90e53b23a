// Package sessionlog locates the coding agent's own session transcript files
// for post-mortem inspection. Everything here is best-effort and advisory:
// a missing or unreadable transcript is logged and never affects a task's
// execution result.
package sessionlog

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/constants"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/protocol"
)

// Locator resolves session IDs to on-disk transcript paths by probing a
// fixed list of candidate directories.
type Locator struct {
	override string // explicit override directory; highest priority
	home     string // user home directory; seam for tests
	logger   zerolog.Logger
}

// Option configures a Locator.
type Option func(*Locator)

// WithLogger sets the locator logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Locator) { l.logger = logger }
}

// WithHome overrides the user home directory used to derive the default
// projects root. Intended for tests.
func WithHome(home string) Option {
	return func(l *Locator) { l.home = home }
}

// NewLocator creates a Locator. overrideDir may be empty; when it is, the
// CCTM_SESSION_LOG_DIR environment variable is consulted instead.
func NewLocator(overrideDir string, opts ...Option) *Locator {
	l := &Locator{
		override: overrideDir,
		logger:   zerolog.Nop(),
	}
	if l.override == "" {
		l.override = os.Getenv(constants.SessionLogDirEnv)
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.home == "" {
		if home, err := os.UserHomeDir(); err == nil {
			l.home = home
		}
	}
	return l
}

// Locate returns the most plausible transcript path for the session.
// Candidates are probed in preference order: the override directory, the
// projects root itself, the workspace-derived subdirectory, then every
// subdirectory under the projects root. The first candidate that exists
// wins; if none exist a best-guess fallback is returned so callers still
// have a path to report.
func (l *Locator) Locate(sessionID, workingDir string) string {
	name := sessionID + ".jsonl"
	projects := filepath.Join(l.home, filepath.FromSlash(constants.SessionProjectsDir))

	candidates := make([]string, 0, 4)
	if l.override != "" {
		candidates = append(candidates, filepath.Join(l.override, name))
	}
	candidates = append(candidates, filepath.Join(projects, name))

	var derived string
	if workingDir != "" {
		derived = filepath.Join(projects, EncodeWorkspacePath(workingDir), name)
		candidates = append(candidates, derived)
	}

	for _, candidate := range candidates {
		if fileExists(candidate) {
			l.logger.Debug().Str("path", candidate).Msg("session transcript located")
			return candidate
		}
	}

	// Last resort: scan every project subdirectory. Sessions can be written
	// under a different workspace encoding than expected.
	if entries, err := os.ReadDir(projects); err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			candidate := filepath.Join(projects, entry.Name(), name)
			if fileExists(candidate) {
				l.logger.Debug().Str("path", candidate).Msg("session transcript located by scan")
				return candidate
			}
		}
	}

	fallback := derived
	if fallback == "" {
		fallback = filepath.Join(projects, name)
	}
	l.logger.Debug().Str("path", fallback).Msg("session transcript not found, returning best guess")
	return fallback
}

// EncodeWorkspacePath converts an absolute workspace path into the directory
// name the agent uses under its projects root: every path separator and dot
// becomes a dash.
func EncodeWorkspacePath(path string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ".", "-", "_", "-")
	return replacer.Replace(path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ExtractSessionID pulls a session identifier out of an event, checking the
// top level first, then payload, payload.metadata, data and data.metadata.
// The first non-empty match wins; empty string means no ID was present.
func ExtractSessionID(ev *protocol.Event) string {
	if ev == nil {
		return ""
	}
	if ev.SessionID != "" {
		return ev.SessionID
	}
	for _, m := range []map[string]any{ev.Payload, nestedMap(ev.Payload, "metadata"), ev.Data, nestedMap(ev.Data, "metadata")} {
		if id := stringField(m, "session_id"); id != "" {
			return id
		}
	}
	return ""
}

func nestedMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	nested, _ := m[key].(map[string]any)
	return nested
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
