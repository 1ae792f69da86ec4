// Package detect locates UCI chess-engine executables on the host system.
// It checks the application's local engines directory first, then PATH, then
// well-known per-platform install locations.
package detect

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrNotFound indicates no usable engine executable was located.
var ErrNotFound = errors.New("detect: engine not found")

// engineNames maps an engine to the executable names it ships under.
var engineNames = map[string][]string{
	"stockfish": {"stockfish", "stockfish.exe", "stockfish-windows-x86-64-avx2.exe"},
	"leela":     {"lc0", "lc0.exe", "leela", "leela.exe"},
	"komodo":    {"komodo", "komodo.exe"},
	"dragon":    {"dragon", "dragon.exe"},
}

// commonPaths lists well-known install directories per platform.
var commonPaths = map[string][]string{
	"linux": {
		"/usr/bin",
		"/usr/local/bin",
		"/opt/stockfish/bin",
		"~/.local/bin",
	},
	"darwin": {
		"/usr/local/bin",
		"/opt/homebrew/bin",
		"/usr/bin",
		"~/Applications/Stockfish",
	},
	"windows": {
		`C:\Program Files\Stockfish`,
		`C:\Program Files (x86)\Stockfish`,
		`C:\stockfish`,
		`~\AppData\Local\Stockfish`,
	},
}

// Detector finds engine executables. The zero value is not usable; call New.
type Detector struct {
	goos     string
	localDir string

	// Probes, overridable in tests.
	lookPath   func(name string) (string, error)
	executable func(path string) bool
}

// Option configures a Detector.
type Option func(*Detector)

// WithGOOS overrides the platform used for path lookup tables.
func WithGOOS(goos string) Option {
	return func(d *Detector) { d.goos = goos }
}

// WithLocalDir sets the application-local engines directory checked before
// anything else. Default is "engines" under the working directory.
func WithLocalDir(dir string) Option {
	return func(d *Detector) { d.localDir = dir }
}

// New creates a Detector for the current platform.
func New(opts ...Option) *Detector {
	d := &Detector{
		goos:       runtime.GOOS,
		localDir:   "engines",
		lookPath:   exec.LookPath,
		executable: isExecutable,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Find returns the path to the named engine's executable, searching the
// local install, PATH, and common install locations in that order.
func (d *Detector) Find(engine string) (string, error) {
	if path, ok := d.checkLocal(engine); ok {
		return path, nil
	}
	if path, ok := d.checkPath(engine); ok {
		return path, nil
	}
	if path, ok := d.checkCommonPaths(engine); ok {
		return path, nil
	}
	return "", ErrNotFound
}

// checkLocal looks inside the application's own engines directory, where
// the installer places downloaded binaries.
func (d *Detector) checkLocal(engine string) (string, bool) {
	if engine != "stockfish" {
		// Only stockfish is installed locally.
		return "", false
	}

	binDir := filepath.Join(d.localDir, "stockfish", "bin")
	for _, name := range []string{"stockfish.exe", "stockfish"} {
		path := filepath.Join(binDir, name)
		if d.executable(path) {
			return path, true
		}
	}
	return "", false
}

func (d *Detector) checkPath(engine string) (string, bool) {
	for _, name := range d.names(engine) {
		if path, err := d.lookPath(name); err == nil && d.executable(path) {
			return path, true
		}
	}
	return "", false
}

func (d *Detector) checkCommonPaths(engine string) (string, bool) {
	for _, dir := range commonPaths[d.goos] {
		dir = expandHome(dir)
		for _, name := range d.names(engine) {
			path := filepath.Join(dir, name)
			if d.executable(path) {
				return path, true
			}
		}
	}
	return "", false
}

func (d *Detector) names(engine string) []string {
	if names, ok := engineNames[engine]; ok {
		return names
	}
	return []string{engine}
}

// ListAvailable returns the path of every known engine found on this
// system.
func (d *Detector) ListAvailable() []string {
	var found []string
	for engine := range engineNames {
		if path, err := d.Find(engine); err == nil {
			found = append(found, path)
		}
	}
	return found
}

// InstallInstructions returns platform-specific guidance for installing the
// named engine, suitable for showing to the user verbatim.
func (d *Detector) InstallInstructions(engine string) string {
	if engine != "stockfish" {
		return "Please install " + engine + " and ensure it's available in your system PATH."
	}
	switch d.goos {
	case "linux":
		return `Install Stockfish using your package manager:
    Ubuntu/Debian: sudo apt install stockfish
    Fedora: sudo dnf install stockfish
    Arch: sudo pacman -S stockfish
    Or download from: https://stockfishchess.org/download/`
	case "darwin":
		return `Install Stockfish using Homebrew:
    brew install stockfish
    Or download from: https://stockfishchess.org/download/`
	case "windows":
		return `Download and install Stockfish from:
    https://stockfishchess.org/download/
    Make sure to add it to your PATH or place it in a standard location.`
	default:
		return "Download Stockfish from https://stockfishchess.org/download/ and add it to your PATH."
	}
}

// isExecutable reports whether path is a regular file the current user can
// execute.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
