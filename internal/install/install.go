// Package install downloads, installs, and updates Stockfish binaries into
// the application's local engines directory. Automatic installation is only
// supported on Windows; other platforms get a system package manager.
package install

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openboard/enginebridge/internal/detect"
)

// ErrUnsupportedPlatform indicates automatic installation is not available
// on this platform.
var ErrUnsupportedPlatform = errors.New("install: automatic installation is only supported on windows")

// ErrNoBinary indicates the latest release carries no compatible binary.
var ErrNoBinary = errors.New("install: no compatible binary in latest release")

// Manager installs and updates local Stockfish binaries, and answers which
// engine executable the application should use.
type Manager struct {
	installDir  string
	logger      *zap.Logger
	goos        string
	releasesURL string
	client      *http.Client
	downloader  *Downloader
	detector    *detect.Detector
	progress    ProgressFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithInstallDir sets the engines directory. Default is "engines" under the
// working directory.
func WithInstallDir(dir string) Option {
	return func(m *Manager) { m.installDir = dir }
}

// WithGOOS overrides the platform check.
func WithGOOS(goos string) Option {
	return func(m *Manager) { m.goos = goos }
}

// WithReleasesURL overrides the release metadata endpoint.
func WithReleasesURL(url string) Option {
	return func(m *Manager) { m.releasesURL = url }
}

// WithHTTPClient sets the client used for release metadata and downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) {
		m.client = client
		m.downloader = NewDownloader(WithDownloadClient(client))
	}
}

// WithProgress registers a progress callback for Install and Update.
func WithProgress(fn ProgressFunc) Option {
	return func(m *Manager) { m.progress = fn }
}

// NewManager creates a Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		installDir:  "engines",
		logger:      zap.NewNop(),
		goos:        runtime.GOOS,
		releasesURL: DefaultReleasesURL,
		client:      &http.Client{Timeout: 10 * time.Second},
		downloader:  NewDownloader(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.detector == nil {
		m.detector = detect.New(detect.WithGOOS(m.goos), detect.WithLocalDir(m.installDir))
	}
	return m
}

func (m *Manager) stockfishDir() string { return filepath.Join(m.installDir, "stockfish") }
func (m *Manager) downloadsDir() string { return filepath.Join(m.installDir, "downloads") }

// Status describes the local and system Stockfish installations.
type Status struct {
	SystemInstalled   bool
	SystemPath        string
	LocalInstalled    bool
	LocalPath         string
	LocalVersion      string
	LatestVersion     string
	UpdateAvailable   bool
	PlatformSupported bool
}

// Status reports everything the UI needs to render the engine settings
// panel. The latest version is only fetched when a local install exists.
func (m *Manager) Status(ctx context.Context) Status {
	st := Status{PlatformSupported: m.CanInstall()}

	if path, err := m.detector.Find("stockfish"); err == nil {
		st.SystemInstalled = true
		st.SystemPath = path
	}

	if path, ok := m.InstalledExecutable(); ok {
		st.LocalInstalled = true
		st.LocalPath = path
		st.LocalVersion = m.InstalledVersion()

		if rel, err := m.latestRelease(ctx); err == nil {
			st.LatestVersion = rel.TagName
			st.UpdateAvailable = st.LocalVersion != "" && rel.TagName != st.LocalVersion
		} else {
			m.logger.Warn("could not fetch latest version", zap.Error(err))
		}
	}

	return st
}

// InstalledExecutable returns the locally installed engine path, if any.
func (m *Manager) InstalledExecutable() (string, bool) {
	for _, name := range []string{"stockfish.exe", "stockfish"} {
		path := filepath.Join(m.stockfishDir(), "bin", name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, true
		}
	}
	return "", false
}

// InstalledVersion returns the locally installed version, or "" if unknown.
func (m *Manager) InstalledVersion() string {
	data, err := os.ReadFile(filepath.Join(m.stockfishDir(), "version.txt"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// BestEnginePath returns the engine executable to use, preferring the local
// install over anything found on the system.
func (m *Manager) BestEnginePath() (string, error) {
	if path, ok := m.InstalledExecutable(); ok {
		return path, nil
	}
	return m.detector.Find("stockfish")
}

// CanInstall reports whether automatic installation works on this platform.
func (m *Manager) CanInstall() bool {
	return m.goos == "windows"
}

// Install downloads and installs the latest release into the engines
// directory.
func (m *Manager) Install(ctx context.Context) error {
	if !m.CanInstall() {
		return ErrUnsupportedPlatform
	}

	if err := os.MkdirAll(m.downloadsDir(), 0o755); err != nil {
		return fmt.Errorf("creating downloads dir: %w", err)
	}

	m.report(Progress{Phase: "version", Message: "Fetching latest version info..."})
	rel, err := m.latestRelease(ctx)
	if err != nil {
		return m.fail(err)
	}
	m.logger.Info("installing stockfish", zap.String("version", rel.TagName))

	url, ok := rel.windowsBinaryURL()
	if !ok {
		return m.fail(ErrNoBinary)
	}

	archivePath := filepath.Join(m.downloadsDir(), filepath.Base(url))
	m.report(Progress{Phase: "download", Message: "Downloading Stockfish..."})
	if err := m.downloader.DownloadToFile(ctx, url, archivePath, m.progress); err != nil {
		os.Remove(archivePath)
		return m.fail(fmt.Errorf("downloading %s: %w", url, err))
	}

	m.report(Progress{Phase: "extract", Message: "Extracting files..."})
	extractDir := filepath.Join(m.downloadsDir(), "extract")
	if err := extractZip(archivePath, extractDir); err != nil {
		return m.fail(fmt.Errorf("extracting %s: %w", archivePath, err))
	}

	exePath, err := findEngineExecutable(extractDir)
	if err != nil {
		return m.fail(err)
	}

	m.report(Progress{Phase: "install", Message: "Installing executable..."})
	binDir := filepath.Join(m.stockfishDir(), "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return m.fail(fmt.Errorf("creating bin dir: %w", err))
	}
	finalPath := filepath.Join(binDir, "stockfish.exe")
	os.Remove(finalPath)
	if err := os.Rename(exePath, finalPath); err != nil {
		return m.fail(fmt.Errorf("installing executable: %w", err))
	}

	if err := m.writeMetadata(rel.TagName, url, finalPath); err != nil {
		return m.fail(err)
	}

	// Cleanup is best effort.
	os.RemoveAll(extractDir)
	os.Remove(archivePath)

	m.report(Progress{Phase: "done", Message: "Installed Stockfish " + rel.TagName})
	m.logger.Info("stockfish installed", zap.String("version", rel.TagName), zap.String("path", finalPath))
	return nil
}

// Update installs the latest release when it differs from the local one. A
// missing local install turns into a fresh install.
func (m *Manager) Update(ctx context.Context) error {
	if _, ok := m.InstalledExecutable(); !ok {
		m.logger.Info("no local installation found, performing fresh install")
		return m.Install(ctx)
	}

	latest, available, err := m.CheckForUpdates(ctx)
	if err != nil {
		return err
	}
	if !available {
		m.report(Progress{Phase: "done", Message: "Stockfish is already up to date"})
		return nil
	}

	m.logger.Info("updating stockfish",
		zap.String("from", m.InstalledVersion()),
		zap.String("to", latest),
	)
	return m.Install(ctx)
}

// CheckForUpdates returns the latest version and whether it differs from
// the locally installed one.
func (m *Manager) CheckForUpdates(ctx context.Context) (string, bool, error) {
	rel, err := m.latestRelease(ctx)
	if err != nil {
		return "", false, err
	}
	installed := m.InstalledVersion()
	return rel.TagName, installed != "" && rel.TagName != installed, nil
}

// Uninstall removes the local installation. Removing an absent installation
// is not an error.
func (m *Manager) Uninstall() error {
	if err := os.RemoveAll(m.stockfishDir()); err != nil {
		return fmt.Errorf("removing local installation: %w", err)
	}
	m.logger.Info("local stockfish installation removed")
	return nil
}

func (m *Manager) writeMetadata(version, url, exePath string) error {
	if err := os.WriteFile(filepath.Join(m.stockfishDir(), "version.txt"), []byte(version), 0o644); err != nil {
		return fmt.Errorf("writing version file: %w", err)
	}

	meta := map[string]string{
		"version":         version,
		"download_url":    url,
		"installed_at":    time.Now().UTC().Format(time.RFC3339),
		"executable_path": exePath,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(m.stockfishDir(), "metadata.json"), data, 0o644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

func (m *Manager) report(p Progress) {
	if m.progress != nil {
		m.progress(p)
	}
}

func (m *Manager) fail(err error) error {
	m.report(Progress{Phase: "error", Error: err})
	m.logger.Error("installation failed", zap.Error(err))
	return err
}

// extractZip extracts archive into dir, refusing entries that escape it.
func extractZip(archive, dir string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		dest := filepath.Join(dir, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(dest, filepath.Clean(dir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes destination: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := extractFile(f, dest); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, dest string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o755
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)
	return err
}

// findEngineExecutable locates the engine binary in the extracted tree.
func findEngineExecutable(dir string) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := strings.ToLower(d.Name())
		if name == "stockfish.exe" || name == "stockfish" {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("no engine executable in extracted archive")
	}
	return found, nil
}
