package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/appscout/internal/model"
)

// Artifact file names.
const (
	FileKnowledge = "knowledge.json"
	FileSkill     = "SKILL.md"
	FileScenarios = "test-scenarios.md"
	FileFlows     = "flows.yaml"

	// BackupDirName is the directory under an app directory that holds
	// timestamped backups.
	BackupDirName = "backups"

	backupTimeLayout = "20060102T150405Z"
)

// ArtifactNames returns the artifact file names in write order.
func ArtifactNames() []string {
	return []string{FileKnowledge, FileSkill, FileScenarios, FileFlows}
}

// Artifact is one rendered file.
type Artifact struct {
	Name string
	Data []byte
}

// RenderFunc renders knowledge into artifacts. It must produce
// FileKnowledge; other names are optional.
type RenderFunc func(k *model.AppKnowledge) ([]Artifact, error)

// RenderJSON renders only knowledge.json.
func RenderJSON(k *model.AppKnowledge) ([]Artifact, error) {
	data, err := MarshalKnowledge(k)
	if err != nil {
		return nil, err
	}
	return []Artifact{{Name: FileKnowledge, Data: data}}, nil
}

// MarshalKnowledge encodes knowledge as indented JSON with a trailing
// newline.
func MarshalKnowledge(k *model.AppKnowledge) ([]byte, error) {
	data, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode knowledge: %w", err)
	}
	return append(data, '\n'), nil
}

// SaveResult describes a completed save.
type SaveResult struct {
	// Dir is the application's artifact directory.
	Dir string
	// BackupDir is the backup taken before overwriting, or "" when there
	// was nothing to back up.
	BackupDir string
	// Files are the written artifact paths.
	Files []string
}

// Store reads and writes the artifacts of every application below a root
// directory, one subdirectory per application.
type Store struct {
	root      string
	render    RenderFunc
	now       func() time.Time
	writeFile func(path string, data []byte) error
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRenderer sets the artifact renderer. The default writes only
// knowledge.json.
func WithRenderer(r RenderFunc) StoreOption {
	return func(s *Store) {
		s.render = r
	}
}

// WithClock sets the clock used for backup names.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store rooted at root.
func NewStore(root string, opts ...StoreOption) *Store {
	s := &Store{
		root:      root,
		render:    RenderJSON,
		now:       time.Now,
		writeFile: writeFileAtomic,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the root directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the artifact directory of an application.
func (s *Store) Dir(appName string) string {
	return filepath.Join(s.root, Slug(appName))
}

// Exists reports whether knowledge is stored for the application.
func (s *Store) Exists(appName string) bool {
	_, err := os.Stat(filepath.Join(s.Dir(appName), FileKnowledge))
	return err == nil
}

// Load reads and migrates the stored knowledge of an application.
func (s *Store) Load(appName string) (*model.AppKnowledge, error) {
	path := filepath.Join(s.Dir(appName), FileKnowledge)
	raw, err := os.ReadFile(path) //nolint:gosec // path is built from the store root
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", ErrNoKnowledge, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKnowledge, err)
	}
	k, err := Migrate(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return k, nil
}

// Save renders the knowledge and writes every artifact. Existing artifacts
// are copied to a new backup directory first; if a write fails the backup
// is restored and the error returned.
func (s *Store) Save(k *model.AppKnowledge) (*SaveResult, error) {
	artifacts, err := s.render(k)
	if err != nil {
		return nil, fmt.Errorf("failed to render artifacts: %w", err)
	}
	if !slices.ContainsFunc(artifacts, func(a Artifact) bool { return a.Name == FileKnowledge }) {
		return nil, fmt.Errorf("renderer did not produce %s", FileKnowledge)
	}

	dir := s.Dir(k.AppName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	names := ArtifactNames()
	for _, a := range artifacts {
		if !slices.Contains(names, a.Name) {
			names = append(names, a.Name)
		}
	}
	backupDir, backedUp, err := s.backup(dir, names)
	if err != nil {
		return nil, err
	}

	result := &SaveResult{Dir: dir, BackupDir: backupDir}
	for _, a := range artifacts {
		path := filepath.Join(dir, a.Name)
		if err := s.writeFile(path, a.Data); err != nil {
			if rerr := s.rollback(dir, backupDir, backedUp, artifacts); rerr != nil {
				return nil, fmt.Errorf("failed to write %s: %w (restore also failed: %w)", a.Name, err, rerr)
			}
			return nil, fmt.Errorf("failed to write %s: %w", a.Name, err)
		}
		result.Files = append(result.Files, path)
	}
	return result, nil
}

// backup copies the existing artifacts into a fresh timestamped directory.
// It returns "" when no artifact exists yet.
func (s *Store) backup(dir string, names []string) (string, []string, error) {
	var existing []string
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			existing = append(existing, name)
		}
	}
	if len(existing) == 0 {
		return "", nil, nil
	}

	backupDir, err := s.newBackupDir(dir)
	if err != nil {
		return "", nil, err
	}
	for _, name := range existing {
		if err := copyFile(filepath.Join(dir, name), filepath.Join(backupDir, name)); err != nil {
			return "", nil, fmt.Errorf("failed to back up %s: %w", name, err)
		}
	}
	return backupDir, existing, nil
}

// newBackupDir creates backups/<UTC timestamp>, adding a numeric suffix when
// the name is taken.
func (s *Store) newBackupDir(dir string) (string, error) {
	parent := filepath.Join(dir, BackupDirName)
	if err := os.MkdirAll(parent, 0o750); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	base := s.now().UTC().Format(backupTimeLayout)
	for i := 0; ; i++ {
		name := base
		if i > 0 {
			name = base + "-" + strconv.Itoa(i)
		}
		path := filepath.Join(parent, name)
		err := os.Mkdir(path, 0o750)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to create backup directory: %w", err)
		}
	}
}

// rollback restores backed-up artifacts and removes artifacts that did not
// exist before the save.
func (s *Store) rollback(dir, backupDir string, backedUp []string, artifacts []Artifact) error {
	var errs []error
	for _, a := range artifacts {
		if slices.Contains(backedUp, a.Name) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, a.Name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	for _, name := range backedUp {
		if err := copyFile(filepath.Join(backupDir, name), filepath.Join(dir, name)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Backups lists the backup directories of an application, oldest first.
func (s *Store) Backups(appName string) ([]string, error) {
	parent := filepath.Join(s.Dir(appName), BackupDirName)
	entries, err := os.ReadDir(parent)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	slices.SortFunc(dirs, compareBackupNames)
	for i, name := range dirs {
		dirs[i] = filepath.Join(parent, name)
	}
	return dirs, nil
}

// Restore copies the artifacts of a backup back into the application
// directory. The current artifacts are backed up first.
func (s *Store) Restore(appName, backupName string) (*SaveResult, error) {
	dir := s.Dir(appName)
	src := filepath.Join(dir, BackupDirName, filepath.Base(backupName))
	entries, err := os.ReadDir(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup %s: %w", backupName, err)
	}

	artifacts := make([]Artifact, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, e.Name())) //nolint:gosec // path is inside the store
		if err != nil {
			return nil, fmt.Errorf("failed to read backup %s: %w", backupName, err)
		}
		artifacts = append(artifacts, Artifact{Name: e.Name(), Data: data})
	}

	restore := &Store{
		root:      s.root,
		now:       s.now,
		writeFile: s.writeFile,
		render:    func(*model.AppKnowledge) ([]Artifact, error) { return artifacts, nil },
	}
	return restore.Save(&model.AppKnowledge{AppName: appName})
}

// compareBackupNames orders "<timestamp>" before "<timestamp>-1" before
// "<timestamp>-10".
func compareBackupNames(a, b string) int {
	ta, na := splitBackupName(a)
	tb, nb := splitBackupName(b)
	if c := strings.Compare(ta, tb); c != 0 {
		return c
	}
	return na - nb
}

func splitBackupName(name string) (string, int) {
	base, suffix, ok := strings.Cut(name, "-")
	if !ok {
		return name, 0
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return name, 0
	}
	return base, n
}

// Slug turns an application name into a directory name.
func Slug(appName string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(appName)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			dash = false
		case !dash && sb.Len() > 0:
			sb.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(sb.String(), "-")
	if slug == "" {
		return "app"
	}
	return slug
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil { //nolint:gosec // artifacts are meant to be read by other tools
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src) //nolint:gosec // paths are inside the store
	if err != nil {
		return err
	}
	return writeFileAtomic(dst, data)
}
