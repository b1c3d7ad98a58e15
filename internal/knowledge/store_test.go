package knowledge

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/appscout/internal/analyzer"
	"github.com/nao1215/appscout/internal/model"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// twoFileRenderer writes knowledge.json and a SKILL.md naming the version.
func twoFileRenderer(k *model.AppKnowledge) ([]Artifact, error) {
	artifacts, err := RenderJSON(k)
	if err != nil {
		return nil, err
	}
	return append(artifacts, Artifact{Name: FileSkill, Data: []byte("version " + k.Version + "\n")}), nil
}

func TestSlug(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Acme":             "acme",
		"  My Shop (dev) ": "my-shop-dev",
		"a__b--c":          "a-b-c",
		"日本":               "app",
		"":                 "app",
	}
	for input, want := range tests {
		if got := Slug(input); got != want {
			t.Errorf("Slug(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestStoreLoad(t *testing.T) {
	t.Parallel()

	t.Run("missing knowledge", func(t *testing.T) {
		t.Parallel()

		s := NewStore(t.TempDir())
		_, err := s.Load("Acme")
		if !errors.Is(err, ErrNoKnowledge) {
			t.Errorf("expected ErrNoKnowledge, got %v", err)
		}
		if s.Exists("Acme") {
			t.Error("expected Exists to be false")
		}
	})

	for _, tt := range []struct {
		name string
		raw  string
	}{
		{"malformed knowledge", "{not json"},
		{"null knowledge", "null"},
		{"empty object", "{}"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := NewStore(t.TempDir())
			if err := os.MkdirAll(s.Dir("Acme"), 0o750); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(s.Dir("Acme"), FileKnowledge), []byte(tt.raw), 0o600); err != nil {
				t.Fatal(err)
			}

			_, err := s.Load("Acme")
			if !errors.Is(err, ErrMalformedKnowledge) {
				t.Errorf("expected ErrMalformedKnowledge, got %v", err)
			}
		})
	}
}

func TestStoreSave(t *testing.T) {
	t.Parallel()

	t.Run("first save writes artifacts without a backup", func(t *testing.T) {
		t.Parallel()

		s := NewStore(t.TempDir(), WithRenderer(twoFileRenderer))
		k := New(analyzer.Analyze("Acme", exploration()), created)

		res, err := s.Save(k)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.BackupDir != "" {
			t.Errorf("expected no backup, got %s", res.BackupDir)
		}
		if len(res.Files) != 2 {
			t.Errorf("expected 2 files, got %v", res.Files)
		}

		loaded, err := s.Load("Acme")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if loaded.Version != InitialVersion || loaded.Pages.Len() != 3 {
			t.Errorf("unexpected loaded knowledge %s with %d pages", loaded.Version, loaded.Pages.Len())
		}
		leftovers, _ := filepath.Glob(filepath.Join(res.Dir, ".*.tmp-*"))
		if len(leftovers) != 0 {
			t.Errorf("temp files left behind: %v", leftovers)
		}
	})

	t.Run("update backs up the previous artifacts", func(t *testing.T) {
		t.Parallel()

		s := NewStore(t.TempDir(), WithRenderer(twoFileRenderer), WithClock(fixedClock(updated)))
		first := New(analyzer.Analyze("Acme", exploration()), created)
		if _, err := s.Save(first); err != nil {
			t.Fatal(err)
		}
		second, _, err := Merge(first, analyzer.Analyze("Acme", exploration("/calendar")), updated)
		if err != nil {
			t.Fatal(err)
		}

		res, err := s.Save(second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if filepath.Base(res.BackupDir) != "20260308T100000Z" {
			t.Errorf("unexpected backup dir %s", res.BackupDir)
		}
		backedUp, err := os.ReadFile(filepath.Join(res.BackupDir, FileSkill))
		if err != nil {
			t.Fatal(err)
		}
		if string(backedUp) != "version 1.0.0\n" {
			t.Errorf("backup holds %q", backedUp)
		}
		current, err := os.ReadFile(filepath.Join(res.Dir, FileSkill))
		if err != nil {
			t.Fatal(err)
		}
		if string(current) != "version 1.1.0\n" {
			t.Errorf("current holds %q", current)
		}
	})

	t.Run("same-second backups get a suffix", func(t *testing.T) {
		t.Parallel()

		s := NewStore(t.TempDir(), WithClock(fixedClock(updated)))
		k := New(analyzer.Analyze("Acme", exploration()), created)
		for range 12 {
			if _, err := s.Save(k); err != nil {
				t.Fatal(err)
			}
		}

		backups, err := s.Backups("Acme")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(backups) != 11 {
			t.Fatalf("expected 11 backups, got %d", len(backups))
		}
		names := make([]string, 0, len(backups))
		for _, b := range backups {
			names = append(names, filepath.Base(b))
		}
		if names[0] != "20260308T100000Z" || names[1] != "20260308T100000Z-1" || names[10] != "20260308T100000Z-10" {
			t.Errorf("unexpected order %v", names)
		}
	})

	t.Run("failed write restores the previous artifacts", func(t *testing.T) {
		t.Parallel()

		s := NewStore(t.TempDir(), WithRenderer(twoFileRenderer), WithClock(fixedClock(updated)))
		first := New(analyzer.Analyze("Acme", exploration()), created)
		if _, err := s.Save(first); err != nil {
			t.Fatal(err)
		}

		second := New(analyzer.Analyze("Acme", exploration("/calendar")), updated)
		second.Version = "2.0.0"
		diskFull := errors.New("disk full")
		s.writeFile = func(path string, data []byte) error {
			if strings.HasSuffix(path, FileSkill) {
				return diskFull
			}
			return writeFileAtomic(path, data)
		}

		_, err := s.Save(second)
		if !errors.Is(err, diskFull) {
			t.Fatalf("expected disk full error, got %v", err)
		}

		loaded, err := s.Load("Acme")
		if err != nil {
			t.Fatal(err)
		}
		if loaded.Version != InitialVersion {
			t.Errorf("expected restored version %s, got %s", InitialVersion, loaded.Version)
		}
	})

	t.Run("renderer must produce knowledge.json", func(t *testing.T) {
		t.Parallel()

		s := NewStore(t.TempDir(), WithRenderer(func(*model.AppKnowledge) ([]Artifact, error) {
			return []Artifact{{Name: FileSkill, Data: []byte("x")}}, nil
		}))
		if _, err := s.Save(&model.AppKnowledge{AppName: "Acme"}); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestStoreRestore(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir(), WithRenderer(twoFileRenderer), WithClock(fixedClock(updated)))
	first := New(analyzer.Analyze("Acme", exploration()), created)
	if _, err := s.Save(first); err != nil {
		t.Fatal(err)
	}
	second, _, err := Merge(first, analyzer.Analyze("Acme", exploration()), updated)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Save(second)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Restore("Acme", filepath.Base(res.BackupDir)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := s.Load("Acme")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Version != InitialVersion {
		t.Errorf("expected %s after restore, got %s", InitialVersion, loaded.Version)
	}
	backups, err := s.Backups("Acme")
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 2 {
		t.Errorf("restore must back up the current artifacts first, got %d backups", len(backups))
	}
}
