package backup

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/eslsoft/deeplisten/internal/entity"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	src := t.TempDir()
	if err := writeJSON(src, metadataFile, Metadata{Version: ArchiveVersion, UserID: "u1"}); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	if err := writeFile(src, mediaDir+"/m1_clip.mp3", []byte("audio")); err != nil {
		t.Fatalf("write media: %v", err)
	}

	var buf bytes.Buffer
	if err := Pack(src, &buf); err != nil {
		t.Fatalf("pack: %v", err)
	}

	dst := t.TempDir()
	if err := Unpack(bytes.NewReader(buf.Bytes()), dst); err != nil {
		t.Fatalf("unpack: %v", err)
	}
	meta, err := ReadMetadata(dst)
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	if meta.UserID != "u1" {
		t.Fatalf("unexpected user id %q", meta.UserID)
	}
	data, err := os.ReadFile(filepath.Join(dst, "materials", "media", "m1_clip.mp3"))
	if err != nil {
		t.Fatalf("read media: %v", err)
	}
	if string(data) != "audio" {
		t.Fatalf("unexpected media content %q", data)
	}
}

func TestUnpackRejectsEscapingEntries(t *testing.T) {
	archive := buildTar(t, func(tw *tar.Writer) {
		writeTarFile(t, tw, "../evil.txt", "boom")
	})
	err := Unpack(bytes.NewReader(archive), t.TempDir())
	if !errors.Is(err, entity.ErrInvalidArchive) {
		t.Fatalf("expected ErrInvalidArchive, got %v", err)
	}
}

func TestUnpackIgnoresNonRegularEntries(t *testing.T) {
	archive := buildTar(t, func(tw *tar.Writer) {
		if err := tw.WriteHeader(&tar.Header{Name: "link", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd"}); err != nil {
			t.Fatalf("write symlink: %v", err)
		}
		writeTarFile(t, tw, "metadata.json", `{"version":1,"userId":"u1"}`)
	})
	dst := t.TempDir()
	if err := Unpack(bytes.NewReader(archive), dst); err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(dst, "link")); !os.IsNotExist(err) {
		t.Fatalf("symlink should not be extracted, stat err=%v", err)
	}
	if _, err := ReadMetadata(dst); err != nil {
		t.Fatalf("read metadata: %v", err)
	}
}

func TestUnpackRejectsGarbage(t *testing.T) {
	err := Unpack(bytes.NewReader([]byte("not a gzip stream")), t.TempDir())
	if !errors.Is(err, entity.ErrInvalidArchive) {
		t.Fatalf("expected ErrInvalidArchive, got %v", err)
	}
}

func TestReadMetadata(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := ReadMetadata(t.TempDir())
		if !errors.Is(err, entity.ErrInvalidArchive) {
			t.Fatalf("expected ErrInvalidArchive, got %v", err)
		}
	})
	t.Run("undecodable", func(t *testing.T) {
		dir := t.TempDir()
		if err := writeFile(dir, metadataFile, []byte("{")); err != nil {
			t.Fatalf("write: %v", err)
		}
		_, err := ReadMetadata(dir)
		if !errors.Is(err, entity.ErrInvalidArchive) {
			t.Fatalf("expected ErrInvalidArchive, got %v", err)
		}
	})
	t.Run("unsupported version", func(t *testing.T) {
		dir := t.TempDir()
		if err := writeJSON(dir, metadataFile, Metadata{Version: 99}); err != nil {
			t.Fatalf("write: %v", err)
		}
		_, err := ReadMetadata(dir)
		if !errors.Is(err, entity.ErrInvalidArchive) || !errors.Is(err, entity.ErrUnsupportedArchive) {
			t.Fatalf("expected unsupported archive error, got %v", err)
		}
	})
}

func buildTar(t *testing.T, fill func(tw *tar.Writer)) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	fill(tw)
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

func writeTarFile(t *testing.T, tw *tar.Writer, name, content string) {
	t.Helper()
	if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatalf("write header %s: %v", name, err)
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
