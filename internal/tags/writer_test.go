package tags

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2"
)

func TestWriteOverwritesFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cafe.mp3")
	if err := os.WriteFile(path, []byte("fake audio body"), 0o644); err != nil {
		t.Fatalf("write file error: %v", err)
	}

	writer := NewID3Writer()
	if err := writer.Write(path, "Title", "Artist", "audio-hub"); err != nil {
		t.Fatalf("tag write error: %v", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer tag.Close()

	if tag.Title() != "Title" {
		t.Fatalf("title mismatch: %s", tag.Title())
	}
	if tag.Artist() != "Artist" {
		t.Fatalf("artist mismatch: %s", tag.Artist())
	}

	frames := tag.GetFrames(tag.CommonID("Comments"))
	if len(frames) != 1 {
		t.Fatalf("expected one comment frame, got %d", len(frames))
	}
	comment, ok := frames[0].(id3v2.CommentFrame)
	if !ok {
		t.Fatalf("unexpected frame type: %T", frames[0])
	}
	if comment.Text != "audio-hub" {
		t.Fatalf("comment mismatch: %s", comment.Text)
	}
}

func TestWriteMissingFile(t *testing.T) {
	writer := NewID3Writer()
	if err := writer.Write(filepath.Join(t.TempDir(), "missing.mp3"), "T", "A", "c"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
