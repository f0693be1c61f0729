package zip

import (
	"archive/zip"
	"bytes"
	"testing"
)

func TestArchiveAssetsSkipsEmpty(t *testing.T) {
	data, err := ArchiveAssets([]Asset{
		{Filename: "001_image.webp", Data: []byte("img-bytes")},
		{Filename: "002_video.mp4", Data: nil},
		{Filename: "003_image.webp", Data: []byte("more-bytes")},
	})
	if err != nil {
		t.Fatalf("ArchiveAssets: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("archive entries = %d, want 2", len(zr.File))
	}
	if zr.File[0].Name != "001_image.webp" || zr.File[1].Name != "003_image.webp" {
		t.Fatalf("entries = %q, %q", zr.File[0].Name, zr.File[1].Name)
	}
}
