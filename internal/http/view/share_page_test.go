package view

import (
	"strings"
	"testing"
	"time"
)

func TestFormatSize(t *testing.T) {
	tests := map[int64]string{
		0:                "0 B",
		512:              "512 B",
		1024:             "1 KB",
		1536:             "1.5 KB",
		25 * 1024 * 1024: "25 MB",
		3 << 30:          "3 GB",
	}
	for in, want := range tests {
		if got := FormatSize(in); got != want {
			t.Fatalf("FormatSize(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderSharePage(t *testing.T) {
	limit := 3
	expires := time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC)
	html, err := RenderSharePage(SharePageData{
		ID:            "abc",
		Type:          "file",
		Filename:      `<script>alert(1)</script>.pdf`,
		ContentType:   "application/pdf",
		Size:          2048,
		CreatedAt:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ExpiresAt:     &expires,
		MaxDownloads:  &limit,
		DownloadCount: 1,
		BurnAfterRead: true,
		AccessURL:     "/raw/abc",
	})
	if err != nil {
		t.Fatalf("RenderSharePage returned error: %v", err)
	}

	for _, want := range []string{"CloudShare", "2 KB", "1 / 3", "2026-04-01 08:30 UTC", `href="/raw/abc"`, "deleted after it is opened"} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected page to contain %q", want)
		}
	}
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Fatal("filename must be escaped")
	}
}
