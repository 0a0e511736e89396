package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decimal-labs/leakwatch/internal/model"
)

func drain(t *testing.T, src Source) []model.Document {
	t.Helper()
	ch, wait := Feed(context.Background(), src, 4)
	var docs []model.Document
	for d := range ch {
		docs = append(docs, d)
	}
	require.NoError(t, wait())
	return docs
}

func TestCanonicalSource(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "HTTP://Paste.Example.COM/raw/abc?x=1#top", want: "http://paste.example.com/raw/abc"},
		{in: "https://forum.example/t/9///", want: "https://forum.example/t/9/"},
		{in: "https://forum.example", want: "https://forum.example/"},
		{in: "//cdn.example/a", want: "http://cdn.example/a"},
		{in: "  file:///tmp/dump.txt ", want: "file:///tmp/dump.txt"},
		{in: "irc-channel-42", want: "irc-channel-42"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalSource(tt.in))
		})
	}
}

func TestJSONLSource(t *testing.T) {
	input := strings.Join([]string{
		`{"source": "https://Paste.example/a?utm=1", "text": "Aadhaar 234123412346", "discovered_at": "2026-02-03T04:05:06Z"}`,
		``,
		`{not json`,
		`{"url": "https://forum.example/t/1", "text": "a@b.com", "byte_length": 7}`,
	}, "\n")

	src := NewJSONLSource(strings.NewReader(input), nil)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return fixed }

	docs := drain(t, src)
	require.Len(t, docs, 2)
	assert.Equal(t, 1, src.Skipped)

	assert.Equal(t, "https://paste.example/a", docs[0].Source)
	assert.Equal(t, "Aadhaar 234123412346", docs[0].Text)
	assert.True(t, docs[0].DiscoveredAt.Equal(time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)))

	assert.Equal(t, "https://forum.example/t/1", docs[1].Source)
	assert.Equal(t, 7, docs[1].ByteLength)
	assert.True(t, docs[1].DiscoveredAt.Equal(fixed))
}

func TestJSONLSource_StopsOnCancel(t *testing.T) {
	input := strings.Repeat(`{"source":"s","text":"t"}`+"\n", 10)
	src := NewJSONLSource(strings.NewReader(input), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := src.Stream(ctx, make(chan model.Document))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDirSource(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "dump.txt"), []byte("PAN ABCPE1234F"), 0600))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nested"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "nested", "scan.png"), []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden"), []byte("secret"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "huge.txt"), []byte(strings.Repeat("x", 64)), 0600))

	src := NewDirSource(root, nil)
	src.MaxFileSize = 32

	docs := drain(t, src)
	require.Len(t, docs, 2)

	bySuffix := map[string]model.Document{}
	for _, d := range docs {
		assert.True(t, strings.HasPrefix(d.Source, "file://"))
		bySuffix[filepath.Base(d.Source)] = d
	}

	txt := bySuffix["dump.txt"]
	assert.Equal(t, "PAN ABCPE1234F", txt.Text)
	assert.Equal(t, len(txt.Text), txt.ByteLength)
	assert.False(t, txt.Binary)

	assert.True(t, bySuffix["scan.png"].Binary)
}

func TestIsBinary(t *testing.T) {
	assert.False(t, isBinary([]byte("plain text with ünïcode")))
	assert.True(t, isBinary([]byte{0xff, 0xfe, 0x00, 0x41}))
	assert.True(t, isBinary([]byte("%PDF-1.7\n...")))
}
