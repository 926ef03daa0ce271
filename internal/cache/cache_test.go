package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenCreatesDatabaseAndTable(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	require.FileExists(t, filepath.Join(dir, FileName))

	_, found, err := s.Lookup("myisa", "myprefix")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRecordAndLookupRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	row := Row{
		ISAName:      "myisa",
		Prefix:       "myprefix",
		InputDigest:  "abc123",
		OutputDigest: "def456",
		OpcodeCount:  7,
		BuildID:      "build-1",
		GeneratedAt:  "2026-07-29T00:00:00Z",
	}
	require.NoError(t, s.Record(row))

	got, found, err := s.Lookup("myisa", "myprefix")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, row, got)

	row.InputDigest = "zzz"
	require.NoError(t, s.Record(row))
	got, found, err = s.Lookup("myisa", "myprefix")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "zzz", got.InputDigest)
}

func TestDigestFilesIsOrderSensitive(t *testing.T) {
	a := DigestFiles([][]byte{[]byte("foo"), []byte("bar")})
	b := DigestFiles([][]byte{[]byte("bar"), []byte("foo")})
	require.NotEqual(t, a, b)

	c := DigestFiles([][]byte{[]byte("foo"), []byte("bar")})
	require.Equal(t, a, c)
}

func TestDigestOutputFilesMissingFileIsNotOk(t *testing.T) {
	_, ok := DigestOutputFiles([]string{filepath.Join(t.TempDir(), "missing.txt")})
	require.False(t, ok)
}

func TestUpToDateDetectsDrift(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(outPath, []byte("hello"), 0o644))

	outDigest, ok := DigestOutputFiles([]string{outPath})
	require.True(t, ok)

	row := Row{InputDigest: "in1", OutputDigest: outDigest}
	require.True(t, UpToDate(row, "in1", []string{outPath}))
	require.False(t, UpToDate(row, "in2", []string{outPath}))

	require.NoError(t, os.WriteFile(outPath, []byte("changed"), 0o644))
	require.False(t, UpToDate(row, "in1", []string{outPath}))
}
