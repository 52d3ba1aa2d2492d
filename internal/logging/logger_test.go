package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsAreMirroredToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.log")
	require.NoError(t, os.WriteFile(path, []byte("stale line\n"), 0o644))

	var out bytes.Buffer
	l, err := New(Options{ErrorsPath: path, Output: &out})
	require.NoError(t, err)

	l.Infof("upload started")
	l.With("platform", "tiktok").Errorf("upload failed: %s", "boom")
	l.Error(errors.New("second"))
	l.Error(nil)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.NotContains(t, content, "stale line")
	assert.NotContains(t, content, "upload started")
	assert.Contains(t, content, "upload failed: boom")
	assert.Contains(t, content, "platform=tiktok")
	assert.Contains(t, out.String(), "upload started")
}

func TestDebugNeedsVerbose(t *testing.T) {
	var out bytes.Buffer
	l, err := New(Options{Output: &out})
	require.NoError(t, err)
	l.Debugf("hidden")
	assert.Empty(t, out.String())

	l, err = New(Options{Output: &out, Verbose: true})
	require.NoError(t, err)
	l.Debugf("shown")
	assert.Contains(t, out.String(), "shown")
}

func TestTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.log")
	lines := []string{"one", "two", "three", "four", "five"}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	got, err := Tail(path, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"three", "four", "five"}, got)

	got, err = Tail(path, 10)
	require.NoError(t, err)
	assert.Equal(t, lines, got)

	got, err = Tail(path, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = Tail(filepath.Join(t.TempDir(), "missing.log"), 3)
	assert.Error(t, err)
}
