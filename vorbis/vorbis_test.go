package vorbis_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/audiobatch/vorbis"
)

func TestPumpErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.ogg")
	require.NoError(t, os.WriteFile(garbage, []byte("OggSnope"), 0o644))

	_, _, err := vorbis.NewPump(garbage).Pump(512)
	assert.Error(t, err)

	_, _, err = vorbis.NewPump(filepath.Join(dir, "missing.ogg")).Pump(512)
	assert.Error(t, err)
}

func TestPumpFlushIdempotent(t *testing.T) {
	p := vorbis.NewPump("never-opened.ogg")
	assert.NoError(t, p.Flush())
	assert.NoError(t, p.Flush())
}
