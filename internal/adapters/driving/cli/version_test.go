package cli

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withVersion(t *testing.T, v string) {
	t.Helper()
	prev := version
	SetVersion(v)
	t.Cleanup(func() { version = prev })
}

func TestVersionCmd_Text(t *testing.T) {
	withVersion(t, "1.2.3")
	defer resetFlags()

	out, err := execute("version")

	require.NoError(t, err)
	assert.Contains(t, out, "smartmarket version 1.2.3")
	assert.Contains(t, out, runtime.Version())
	assert.Contains(t, out, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestVersionCmd_JSON(t *testing.T) {
	withVersion(t, "dev")
	defer resetFlags()

	out, err := execute("version", "--json")
	require.NoError(t, err)

	var got buildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, currentBuild(), got)
	assert.Equal(t, "dev", got.Version)
}

func TestVersionCmd_RejectsArgs(t *testing.T) {
	defer resetFlags()

	_, err := execute("version", "extra")

	assert.Error(t, err)
}
