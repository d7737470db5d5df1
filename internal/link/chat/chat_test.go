package chat

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptContents(t *testing.T) {
	script := Script("internet.example")

	assert.Contains(t, script, `OK 'AT+CGDCONT=1,"IP","internet.example"'`)
	assert.Contains(t, script, "ABORT 'BUSY'")
	assert.Contains(t, script, "ABORT 'NO CARRIER'")
	assert.Contains(t, script, "ABORT 'ERROR'")
	assert.Contains(t, script, "ABORT 'NO DIALTONE'")
	assert.Contains(t, script, "OK ATD*99#")
	assert.Contains(t, script, "CONNECT ''")

	// Deterministic output
	assert.Equal(t, script, Script("internet.example"))
}

func TestScriptInsertsAPNVerbatim(t *testing.T) {
	// No escaping is applied, matching chat's own behavior
	script := Script(`odd"apn`)
	assert.Contains(t, script, `"IP","odd"apn"`)
}

func TestWriteCreatesReadableScript(t *testing.T) {
	path, err := Write("internet.example")
	require.NoError(t, err)
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Script("internet.example"), string(data))
}
