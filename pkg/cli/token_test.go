package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestAPIToken_Keyring(t *testing.T) {
	keyring.MockInit()
	dir := t.TempDir()

	token, err := getAPIToken(dir)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, saveAPIToken(dir, "secret"))
	token, err = getAPIToken(dir)
	require.NoError(t, err)
	assert.Equal(t, "secret", token)

	_, err = os.Stat(filepath.Join(dir, tokenFileName))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	require.NoError(t, deleteAPIToken(dir))
	token, err = getAPIToken(dir)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestAPIToken_FileFallback(t *testing.T) {
	keyring.MockInitWithError(errors.New("no keychain"))
	t.Cleanup(keyring.MockInit)
	dir := t.TempDir()

	require.NoError(t, saveAPIToken(dir, "secret"))

	info, err := os.Stat(filepath.Join(dir, tokenFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	token, err := getAPIToken(dir)
	require.NoError(t, err)
	assert.Equal(t, "secret", token)

	require.NoError(t, deleteAPIToken(dir))
	token, err = getAPIToken(dir)
	require.NoError(t, err)
	assert.Empty(t, token)
}
