package drive

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestPath(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first, err := Path(ctx, m, "root", "2024", "Master_CSV")
	require.NoError(t, err)

	second, err := Path(ctx, m, "root", "2024", "Master_CSV")
	require.NoError(t, err)

	assert.Equal(t, first, second, "expected existing folder to be reused")

	year, err := m.GetOrCreateFolder(ctx, "root", "2024")
	require.NoError(t, err)
	assert.NotEqual(t, year, first)
}

func TestUploadReplacesExistingFile(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id1, err := m.Upload(ctx, "root", "billing_data_2024_03.csv", CSVMimeType, strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)

	id2, err := m.Upload(ctx, "root", "billing_data_2024_03.csv", CSVMimeType, strings.NewReader("a,b\n3,4\n"))
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, []string{"billing_data_2024_03.csv"}, m.List("root"))

	r, err := m.Download(ctx, id1)
	require.NoError(t, err)

	b, _ := io.ReadAll(r)
	assert.Equal(t, "a,b\n3,4\n", string(b))
}

func TestFind(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	folder, _ := Path(ctx, m, "root", "2025", "Billing_Data")
	m.Upload(ctx, folder, "x.csv", CSVMimeType, strings.NewReader("x"))

	id, err := m.Find(ctx, folder, "x.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	id, err = m.Find(ctx, folder, "y.csv")
	require.NoError(t, err)
	assert.Empty(t, id)

	content, ok := m.Content("root", "2025/Billing_Data/x.csv")
	assert.True(t, ok)
	assert.Equal(t, "x", string(content))
}

func TestEscape(t *testing.T) {
	assert.Equal(t, `O\'Brien\\Lab`, escape(`O'Brien\Lab`))
}

func TestTokensFile(t *testing.T) {
	assert.Equal(t, filepath.Join("/etc/nemo", "credentials.tokens"), TokensFile("/etc/nemo/credentials.json", ""))
	assert.Equal(t, filepath.Join("/var/nemo", "credentials.tokens"), TokensFile("/etc/nemo/credentials.json", "/var/nemo"))
}

func TestSaveToken(t *testing.T) {
	file := filepath.Join(t.TempDir(), "google", "credentials.tokens")
	token := oauth2.Token{AccessToken: "qwerty", RefreshToken: "uiop", TokenType: "Bearer"}

	require.NoError(t, SaveToken(file, &token))

	loaded, err := tokenFromFile(file)
	require.NoError(t, err)
	assert.Equal(t, "qwerty", loaded.AccessToken)
	assert.Equal(t, "uiop", loaded.RefreshToken)

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestIsServiceAccount(t *testing.T) {
	assert.True(t, isServiceAccount([]byte(`{"type": "service_account", "client_email": "x@y"}`)))
	assert.False(t, isServiceAccount([]byte(`{"installed": {"client_id": "x"}}`)))
	assert.False(t, isServiceAccount([]byte(`not json`)))
}
