package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeypair(t *testing.T) []byte {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return priv
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	keypair := testKeypair(t)

	blob, err := EncryptKeypair(keypair, "correct horse")
	require.NoError(t, err)

	got, err := DecryptKeypair(blob, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, keypair, got)
}

func TestDecryptWrongPasswordFails(t *testing.T) {
	blob, err := EncryptKeypair(testKeypair(t), "correct horse")
	require.NoError(t, err)

	_, err = DecryptKeypair(blob, "battery staple")
	assert.Error(t, err)
}

func TestEncryptRejectsBadInput(t *testing.T) {
	_, err := EncryptKeypair(testKeypair(t), "")
	assert.Error(t, err, "empty password")

	_, err = EncryptKeypair([]byte("too short"), "pw")
	assert.Error(t, err, "wrong keypair size")
}

func TestDecryptRejectsUnknownVersion(t *testing.T) {
	blob, err := EncryptKeypair(testKeypair(t), "pw")
	require.NoError(t, err)

	var stored map[string]any
	require.NoError(t, json.Unmarshal(blob, &stored))
	stored["version"] = 99
	tampered, err := json.Marshal(stored)
	require.NoError(t, err)

	_, err = DecryptKeypair(tampered, "pw")
	assert.ErrorContains(t, err, "unsupported version")
}

func TestLoadKeypairFromRawBase64(t *testing.T) {
	keypair := testKeypair(t)

	got, err := LoadKeypair(KeyConfig{RawKeypair: base64.StdEncoding.EncodeToString(keypair)})
	require.NoError(t, err)
	assert.Equal(t, keypair, got)

	_, err = LoadKeypair(KeyConfig{RawKeypair: "not base64 !!!"})
	assert.Error(t, err)
}

func TestLoadKeypairFromSolanaCLIFile(t *testing.T) {
	keypair := testKeypair(t)

	values := make([]int, len(keypair))
	for i, b := range keypair {
		values[i] = int(b)
	}
	data, err := json.Marshal(values)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	got, err := LoadKeypair(KeyConfig{KeypairPath: path})
	require.NoError(t, err)
	assert.Equal(t, keypair, got)
}

func TestLoadKeypairFromEncryptedFile(t *testing.T) {
	keypair := testKeypair(t)

	blob, err := EncryptKeypair(keypair, "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "wallet.enc.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadKeypair(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, keypair, got)
}

func TestLoadKeypairRawTakesPrecedence(t *testing.T) {
	keypair := testKeypair(t)

	got, err := LoadKeypair(KeyConfig{
		RawKeypair:  base64.StdEncoding.EncodeToString(keypair),
		KeypairPath: "/does/not/exist.json",
	})
	require.NoError(t, err)
	assert.Equal(t, keypair, got)
}

func TestLoadKeypairNoSourceConfigured(t *testing.T) {
	_, err := LoadKeypair(KeyConfig{})
	assert.Error(t, err)
}
