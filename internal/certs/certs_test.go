package certs

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(t *testing.T, cert tls.Certificate) *x509.Certificate {
	t.Helper()
	require.Len(t, cert.Certificate, 1)
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return parsed
}

func TestFileManager_IssuesCertificate(t *testing.T) {
	m := NewFileManager(filepath.Join(t.TempDir(), "certs"), "books.lan")

	cert, err := m.GetOrCreateCertificate()
	require.NoError(t, err)

	c := leaf(t, cert)
	assert.Equal(t, "books", c.Subject.Organization[0])
	for _, host := range []string{"localhost", "127.0.0.1", "::1", "books.lan"} {
		assert.NoError(t, c.VerifyHostname(host), host)
	}
	assert.True(t, c.NotAfter.After(time.Now().Add(364*24*time.Hour)))

	info, err := os.Stat(m.keyFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileManager_ReusesValidCertificate(t *testing.T) {
	m := NewFileManager(t.TempDir())

	first, err := m.GetOrCreateCertificate()
	require.NoError(t, err)
	second, err := m.GetOrCreateCertificate()
	require.NoError(t, err)

	assert.Equal(t, leaf(t, first).SerialNumber, leaf(t, second).SerialNumber)
}

func TestFileManager_Regenerates(t *testing.T) {
	tests := []struct {
		prepare func(t *testing.T, m *FileManager)
		name    string
	}{
		{
			name: "corrupt files",
			prepare: func(t *testing.T, m *FileManager) {
				t.Helper()
				require.NoError(t, os.WriteFile(m.certFile, []byte("not a certificate"), 0600))
				require.NoError(t, os.WriteFile(m.keyFile, []byte("not a key"), 0600))
			},
		},
		{
			name: "expiring soon",
			prepare: func(_ *testing.T, m *FileManager) {
				m.now = func() time.Time { return time.Now().Add(validity - renewBefore/2) }
			},
		},
		{
			name: "new host added",
			prepare: func(_ *testing.T, m *FileManager) {
				m.hosts = append(m.hosts, "ledger.lan")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			original, err := NewFileManager(dir).GetOrCreateCertificate()
			require.NoError(t, err)

			m := NewFileManager(dir)
			tt.prepare(t, m)

			cert, err := m.GetOrCreateCertificate()
			require.NoError(t, err)
			assert.NotEqual(t, leaf(t, original).SerialNumber, leaf(t, cert).SerialNumber)
		})
	}
}

type failingManager struct{ err error }

func (f failingManager) GetOrCreateCertificate() (tls.Certificate, error) {
	return tls.Certificate{}, f.err
}

func TestTLSConfig(t *testing.T) {
	cfg, err := TLSConfig(NewFileManager(t.TempDir()))
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)

	_, err = TLSConfig(failingManager{err: os.ErrPermission})
	assert.ErrorIs(t, err, os.ErrPermission)
}
