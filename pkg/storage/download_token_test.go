package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDownloadTokenRoundTrip(t *testing.T) {
	signer := NewDownloadTokenSigner("secret", time.Minute)

	token, expiresAt, err := signer.Generate("job-1", "register_ses-1_job-1.csv")
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	jobID, relPath, _, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
	require.Equal(t, "register_ses-1_job-1.csv", relPath)
}

func TestDownloadTokenRejectsTampering(t *testing.T) {
	signer := NewDownloadTokenSigner("secret", time.Minute)

	token, _, err := signer.Generate("job-1", "register_ses-1_job-1.csv")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token+"x", false)
	require.Error(t, err)

	other := NewDownloadTokenSigner("other-secret", time.Minute)
	_, _, _, err = other.Parse(token, false)
	require.Error(t, err)
}

func TestDownloadTokenExpiry(t *testing.T) {
	signer := NewDownloadTokenSigner("secret", time.Minute)
	signer.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }

	token, _, err := signer.Generate("job-1", "register_ses-1_job-1.csv")
	require.NoError(t, err)

	signer.now = time.Now
	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	_, _, _, err = signer.Parse(token, true)
	require.NoError(t, err)
}
