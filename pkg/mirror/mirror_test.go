package mirror

import (
	"net/http"
	"testing"

	"github.com/google/go-github/v74/github"
	"github.com/stretchr/testify/require"

	"github.com/overspend1/oversync/pkg/types"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	blob := types.EncryptedBlob{
		Ciphertext: []byte("some ciphertext bytes"),
		Nonce:      []byte("123456789012345678901234"),
	}

	content, err := encodeEnvelope(blob)
	require.NoError(t, err)

	got, err := decodeEnvelope(content)
	require.NoError(t, err)
	require.Equal(t, blob, got)
}

func TestIsConflictResponse(t *testing.T) {
	require.False(t, isConflictResponse(nil))

	require.True(t, isConflictResponse(&github.Response{
		Response: &http.Response{StatusCode: http.StatusUnprocessableEntity},
	}))
	require.True(t, isConflictResponse(&github.Response{
		Response: &http.Response{StatusCode: http.StatusConflict},
	}))
	require.False(t, isConflictResponse(&github.Response{
		Response: &http.Response{StatusCode: http.StatusOK},
	}))
}
