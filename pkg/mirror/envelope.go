package mirror

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/overspend1/oversync/pkg/types"
)

// blobEnvelope is the on-disk shape of an encrypted remote blob: the
// ciphertext and nonce, each base64-encoded, JSON-marshaled, and then
// base64-encoded a second time to satisfy the git blob content
// encoding.
type blobEnvelope struct {
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
}

func encodeEnvelope(blob types.EncryptedBlob) (string, error) {
	envelope := blobEnvelope{
		Ciphertext: base64.StdEncoding.EncodeToString(blob.Ciphertext),
		Nonce:      base64.StdEncoding.EncodeToString(blob.Nonce),
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("%w: encode blob envelope: %v", types.ErrIO, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func decodeEnvelope(blobContent string) (types.EncryptedBlob, error) {
	raw, err := base64.StdEncoding.DecodeString(blobContent)
	if err != nil {
		return types.EncryptedBlob{}, fmt.Errorf("%w: decode blob content: %v", types.ErrIO, err)
	}

	var envelope blobEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return types.EncryptedBlob{}, fmt.Errorf("%w: decode blob envelope: %v", types.ErrIO, err)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(envelope.Ciphertext)
	if err != nil {
		return types.EncryptedBlob{}, fmt.Errorf("%w: decode ciphertext: %v", types.ErrIO, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(envelope.Nonce)
	if err != nil {
		return types.EncryptedBlob{}, fmt.Errorf("%w: decode nonce: %v", types.ErrIO, err)
	}

	return types.EncryptedBlob{Ciphertext: ciphertext, Nonce: nonce}, nil
}
