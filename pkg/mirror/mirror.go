package mirror

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"

	"github.com/overspend1/oversync/pkg/crypto"
	"github.com/overspend1/oversync/pkg/types"
)

// Mirror is the Remote Mirror: stores encrypted vault blobs in a
// hosted repository identified by {Owner, Repo, Branch} and advances
// that branch atomically as the vault changes.
type Mirror struct {
	client *github.Client
	enc    *crypto.Encryptor
	cfg    types.MirrorConfig
}

// New builds a Mirror authenticated with cfg.Token.
func New(cfg types.MirrorConfig, enc *crypto.Encryptor) *Mirror {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	httpClient := oauth2.NewClient(context.Background(), ts)
	return &Mirror{
		client: github.NewClient(httpClient),
		enc:    enc,
		cfg:    cfg,
	}
}

// UploadFile encrypts plaintext under the shared Encryptor, wraps it
// in the on-disk envelope, and creates a blob object. It does not
// modify any tree or ref.
func (m *Mirror) UploadFile(ctx context.Context, plaintext []byte) (string, error) {
	blob, err := m.enc.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	content, err := encodeEnvelope(blob)
	if err != nil {
		return "", err
	}

	encoding := "base64"
	created, _, err := m.client.Git.CreateBlob(ctx, m.cfg.Owner, m.cfg.Repo, &github.Blob{
		Content:  &content,
		Encoding: &encoding,
	})
	if err != nil {
		return "", fmt.Errorf("%w: create blob: %v", types.ErrIO, err)
	}
	return created.GetSHA(), nil
}

// DownloadFile fetches blobSHA, unwraps the envelope, and decrypts
// the plaintext.
func (m *Mirror) DownloadFile(ctx context.Context, blobSHA string) ([]byte, error) {
	blob, _, err := m.client.Git.GetBlob(ctx, m.cfg.Owner, m.cfg.Repo, blobSHA)
	if err != nil {
		return nil, fmt.Errorf("%w: get blob: %v", types.ErrIO, err)
	}

	encBlob, err := decodeEnvelope(blob.GetContent())
	if err != nil {
		return nil, err
	}
	return m.enc.Decrypt(encBlob)
}

// UpdateState runs the four-step commit protocol: read the branch
// tip, create a tree with one entry {path, mode=100644, blob=blobSHA}
// derived from that tip, commit it with message, and advance the
// branch ref with force=false. A concurrent external update to the
// branch surfaces as types.ErrConflict; there is no automatic retry.
func (m *Mirror) UpdateState(ctx context.Context, path, blobSHA, message string) error {
	refName := "refs/heads/" + m.cfg.Branch
	ref, _, err := m.client.Git.GetRef(ctx, m.cfg.Owner, m.cfg.Repo, refName)
	if err != nil {
		return fmt.Errorf("%w: get branch ref: %v", types.ErrIO, err)
	}
	tipSHA := ref.GetObject().GetSHA()

	mode := "100644"
	entryType := "blob"
	tree, _, err := m.client.Git.CreateTree(ctx, m.cfg.Owner, m.cfg.Repo, tipSHA, []*github.TreeEntry{
		{Path: &path, Mode: &mode, Type: &entryType, SHA: &blobSHA},
	})
	if err != nil {
		return fmt.Errorf("%w: create tree: %v", types.ErrIO, err)
	}

	commit, _, err := m.client.Git.CreateCommit(ctx, m.cfg.Owner, m.cfg.Repo, &github.Commit{
		Message: &message,
		Tree:    tree,
		Parents: []*github.Commit{{SHA: &tipSHA}},
	}, nil)
	if err != nil {
		return fmt.Errorf("%w: create commit: %v", types.ErrIO, err)
	}

	newRef := &github.Reference{
		Ref:    ref.Ref,
		Object: &github.GitObject{SHA: commit.SHA},
	}
	_, resp, err := m.client.Git.UpdateRef(ctx, m.cfg.Owner, m.cfg.Repo, newRef, false)
	if err != nil {
		if isConflictResponse(resp) {
			return fmt.Errorf("%w: branch %s advanced concurrently: %v", types.ErrConflict, m.cfg.Branch, err)
		}
		return fmt.Errorf("%w: update ref: %v", types.ErrIO, err)
	}
	return nil
}

// isConflictResponse reports whether resp reflects a rejected
// non-fast-forward ref update, the shape GitHub returns when
// force=false and the branch moved since the read in UpdateState.
func isConflictResponse(resp *github.Response) bool {
	if resp == nil {
		return false
	}
	return resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusConflict
}
