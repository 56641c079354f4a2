package report

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Uploader stores a local file and returns a shareable link.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// DirUploader copies files into a shared directory (a synced drive folder
// or network mount) and links them with file:// URLs. Each upload goes into
// its own subdirectory so repeated runs never overwrite each other.
type DirUploader struct {
	Dir string
}

func (u *DirUploader) Upload(ctx context.Context, localPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	destDir := filepath.Join(u.Dir, uuid.NewString())
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "report: create upload dir")
	}
	dest := filepath.Join(destDir, filepath.Base(localPath))

	src, err := os.Open(localPath)
	if err != nil {
		return "", eris.Wrap(err, "report: open upload source")
	}
	defer src.Close() //nolint:errcheck

	dst, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrap(err, "report: create upload target")
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close() //nolint:errcheck
		return "", eris.Wrap(err, "report: copy upload")
	}
	if err := dst.Close(); err != nil {
		return "", eris.Wrap(err, "report: close upload target")
	}

	abs, err := filepath.Abs(dest)
	if err != nil {
		return "", eris.Wrap(err, "report: resolve upload path")
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

// UploadAll uploads every artifact and returns links keyed by file name.
func UploadAll(ctx context.Context, up Uploader, a Artifacts) (map[string]string, error) {
	links := make(map[string]string, 4)
	for _, p := range a.Paths() {
		link, err := up.Upload(ctx, p)
		if err != nil {
			return links, eris.Wrapf(err, "report: upload %s", filepath.Base(p))
		}
		links[filepath.Base(p)] = link
	}
	return links, nil
}
