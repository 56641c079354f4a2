// Package intake polls an inbox for contract PDFs and feeds each one
// through the pipeline.
package intake

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/netsheet-cli/internal/pipeline"
)

// MessageRef identifies an unread message in a MailSource.
type MessageRef struct {
	ID string
}

// Attachment is a PDF attachment materialized on local disk.
type Attachment struct {
	Name string
	Path string
}

// Message is a fetched inbox message.
type Message struct {
	Ref         MessageRef
	Sender      string
	Subject     string
	ReceivedAt  time.Time
	Attachments []Attachment
}

// MailSource is the inbox transport.
type MailSource interface {
	ListUnread(ctx context.Context) ([]MessageRef, error)
	Fetch(ctx context.Context, ref MessageRef) (*Message, error)
	MarkSeen(ctx context.Context, ref MessageRef) error
}

// Notifier delivers a processed report back to the sender. Sources that can
// reply implement it alongside MailSource.
type Notifier interface {
	Notify(ctx context.Context, msg *Message, reports []*pipeline.Report) error
}

// DirSource treats every PDF in a directory as one unread message. Seen
// files are moved into ProcessedDir, which defaults to <Dir>/processed.
type DirSource struct {
	Dir          string
	ProcessedDir string
}

// NewDirSource creates a DirSource over dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir, ProcessedDir: filepath.Join(dir, "processed")}
}

// ListUnread returns the PDFs in the inbox, sorted by name.
func (s *DirSource) ListUnread(ctx context.Context) ([]MessageRef, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, eris.Wrapf(err, "intake: read inbox %s", s.Dir)
	}
	var refs []MessageRef
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		refs = append(refs, MessageRef{ID: e.Name()})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, ctx.Err()
}

// Fetch returns a message whose single attachment is the inbox file.
func (s *DirSource) Fetch(_ context.Context, ref MessageRef) (*Message, error) {
	path := filepath.Join(s.Dir, filepath.Base(ref.ID))
	info, err := os.Stat(path)
	if err != nil {
		return nil, eris.Wrapf(err, "intake: stat %s", ref.ID)
	}
	return &Message{
		Ref:         ref,
		Sender:      "inbox",
		Subject:     ref.ID,
		ReceivedAt:  info.ModTime().UTC(),
		Attachments: []Attachment{{Name: ref.ID, Path: path}},
	}, nil
}

// MarkSeen moves the file out of the inbox.
func (s *DirSource) MarkSeen(_ context.Context, ref MessageRef) error {
	if err := os.MkdirAll(s.processedDir(), 0o755); err != nil {
		return eris.Wrap(err, "intake: create processed dir")
	}
	name := filepath.Base(ref.ID)
	if err := os.Rename(filepath.Join(s.Dir, name), filepath.Join(s.processedDir(), name)); err != nil {
		return eris.Wrapf(err, "intake: mark seen %s", name)
	}
	return nil
}

// Notify writes the reports as <name>.result.json next to the processed file.
func (s *DirSource) Notify(_ context.Context, msg *Message, reports []*pipeline.Report) error {
	if err := os.MkdirAll(s.processedDir(), 0o755); err != nil {
		return eris.Wrap(err, "intake: create processed dir")
	}
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return eris.Wrap(err, "intake: marshal reports")
	}
	name := strings.TrimSuffix(filepath.Base(msg.Ref.ID), filepath.Ext(msg.Ref.ID)) + ".result.json"
	if err := os.WriteFile(filepath.Join(s.processedDir(), name), data, 0o644); err != nil {
		return eris.Wrapf(err, "intake: write %s", name)
	}
	return nil
}

func (s *DirSource) processedDir() string {
	if s.ProcessedDir != "" {
		return s.ProcessedDir
	}
	return filepath.Join(s.Dir, "processed")
}
