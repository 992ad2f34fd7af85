package storage

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/domain"
)

// DownloadTimeout bounds a single file copy from the chat platform.
const DownloadTimeout = time.Minute

// FileLocator resolves a platform file id to a download URL.
// *tgbotapi.BotAPI satisfies it.
type FileLocator interface {
	GetFileDirectURL(fileID string) (string, error)
}

// Archiver copies the file behind a media or document payload into the
// archive and records the storage key on the payload.
type Archiver struct {
	archive MediaArchive
	files   FileLocator
	client  *http.Client
	logger  *zap.Logger
}

// NewArchiver builds an archiver. A nil client means http.DefaultClient.
func NewArchiver(archive MediaArchive, files FileLocator, client *http.Client, logger *zap.Logger) *Archiver {
	if archive == nil {
		archive = NopArchive{}
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{archive: archive, files: files, client: client, logger: logger}
}

// Archive returns payload with its storage key set. Archiving is best
// effort: on any failure the payload is returned unchanged and the file id
// remains the reference.
func (a *Archiver) Archive(ctx context.Context, userID int64, payload domain.Payload) domain.Payload {
	if !a.archive.Enabled() || a.files == nil || payload.Kind == domain.PayloadText {
		return payload
	}
	fileID := payload.FileID()
	if fileID == "" {
		return payload
	}

	key := ObjectKey(userID, payload)
	if err := a.copy(ctx, fileID, key, contentType(payload)); err != nil {
		a.logger.Warn("media archive failed",
			zap.Int64("user_id", userID),
			zap.String("file_id", fileID),
			zap.Error(err))
		return payload
	}
	return payload.WithStorageKey(key)
}

func (a *Archiver) copy(ctx context.Context, fileID, key, ctype string) error {
	url, err := a.files.GetFileDirectURL(fileID)
	if err != nil {
		return fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return a.archive.Put(ctx, key, resp.Body, ctype)
}

// ObjectKey names the archived copy: media/<user>/<file id><ext>.
func ObjectKey(userID int64, payload domain.Payload) string {
	return fmt.Sprintf("media/%d/%s%s", userID, sanitizeKey(payload.FileID()), extension(payload))
}

func sanitizeKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

func contentType(p domain.Payload) string {
	switch p.Kind {
	case domain.PayloadMedia:
		if p.Media != nil && p.Media.Type == domain.MediaVideo {
			return "video/mp4"
		}
		return "image/jpeg"
	case domain.PayloadDocument:
		if p.Document != nil && p.Document.MimeType != "" {
			return p.Document.MimeType
		}
	}
	return "application/octet-stream"
}

func extension(p domain.Payload) string {
	switch p.Kind {
	case domain.PayloadMedia:
		if p.Media != nil && p.Media.Type == domain.MediaVideo {
			return ".mp4"
		}
		return ".jpg"
	case domain.PayloadDocument:
		if p.Document == nil {
			return ""
		}
		if i := strings.LastIndexByte(p.Document.FileName, '.'); i >= 0 && len(p.Document.FileName)-i <= 6 {
			return strings.ToLower(p.Document.FileName[i:])
		}
		if exts, _ := mime.ExtensionsByType(p.Document.MimeType); len(exts) > 0 {
			return exts[0]
		}
	}
	return ""
}
