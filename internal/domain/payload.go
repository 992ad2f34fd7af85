package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// PayloadKind discriminates report content.
type PayloadKind string

const (
	PayloadText     PayloadKind = "text"
	PayloadMedia    PayloadKind = "media"
	PayloadDocument PayloadKind = "document"
)

// MediaType differentiates media payloads.
type MediaType string

const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
)

// TextContent is a plain text report, usually a link to a social post.
type TextContent struct {
	Body string `json:"body"`
}

// MediaContent references a photo or video held by the chat platform.
type MediaContent struct {
	Type       MediaType `json:"type"`
	FileID     string    `json:"file_id"`
	Caption    string    `json:"caption,omitempty"`
	StorageKey string    `json:"storage_key,omitempty"`
}

// DocumentContent references an uploaded document.
type DocumentContent struct {
	FileID     string `json:"file_id"`
	FileName   string `json:"file_name,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
	Caption    string `json:"caption,omitempty"`
	StorageKey string `json:"storage_key,omitempty"`
}

// Payload is the tagged content of a submission or potential message.
// Exactly one of the variant fields matches Kind.
type Payload struct {
	Kind     PayloadKind      `json:"kind"`
	Text     *TextContent     `json:"text,omitempty"`
	Media    *MediaContent    `json:"media,omitempty"`
	Document *DocumentContent `json:"document,omitempty"`
}

// NewTextPayload builds a text payload.
func NewTextPayload(body string) Payload {
	return Payload{Kind: PayloadText, Text: &TextContent{Body: body}}
}

// NewMediaPayload builds a photo or video payload.
func NewMediaPayload(mediaType MediaType, fileID, caption string) Payload {
	return Payload{Kind: PayloadMedia, Media: &MediaContent{Type: mediaType, FileID: fileID, Caption: caption}}
}

// NewDocumentPayload builds a document payload.
func NewDocumentPayload(fileID, fileName, mimeType, caption string) Payload {
	return Payload{Kind: PayloadDocument, Document: &DocumentContent{
		FileID:   fileID,
		FileName: fileName,
		MimeType: mimeType,
		Caption:  caption,
	}}
}

// Validate checks that the discriminant and variant fields agree.
func (p Payload) Validate() error {
	switch p.Kind {
	case PayloadText:
		if p.Text == nil || p.Media != nil || p.Document != nil {
			return errors.New("text payload must carry only text content")
		}
		if strings.TrimSpace(p.Text.Body) == "" {
			return errors.New("text payload is empty")
		}
	case PayloadMedia:
		if p.Media == nil || p.Text != nil || p.Document != nil {
			return errors.New("media payload must carry only media content")
		}
		if p.Media.FileID == "" {
			return errors.New("media payload has no file id")
		}
		if p.Media.Type != MediaPhoto && p.Media.Type != MediaVideo {
			return fmt.Errorf("unknown media type %q", p.Media.Type)
		}
	case PayloadDocument:
		if p.Document == nil || p.Text != nil || p.Media != nil {
			return errors.New("document payload must carry only document content")
		}
		if p.Document.FileID == "" {
			return errors.New("document payload has no file id")
		}
	default:
		return fmt.Errorf("unknown payload kind %q", p.Kind)
	}
	return nil
}

// Label names the payload for listings and counters.
func (p Payload) Label() string {
	switch p.Kind {
	case PayloadText:
		return "text"
	case PayloadMedia:
		if p.Media != nil {
			return string(p.Media.Type)
		}
		return "media"
	case PayloadDocument:
		return "document"
	default:
		return "unknown"
	}
}

// FileID returns the platform file id for media and documents.
func (p Payload) FileID() string {
	switch p.Kind {
	case PayloadMedia:
		if p.Media != nil {
			return p.Media.FileID
		}
	case PayloadDocument:
		if p.Document != nil {
			return p.Document.FileID
		}
	case PayloadText:
	}
	return ""
}

// StorageKey returns the archive key, or "" when the content was not archived.
func (p Payload) StorageKey() string {
	switch p.Kind {
	case PayloadMedia:
		if p.Media != nil {
			return p.Media.StorageKey
		}
	case PayloadDocument:
		if p.Document != nil {
			return p.Document.StorageKey
		}
	case PayloadText:
	}
	return ""
}

// WithStorageKey returns a copy of the payload pointing at an archived copy.
func (p Payload) WithStorageKey(key string) Payload {
	switch p.Kind {
	case PayloadMedia:
		if p.Media != nil {
			media := *p.Media
			media.StorageKey = key
			p.Media = &media
		}
	case PayloadDocument:
		if p.Document != nil {
			doc := *p.Document
			doc.StorageKey = key
			p.Document = &doc
		}
	case PayloadText:
	}
	return p
}

// Preview renders a short human readable summary.
func (p Payload) Preview(max int) string {
	var text string
	switch p.Kind {
	case PayloadText:
		if p.Text != nil {
			text = p.Text.Body
		}
	case PayloadMedia:
		if p.Media != nil {
			text = "[" + string(p.Media.Type) + "]"
			if p.Media.Caption != "" {
				text += " " + p.Media.Caption
			}
		}
	case PayloadDocument:
		if p.Document != nil {
			text = "[document " + p.Document.FileName + "]"
			if p.Document.Caption != "" {
				text += " " + p.Document.Caption
			}
		}
	default:
		text = "[unknown]"
	}
	return truncate(strings.TrimSpace(text), max)
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
