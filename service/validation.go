package service

import (
	"encoding/json"
	"errors"
	"regexp"

	"github.com/LeoTokuo/canvas-project-online/models"
)

var sessionIdRegex = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)
var hexColorRegex = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

const (
	maxObjectIdLength  = 64
	maxObjectTypeLen   = 32
	maxLayer           = 1000
	minLayer           = -1000
	maxStrokeWidth     = 100
	maxDocumentObjects = 2000
	maxPageNumber      = 1000
)

// MaxDocumentBytes bounds the serialized form of documents and snapshots.
// The websocket read limit is derived from it, so anything that passes
// validation can also arrive over the socket.
const MaxDocumentBytes = 1 << 20

// ValidateSessionID accepts UUIDs as well as the opaque integer keys of
// sessions migrated from the old database.
func ValidateSessionID(sessionId string) error {
	if !sessionIdRegex.MatchString(sessionId) {
		return errors.New("invalid session id")
	}
	return nil
}

func ValidatePageNumber(number int) error {
	if number < 1 || number > maxPageNumber {
		return errors.New("invalid page number")
	}
	return nil
}

func ValidateObject(obj models.CanvasObject) error {
	if obj.Id == "" || len(obj.Id) > maxObjectIdLength {
		return errors.New("invalid object id")
	}

	if len(obj.Type) > maxObjectTypeLen {
		return errors.New("invalid object type")
	}

	if obj.Layer < minLayer || obj.Layer > maxLayer {
		return errors.New("invalid layer")
	}

	// Color fields are optional; when present they must be hex colors
	if obj.Fill != "" && !hexColorRegex.MatchString(obj.Fill) {
		return errors.New("invalid fill color")
	}
	if obj.Stroke != "" && !hexColorRegex.MatchString(obj.Stroke) {
		return errors.New("invalid stroke color")
	}

	if obj.StrokeWidth < 0 || obj.StrokeWidth > maxStrokeWidth {
		return errors.New("invalid stroke width")
	}

	return nil
}

func ValidateDocument(doc models.CanvasDocument) error {
	if len(doc.Objects) > maxDocumentObjects {
		return errors.New("document has too many objects")
	}

	seen := make(map[string]struct{}, len(doc.Objects))
	for _, obj := range doc.Objects {
		if err := ValidateObject(obj); err != nil {
			return err
		}
		if _, ok := seen[obj.Id]; ok {
			return errors.New("duplicate object id in document")
		}
		seen[obj.Id] = struct{}{}
	}

	docBytes, err := json.Marshal(doc)
	if err != nil {
		return errors.New("document is not serializable")
	}
	if len(docBytes) > MaxDocumentBytes {
		return errors.New("document too large")
	}

	return nil
}

// ValidateSnapshot bounds the legacy full-snapshot blob. The blob itself
// stays opaque; the frontend owns its shape.
func ValidateSnapshot(data json.RawMessage) error {
	if len(data) == 0 {
		return errors.New("empty snapshot")
	}
	if len(data) > MaxDocumentBytes {
		return errors.New("snapshot too large")
	}
	if !json.Valid(data) {
		return errors.New("snapshot is not valid JSON")
	}
	return nil
}
