package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/LeoTokuo/canvas-project-online/models"
)

var ErrMalformedDelta = errors.New("malformed delta payload")

// ValidateDelta checks that a delta carries what its kind requires: added
// and modified a full object, removed an object id.
func ValidateDelta(kind string, delta models.ObjectDelta) error {
	switch kind {
	case models.DeltaObjectAdded, models.DeltaObjectModified:
		if delta.Object == nil {
			return ErrMalformedDelta
		}
		return ValidateObject(*delta.Object)

	case models.DeltaObjectRemoved:
		if delta.ObjectId == "" || len(delta.ObjectId) > maxObjectIdLength {
			return ErrMalformedDelta
		}
		return nil

	default:
		return ErrMalformedDelta
	}
}

// RelayDelta publishes an object mutation to the session's room. Origin is
// the publishing connection's id; every hub instance skips delivery back to
// that connection, so a publisher never receives its own event. Publishing
// to a room nobody is subscribed to is a silent no-op.
func (s *Service) RelayDelta(ctx context.Context, origin string, kind string, delta models.ObjectDelta) error {
	if err := ValidateSessionID(delta.SessionId); err != nil {
		return err
	}
	if err := ValidateDelta(kind, delta); err != nil {
		return err
	}

	deltaBytes, err := json.Marshal(delta)
	if err != nil {
		return err
	}

	envelope := models.RoomEnvelope{
		Origin: origin,
		Type:   kind,
		Data:   deltaBytes,
	}

	envelopeBytes, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	return s.Cache.Publish(ctx, RoomChannel(delta.SessionId), envelopeBytes)
}
