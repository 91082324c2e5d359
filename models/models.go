package models

import "encoding/json"

// Account is an authenticated caller. Guests share the fixed "guest" account
// with permission 0; stored admin accounts carry permission >= 1 and may
// initiate page switches.
type Account struct {
	Id         string
	Name       string
	Password   string
	Permission int
	Created    int64
}

// CanvasObject is one drawable object as serialized by the frontend canvas
// library. Id and Layer are the only fields the protocol inspects; the rest
// are rendering attributes carried through verbatim so the receiving side can
// re-materialize the object.
type CanvasObject struct {
	Id          string          `json:"id"`
	Type        string          `json:"type"`
	Layer       int             `json:"layer"`
	Left        float64         `json:"left"`
	Top         float64         `json:"top"`
	Width       float64         `json:"width"`
	Height      float64         `json:"height"`
	ScaleX      float64         `json:"scaleX"`
	ScaleY      float64         `json:"scaleY"`
	Angle       float64         `json:"angle"`
	Fill        string          `json:"fill,omitempty"`
	Stroke      string          `json:"stroke,omitempty"`
	StrokeWidth float64         `json:"strokeWidth,omitempty"`
	Path        json.RawMessage `json:"path,omitempty"`
	Src         string          `json:"src,omitempty"`
}

// CanvasDocument is the full state of one page: the object list plus an
// opaque background (null when unset).
type CanvasDocument struct {
	Objects    []CanvasObject  `json:"objects"`
	Background json.RawMessage `json:"background"`
}

// EmptyDocument returns the document a freshly created page starts with.
func EmptyDocument() CanvasDocument {
	return CanvasDocument{Objects: []CanvasObject{}, Background: nil}
}

type Session struct {
	Id         string
	Created    int64
	Updated    int64
	ActivePage int
	// Data is the legacy full-snapshot blob kept for single-page sessions
	// saved before the page model existed.
	Data json.RawMessage
}

type Page struct {
	SessionId string
	Number    int
	Document  CanvasDocument
	Updated   int64
}

// Delta event types as they appear on the wire.
const (
	DeltaObjectAdded    = "object:added"
	DeltaObjectModified = "object:modified"
	DeltaObjectRemoved  = "object:removed"
	EventPageSwitch     = "page_switch"
)

// ObjectDelta is the payload of the three object mutation events. Added and
// modified carry the full object; removed carries only the object id.
type ObjectDelta struct {
	SessionId string        `json:"sessionId"`
	Object    *CanvasObject `json:"object,omitempty"`
	ObjectId  string        `json:"objectId,omitempty"`
}

// PageSwitchEvent carries a page switch. Client to server it holds the
// initiator's outgoing document; server to room it holds the resolved
// document of the incoming page.
type PageSwitchEvent struct {
	SessionId  string         `json:"sessionId,omitempty"`
	Page       int            `json:"page"`
	CanvasJson CanvasDocument `json:"canvasJson"`
}

// RoomEnvelope is the message format published on a room's pub/sub channel.
// Origin is the connection id of the publisher so each hub instance can skip
// delivery back to the sender; it is empty for events that must reach the
// whole room (page switches).
type RoomEnvelope struct {
	Origin string          `json:"origin,omitempty"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
}
