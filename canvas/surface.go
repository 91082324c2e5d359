// Package canvas implements the client-side apply engine for the
// collaborative drawing surface: an in-memory object collection that applies
// inbound deltas and snapshots idempotently, and guarantees that mutations
// caused by applying a remote event are never published again.
package canvas

import (
	"sync"

	"github.com/LeoTokuo/canvas-project-online/models"
)

// Event is a locally originated mutation reported through the emit hook. The
// transport layer is expected to wrap it in an ObjectDelta and publish it.
type Event struct {
	Kind     string
	Object   *models.CanvasObject
	ObjectId string
}

type EmitFunc func(Event)

// Surface holds one client's view of the shared canvas. Mutations made by
// the local user flow through AddObject/ModifyObject/RemoveObject and are
// reported via emit; mutations received from peers flow through the Apply
// methods and are not re-emitted.
//
// The render surface fires a change callback on every insertion or removal,
// including ones performed while applying a remote event. Re-publication is
// prevented with a suppress set keyed by object id, held only for the
// duration of the single synchronous apply call.
type Surface struct {
	mu         sync.Mutex
	objects    map[string]models.CanvasObject
	order      []string
	background []byte
	suppress   map[string]struct{}
	emit       EmitFunc
}

func NewSurface(emit EmitFunc) *Surface {
	return &Surface{
		objects:  make(map[string]models.CanvasObject),
		suppress: make(map[string]struct{}),
		emit:     emit,
	}
}

// AddObject inserts a locally drawn object, assigning an id if the object
// does not carry one, and emits an added event. Returns the object id.
func (s *Surface) AddObject(obj models.CanvasObject) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if obj.Id == "" {
		obj.Id = NewObjectID()
	}
	// An id that is already present would end up twice in the draw order.
	if _, ok := s.objects[obj.Id]; ok {
		return obj.Id
	}
	s.insert(obj)
	return obj.Id
}

// ModifyObject replaces a locally edited object and emits a modified event.
// Unknown ids are ignored.
func (s *Surface) ModifyObject(obj models.CanvasObject) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[obj.Id]; !ok {
		return false
	}
	s.replace(obj)
	return true
}

// RemoveObject deletes a locally erased object and emits a removed event.
func (s *Surface) RemoveObject(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[id]; !ok {
		return false
	}
	s.remove(id)
	return true
}

// ApplyAdded materializes an object received from a peer. If an object with
// the same id already exists the event is a no-op, which guards against
// duplicate delivery and re-broadcast races.
func (s *Surface) ApplyAdded(obj models.CanvasObject) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if obj.Id == "" {
		return
	}
	if _, ok := s.objects[obj.Id]; ok {
		return
	}

	s.suppress[obj.Id] = struct{}{}
	s.insert(obj)
	delete(s.suppress, obj.Id)
}

// ApplyModified replaces an existing object with the peer's version. The
// whole object is swapped rather than patched field by field, so the
// later-delivered event wins outright. Events for unknown ids are dropped.
func (s *Surface) ApplyModified(obj models.CanvasObject) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if obj.Id == "" {
		return
	}
	if _, ok := s.objects[obj.Id]; !ok {
		return
	}

	s.suppress[obj.Id] = struct{}{}
	s.replace(obj)
	delete(s.suppress, obj.Id)
}

// ApplyRemoved deletes the object with the given id; absent ids are a no-op.
func (s *Surface) ApplyRemoved(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[id]; !ok {
		return
	}

	s.suppress[id] = struct{}{}
	s.remove(id)
	delete(s.suppress, id)
}

// LoadSnapshot discards all current objects and re-materializes the surface
// from a full document. Used on initial session open and on page switches;
// nothing is emitted.
func (s *Surface) LoadSnapshot(doc models.CanvasDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects = make(map[string]models.CanvasObject, len(doc.Objects))
	s.order = s.order[:0]
	for _, obj := range doc.Objects {
		if obj.Id == "" {
			obj.Id = NewObjectID()
		}
		if _, ok := s.objects[obj.Id]; ok {
			continue
		}
		s.objects[obj.Id] = obj
		s.order = append(s.order, obj.Id)
	}
	s.background = doc.Background
}

// Snapshot returns the surface as a canvas document, objects in insertion
// order.
func (s *Surface) Snapshot() models.CanvasDocument {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := models.CanvasDocument{
		Objects:    make([]models.CanvasObject, 0, len(s.order)),
		Background: s.background,
	}
	for _, id := range s.order {
		doc.Objects = append(doc.Objects, s.objects[id])
	}
	return doc
}

func (s *Surface) HasObject(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[id]
	return ok
}

func (s *Surface) ObjectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// insert adds the object and fires the surface change callback, which
// publishes unless the id is suppressed. Callers hold the lock.
func (s *Surface) insert(obj models.CanvasObject) {
	s.objects[obj.Id] = obj
	s.order = append(s.order, obj.Id)
	s.changed(Event{Kind: models.DeltaObjectAdded, Object: &obj})
}

// replace swaps the object in place, keeping its position in draw order.
func (s *Surface) replace(obj models.CanvasObject) {
	s.objects[obj.Id] = obj
	s.changed(Event{Kind: models.DeltaObjectModified, Object: &obj})
}

func (s *Surface) remove(id string) {
	delete(s.objects, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.changed(Event{Kind: models.DeltaObjectRemoved, ObjectId: id})
}

func (s *Surface) changed(ev Event) {
	if s.emit == nil {
		return
	}

	id := ev.ObjectId
	if ev.Object != nil {
		id = ev.Object.Id
	}
	if _, ok := s.suppress[id]; ok {
		return
	}

	s.emit(ev)
}
