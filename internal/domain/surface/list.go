package surface

import (
	"slices"

	"github.com/webitel/im-notice-service/internal/domain/event"
	"github.com/webitel/im-notice-service/internal/domain/model"
)

// List folds the event stream into the ordered wrappers of one surface.
// It is not safe for concurrent use; Surface serialises access.
type List struct {
	id    model.SurfaceID
	name  string
	items []*model.Wrapper
}

func NewList(id model.SurfaceID, name string) *List {
	return &List{id: id, name: name}
}

// Accepts applies the target filter. Only ADD events are filtered;
// REMOVE and REMOVE_ALL reach every surface whatever their target.
func (l *List) Accepts(ev *event.MessageEvent) bool {
	if ev == nil {
		return false
	}
	if ev.Kind != event.Add || ev.Target.IsZero() {
		return true
	}
	return ev.Target.Matches(l.id, l.name)
}

// Apply folds one accepted event into the list and reports whether the
// list changed.
func (l *List) Apply(ev *event.MessageEvent) bool {
	switch ev.Kind {
	case event.Add:
		if ev.Message == nil {
			return false
		}
		if w, ok := l.find(ev.Message.UseCaseID); ok {
			return w.AppendCauses(ev.Causes)
		}
		l.items = append(l.items, model.NewWrapper(*ev.Message, ev.Causes))
		return true

	case event.Remove:
		if ev.Message == nil {
			return false
		}
		idx := l.index(ev.Message.UseCaseID)
		if idx < 0 {
			return false
		}
		l.items = slices.Delete(l.items, idx, idx+1)
		return true

	case event.RemoveAll:
		changed := len(l.items) > 0
		l.items = nil
		return changed
	}
	return false
}

func (l *List) index(useCaseID string) int {
	return slices.IndexFunc(l.items, func(w *model.Wrapper) bool {
		return w.UseCaseID() == useCaseID
	})
}

func (l *List) find(useCaseID string) (*model.Wrapper, bool) {
	if idx := l.index(useCaseID); idx >= 0 {
		return l.items[idx], true
	}
	return nil, false
}

// Lookup returns a copy of the wrapper for useCaseID.
func (l *List) Lookup(useCaseID string) (model.Wrapper, bool) {
	w, ok := l.find(useCaseID)
	if !ok {
		return model.Wrapper{}, false
	}
	return w.Clone(), true
}

// Snapshot deep-copies the current list in arrival order.
func (l *List) Snapshot() []model.Wrapper {
	res := make([]model.Wrapper, 0, len(l.items))
	for _, w := range l.items {
		res = append(res, w.Clone())
	}
	return res
}

func (l *List) Len() int { return len(l.items) }
