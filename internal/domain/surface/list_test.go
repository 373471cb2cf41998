package surface

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-notice-service/internal/domain/event"
	"github.com/webitel/im-notice-service/internal/domain/model"
)

func msg(id string, sev model.Severity) model.Message {
	return model.Message{UseCaseID: id, Severity: sev}
}

func ids(ws []model.Wrapper) []string {
	res := make([]string, 0, len(ws))
	for _, w := range ws {
		res = append(res, w.Message.UseCaseID)
	}
	return res
}

func causes(names ...string) []model.MessageCause {
	res := make([]model.MessageCause, 0, len(names))
	for _, n := range names {
		res = append(res, model.MessageCause{Cause: n})
	}
	return res
}

func causeNames(w model.Wrapper) []string {
	res := make([]string, 0, len(w.Causes))
	for _, c := range w.Causes {
		res = append(res, c.Cause)
	}
	return res
}

func fold(l *List, events ...*event.MessageEvent) {
	for _, ev := range events {
		if l.Accepts(ev) {
			l.Apply(ev)
		}
	}
}

func TestList_DistinctAddsKeepFirstSeenOrder(t *testing.T) {
	l := NewList(model.NewSurfaceID(), "")

	var want []string
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("uc-%d", (i*7)%10)
		want = append(want, id)
		fold(l, event.NewAdd(msg(id, model.SeverityInfo), nil, model.Target{}))
	}

	assert.Equal(t, want, ids(l.Snapshot()))
	assert.Equal(t, 10, l.Len())
}

func TestList_RepeatedAddAppendsCauses(t *testing.T) {
	l := NewList(model.NewSurfaceID(), "")

	fold(l,
		event.NewAdd(msg("A", model.SeverityError), causes("c1", "c2"), model.Target{}),
		event.NewAdd(msg("B", model.SeverityInfo), nil, model.Target{}),
		event.NewAdd(msg("A", model.SeverityError), causes("c3"), model.Target{}),
		event.NewAdd(msg("A", model.SeverityError), nil, model.Target{}),
	)

	snap := l.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, []string{"A", "B"}, ids(snap))
	assert.Equal(t, []string{"c1", "c2", "c3"}, causeNames(snap[0]))
	assert.True(t, snap[0].HasCause)
	assert.False(t, snap[1].HasCause)
}

func TestList_ScenarioCausesMergeIntoFirstWrapper(t *testing.T) {
	l := NewList(model.NewSurfaceID(), "")

	fold(l,
		event.NewAdd(msg("A", model.SeverityError), nil, model.Target{}),
		event.NewAdd(msg("A", model.SeverityError), causes("c1"), model.Target{}),
	)

	snap := l.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, []string{"c1"}, causeNames(snap[0]))
	assert.True(t, snap[0].HasCause)
	assert.Equal(t, model.StyleError, snap[0].Class)
}

func TestList_RepeatedAddKeepsOriginalSeverity(t *testing.T) {
	l := NewList(model.NewSurfaceID(), "")

	fold(l,
		event.NewAdd(msg("A", model.SeverityInfo), nil, model.Target{}),
		event.NewAdd(msg("A", model.SeverityFatal), causes("c1"), model.Target{}),
	)

	snap := l.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, model.SeverityInfo, snap[0].Message.Severity)
	assert.Equal(t, model.StyleInfo, snap[0].Class)
}

func TestList_Remove(t *testing.T) {
	l := NewList(model.NewSurfaceID(), "")
	fold(l,
		event.NewAdd(msg("A", model.SeverityInfo), nil, model.Target{}),
		event.NewAdd(msg("B", model.SeverityInfo), nil, model.Target{}),
		event.NewAdd(msg("C", model.SeverityInfo), nil, model.Target{}),
	)

	fold(l, event.NewRemove(msg("missing", model.SeverityInfo)))
	assert.Equal(t, []string{"A", "B", "C"}, ids(l.Snapshot()), "unmatched remove is a no-op")

	// matching uses the use case only, not severity or causes
	fold(l, event.NewRemove(msg("B", model.SeverityFatal)))
	assert.Equal(t, []string{"A", "C"}, ids(l.Snapshot()))
}

func TestList_RemoveAll(t *testing.T) {
	l := NewList(model.NewSurfaceID(), "")
	assert.False(t, l.Apply(event.NewRemoveAll()))

	fold(l,
		event.NewAdd(msg("A", model.SeverityInfo), causes("c1"), model.Target{}),
		event.NewAdd(msg("B", model.SeverityWarn), nil, model.Target{}),
	)
	fold(l, event.NewRemoveAll())
	assert.Empty(t, l.Snapshot())

	// state is discarded: a re-add starts from scratch
	fold(l, event.NewAdd(msg("A", model.SeverityInfo), nil, model.Target{}))
	snap := l.Snapshot()
	require.Len(t, snap, 1)
	assert.Empty(t, snap[0].Causes)
}

func TestList_TargetFiltering(t *testing.T) {
	self := model.NewSurfaceID()
	mine := NewList(self, "myName")
	other := NewList(model.NewSurfaceID(), "other")

	byName := event.NewAdd(msg("M1", model.SeverityInfo), nil, model.TargetName("myName"))
	byID := event.NewAdd(msg("M2", model.SeverityInfo), nil, model.TargetSurface(self))
	broadcast := event.NewAdd(msg("M3", model.SeverityInfo), nil, model.Target{})

	fold(mine, byName, byID, broadcast)
	fold(other, byName, byID, broadcast)

	assert.Equal(t, []string{"M1", "M2", "M3"}, ids(mine.Snapshot()))
	assert.Equal(t, []string{"M3"}, ids(other.Snapshot()))
}

func TestList_RemoveBypassesTargetFilter(t *testing.T) {
	l := NewList(model.NewSurfaceID(), "other")
	fold(l, event.NewAdd(msg("A", model.SeverityInfo), nil, model.Target{}))

	// REMOVE events carry no target filtering, even when one is set
	rm := event.NewRemove(msg("A", model.SeverityInfo))
	rm.Target = model.TargetName("myName")
	assert.True(t, l.Accepts(rm))

	wipe := event.NewRemoveAll()
	wipe.Target = model.TargetName("myName")
	assert.True(t, l.Accepts(wipe))
}

func TestList_SnapshotIsDetached(t *testing.T) {
	l := NewList(model.NewSurfaceID(), "")
	fold(l, event.NewAdd(msg("A", model.SeverityInfo), causes("c1"), model.Target{}))

	snap := l.Snapshot()
	snap[0].Causes[0].Cause = "changed"
	snap[0].Message.UseCaseID = "Z"

	again := l.Snapshot()
	assert.Equal(t, "A", again[0].Message.UseCaseID)
	assert.Equal(t, []string{"c1"}, causeNames(again[0]))
}
