package viscull

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestAnnotationGetOrCreateEntry(t *testing.T) {
	var a Annotation
	view := uuid.New()

	require.Zero(t, a.Len())

	e := a.GetOrCreateEntry(view)
	require.Equal(t, ResultInvalid, e.Result)
	require.Equal(t, NoQuery, e.Handle)
	require.Same(t, e, a.GetOrCreateEntry(view))
	require.Equal(t, 1, a.Len())

	a.GetOrCreateEntry(uuid.New())
	require.Equal(t, 2, a.Len())
}

func TestAnnotationInvalidate(t *testing.T) {
	dev := newFakeDevice()
	var a Annotation

	handles, err := dev.AllocateQueries(2)
	require.NoError(t, err)

	v1, v2 := uuid.New(), uuid.New()
	e1 := a.GetOrCreateEntry(v1)
	e1.Handle = handles[0]
	e1.Result = ResultVisible
	e1.IssuedFrame = 3
	e1.NextCheckFrame = 13
	e1.touch(3)

	e2 := a.GetOrCreateEntry(v2)
	e2.Handle = handles[1]
	e2.Result = ResultUnknown

	require.True(t, a.Invalidate(dev))
	a.Each(func(_ ViewID, e *QueryEntry) {
		require.Equal(t, ResultInvalid, e.Result)
		require.Equal(t, NoQuery, e.Handle)
	})
	require.Empty(t, dev.live)
	require.Equal(t, uint32(3), e1.lastUsed)

	before := *e1
	require.False(t, a.Invalidate(dev), "invalidating twice changes nothing")
	require.Equal(t, before, *e1)
	require.Equal(t, 2, a.Len())
	require.Zero(t, dev.danglingUses)
}

func TestAnnotationRelease(t *testing.T) {
	dev := newFakeDevice()
	var a Annotation

	handles, err := dev.AllocateQueries(1)
	require.NoError(t, err)

	e := a.GetOrCreateEntry(uuid.New())
	e.Handle = handles[0]
	e.Result = ResultInvisible
	a.GetOrCreateEntry(uuid.New())

	a.Release(dev)
	require.Zero(t, a.Len())
	require.Empty(t, dev.live)

	a.Release(dev)
	require.Zero(t, dev.danglingUses)
}

func TestAnnotationExpire(t *testing.T) {
	dev := newFakeDevice()
	var a Annotation

	handles, err := dev.AllocateQueries(1)
	require.NoError(t, err)

	old, fresh := uuid.New(), uuid.New()

	e := a.GetOrCreateEntry(old)
	e.Handle = handles[0]
	e.Result = ResultVisible
	e.touch(10)

	a.GetOrCreateEntry(fresh).touch(95)

	a.Expire(100, 0, dev)
	require.Equal(t, 2, a.Len(), "expiry 0 keeps everything")

	a.Expire(100, 90, dev)
	require.Equal(t, 2, a.Len())

	a.Expire(101, 90, dev)
	require.Equal(t, 1, a.Len())
	_, ok := a.Entry(old)
	require.False(t, ok)
	_, ok = a.Entry(fresh)
	require.True(t, ok)
	require.Empty(t, dev.live)
}

func TestQueryResultString(t *testing.T) {
	require.Equal(t, "invalid", ResultInvalid.String())
	require.Equal(t, "unknown", ResultUnknown.String())
	require.Equal(t, "visible", ResultVisible.String())
	require.Equal(t, "invisible", ResultInvisible.String())
}
