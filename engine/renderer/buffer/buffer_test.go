package buffer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Debaug/particle-dance/common"
)

type hostAllocator struct {
	created []*Host
	fail    bool
}

func (a *hostAllocator) CreateBuffer(label string, size uint64, usage Usage) (Buffer, error) {
	if a.fail {
		return nil, errors.New("out of memory")
	}
	h := NewHost(label, size, usage)
	a.created = append(a.created, h)
	return h, nil
}

func (a *hostAllocator) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	if err := CheckWrite(buf, offset, uint64(len(data))); err != nil {
		return err
	}
	copy(buf.(*Host).Bytes()[offset:], data)
	return nil
}

type pair struct {
	A, B float32
}

func TestUsageHas(t *testing.T) {
	u := UsageStorage | UsageCopyDst
	assert.True(t, u.Has(UsageStorage))
	assert.True(t, u.Has(UsageStorage|UsageCopyDst))
	assert.False(t, u.Has(UsageVertex))
}

func TestTypedTracksSizes(t *testing.T) {
	alloc := &hostAllocator{}
	b, err := NewTyped[pair](alloc, "pairs", 10, UsageStorage)
	require.NoError(t, err)

	assert.Equal(t, 10, b.Len())
	assert.Equal(t, uint64(8), b.ElementSize())
	assert.Equal(t, uint64(80), b.Size())
	assert.Equal(t, uint64(24), b.ByteOffset(3))
	assert.Equal(t, uint64(80), b.Raw().Size())
	assert.Equal(t, "pairs", b.Raw().Label())
}

func TestTypedWithDataUploads(t *testing.T) {
	alloc := &hostAllocator{}
	data := []pair{{1, 2}, {3, 4}}
	b, err := NewTypedWithData(alloc, "pairs", data, UsageVertex)
	require.NoError(t, err)
	assert.True(t, b.Raw().Usage().Has(UsageVertex|UsageCopyDst))

	got := common.BytesToSlice[pair](alloc.created[0].Bytes())
	assert.Equal(t, data, got)
}

func TestTypedWriteAt(t *testing.T) {
	alloc := &hostAllocator{}
	b, err := NewTyped[uint32](alloc, "u32", 4, UsageStorage|UsageCopyDst)
	require.NoError(t, err)

	require.NoError(t, b.WriteAt(2, []uint32{7, 8}))
	assert.Equal(t, []uint32{0, 0, 7, 8}, common.BytesToSlice[uint32](alloc.created[0].Bytes()))

	assert.ErrorIs(t, b.WriteAt(3, []uint32{1, 2}), ErrOutOfRange)
	assert.ErrorIs(t, b.WriteAt(-1, []uint32{1}), ErrOutOfRange)
	assert.ErrorIs(t, b.Write([]uint32{1}), ErrOutOfRange)
}

func TestTypedPropagatesAllocationFailure(t *testing.T) {
	_, err := NewTyped[uint32](&hostAllocator{fail: true}, "u32", 4, UsageStorage)
	assert.ErrorContains(t, err, "out of memory")

	_, err = NewTyped[uint32](&hostAllocator{}, "u32", -1, UsageStorage)
	assert.Error(t, err)
}

func TestCheckWrite(t *testing.T) {
	h := NewHost("h", 16, UsageStorage)
	assert.NoError(t, CheckWrite(h, 0, 16))
	assert.NoError(t, CheckWrite(h, 16, 0))
	assert.ErrorIs(t, CheckWrite(h, 8, 9), ErrOutOfRange)
	assert.ErrorIs(t, CheckWrite(h, 17, 0), ErrOutOfRange)
}

func TestHostRelease(t *testing.T) {
	h := NewHost("h", 4, UsageStorage)
	assert.False(t, h.Released())
	h.Release()
	h.Release()
	assert.True(t, h.Released())
	assert.Equal(t, uint64(0), h.Size())
}
