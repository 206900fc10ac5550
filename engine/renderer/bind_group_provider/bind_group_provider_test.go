package bind_group_provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Debaug/particle-dance/engine/renderer/buffer"
)

func TestResolveAppliesDynamicOffsets(t *testing.T) {
	transforms := buffer.NewHost("transforms", 160, buffer.UsageStorage)
	points := buffer.NewHost("points", 1024, buffer.UsageStorage)

	p := NewBindGroupProvider("view",
		WithBinding(Binding{Binding: 1, Buffer: points, Size: 256, Dynamic: true}),
		WithBinding(Binding{Binding: 0, Buffer: transforms}),
	)

	require.Len(t, p.Bindings(), 2)
	assert.Equal(t, 0, p.Bindings()[0].Binding)
	assert.Equal(t, 1, p.DynamicCount())

	regions, err := p.Resolve([]uint32{512})
	require.NoError(t, err)
	assert.Equal(t, Region{Buffer: transforms, Offset: 0, Size: 160}, regions[0])
	assert.Equal(t, Region{Buffer: points, Offset: 512, Size: 256}, regions[1])
}

func TestResolveRejectsOutOfRange(t *testing.T) {
	points := buffer.NewHost("points", 1024, buffer.UsageStorage)
	p := NewBindGroupProvider("view", WithBindings(
		Binding{Binding: 0, Buffer: points, Size: 256, Dynamic: true},
	))

	_, err := p.Resolve([]uint32{1024})
	assert.ErrorIs(t, err, buffer.ErrOutOfRange)

	_, err = p.Resolve(nil)
	assert.Error(t, err)
}

func TestGroupOption(t *testing.T) {
	assert.Equal(t, uint32(0), NewBindGroupProvider("a").Group())
	assert.Equal(t, uint32(2), NewBindGroupProvider("b", WithGroup(2)).Group())
}
