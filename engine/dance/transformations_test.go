package dance

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGenerator(t *testing.T, seed uint32) *TransformationGenerator {
	t.Helper()
	g, err := NewTransformationGenerator(DefaultTransformationColors(), WithSeed(seed))
	require.NoError(t, err)
	return g
}

func TestGeneratorRejectsNoColors(t *testing.T) {
	_, err := NewTransformationGenerator(nil)
	assert.ErrorIs(t, err, ErrNoTransformations)
}

func TestGeneratorIsDeterministic(t *testing.T) {
	a, b := newGenerator(t, 42), newGenerator(t, 42)
	for _, tm := range []float32{0, 0.25, 3.5, -7.75, 1000.125} {
		assert.Equal(t, a.Generate(tm), b.Generate(tm))
		assert.Equal(t, a.Generate(tm), a.Generate(tm))
	}
	assert.NotEqual(t, a.Generate(0.5), newGenerator(t, 43).Generate(0.5))
}

func TestGeneratorPreservesColorOrder(t *testing.T) {
	colors := DefaultTransformationColors()
	g := newGenerator(t, 7)
	assert.Equal(t, len(colors), g.Len())
	for i, tr := range g.Generate(2.3) {
		assert.Equal(t, colors[i], tr.Color)
	}
}

func TestGeneratorNormalizesScales(t *testing.T) {
	g := newGenerator(t, 1234)
	for _, tm := range []float32{0, 0.1, 0.5, 1, 2.75, -3.3, 50.5} {
		var sumSq float32
		for _, tr := range g.Generate(tm) {
			sumSq += tr.Scale * tr.Scale
		}
		total := g.TotalScale(tm)
		assert.InDelta(t, total, sumSq, 1e-4, "t=%v", tm)
	}
}

func TestTotalScaleRange(t *testing.T) {
	g := newGenerator(t, 99)
	for i := range 40 {
		total := g.TotalScale(float32(i))
		assert.InDelta(t, 0.9, total, 0.05+1e-6)
	}
}

func TestGeneratorIsContinuous(t *testing.T) {
	g := newGenerator(t, 5)
	for _, tm := range []float32{0, 1, 2.5, -1} {
		a, b := g.Generate(tm-1e-4), g.Generate(tm+1e-4)
		for i := range a {
			assert.True(t, a[i].Center.ApproxEqualThreshold(b[i].Center, 1e-2), "t=%v", tm)
			assert.InDelta(t, a[i].Scale, b[i].Scale, 1e-2)
			assert.InDelta(t, a[i].Angle, b[i].Angle, 1e-1)
		}
	}
}

func TestGeneratorCentersAreCentered(t *testing.T) {
	g := newGenerator(t, 11)
	for i := range 20 {
		for _, tr := range g.Generate(float32(i)) {
			// Knot values are in [0, 1] shifted by -0.5.
			assert.GreaterOrEqual(t, tr.Center.X(), float32(-0.5))
			assert.LessOrEqual(t, tr.Center.X(), float32(0.5))
			assert.GreaterOrEqual(t, tr.Center.Y(), float32(-0.5))
			assert.LessOrEqual(t, tr.Center.Y(), float32(0.5))
		}
	}
}

func TestGenerateComputedMatchesGenerate(t *testing.T) {
	g := newGenerator(t, 3)
	plain := g.Generate(4.2)
	computed := g.GenerateComputed(4.2)
	require.Len(t, computed, len(plain))
	for i := range plain {
		assert.Equal(t, plain[i], computed[i].Transformation)
		assert.Equal(t, NewComputedTransformation(plain[i]).Matrix, computed[i].Matrix)
	}
}

func TestTimeScaleOption(t *testing.T) {
	g, err := NewTransformationGenerator([]mgl32.Vec4{{1, 1, 1, 1}})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeScale, g.TimeScale())

	g, err = NewTransformationGenerator([]mgl32.Vec4{{1, 1, 1, 1}}, WithTimeScale(0.5))
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), g.TimeScale())

	g, err = NewTransformationGenerator([]mgl32.Vec4{{1, 1, 1, 1}}, WithTimeScale(-1))
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeScale, g.TimeScale())
}

func TestSingleTransformationTakesWholeScale(t *testing.T) {
	g, err := NewTransformationGenerator([]mgl32.Vec4{{1, 0, 0, 1}}, WithSeed(8))
	require.NoError(t, err)
	for _, tm := range []float32{0, 0.5, 9.9} {
		tr := g.Generate(tm)
		require.Len(t, tr, 1)
		assert.InDelta(t, g.TotalScale(tm), tr[0].Scale*tr[0].Scale, 1e-4)
	}
}

func TestNormalizeScalesMatchesTotal(t *testing.T) {
	out := []Transformation{{Scale: 1}, {Scale: 2}, {Scale: 3}}
	normalizeScales(out, 1+4+9, 0.9, 0)

	var sumSq float32
	for _, tr := range out {
		sumSq += tr.Scale * tr.Scale
	}
	assert.InDelta(t, 0.9, sumSq, 1e-5)
	assert.InDelta(t, 2*out[0].Scale, out[1].Scale, 1e-6)
}

func TestNormalizeScalesSplitsEvenlyWhenAllZero(t *testing.T) {
	out := make([]Transformation, 4)
	normalizeScales(out, 0, 0.9, 3)

	var sumSq float32
	for _, tr := range out {
		assert.InDelta(t, 0.474341649, tr.Scale, 1e-6)
		sumSq += tr.Scale * tr.Scale
	}
	assert.InDelta(t, 0.9, sumSq, 1e-5)
}
