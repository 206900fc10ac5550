package dance

import (
	"errors"
	"fmt"
	"math"

	"github.com/Debaug/particle-dance/common"
	"github.com/Debaug/particle-dance/engine/animator"
	"github.com/Debaug/particle-dance/engine/random"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// ErrNoTransformations is returned when a generator is built without any transformation colors.
var ErrNoTransformations = errors.New("at least one transformation is required")

// MaxTransformations is the largest transformation count the selection hash can address.
const MaxTransformations = 1 << 16

// DefaultTimeScale is the default number of spline knots traversed per second.
const DefaultTimeScale float32 = 0.1

const (
	saltCenter uint32 = 1
	saltScale  uint32 = 2
	saltAngle  uint32 = 3
)

// DefaultTransformationColors returns five warm and cool pastels.
func DefaultTransformationColors() []mgl32.Vec4 {
	return []mgl32.Vec4{
		{0.9, 0.9, 0.6, 1},
		{0.6, 0.9, 0.9, 1},
		{0.9, 0.6, 0.9, 1},
		{0.9, 0.6, 0.4, 1},
		{0.4, 0.6, 0.9, 1},
	}
}

type generatorEntry struct {
	seed  uint32
	color mgl32.Vec4
}

// TransformationGenerator produces a continuously animated set of transformations.
// Generate is a pure function of the generator's seeds and the time it is given.
type TransformationGenerator struct {
	entries   []generatorEntry
	seed      *uint32
	timeScale float32
	total     animator.Track[animator.Scalar]
}

// NewTransformationGenerator creates a generator with one transformation per color, in order.
// Each transformation draws its own seed from an Rng that is time seeded unless WithSeed is given.
//
// Parameters:
//   - colors: one color per transformation
//   - opts: variadic list of TransformationGeneratorOption functions
//
// Returns:
//   - *TransformationGenerator: the new generator
//   - error: ErrNoTransformations if colors is empty
func NewTransformationGenerator(colors []mgl32.Vec4, opts ...TransformationGeneratorOption) (*TransformationGenerator, error) {
	if len(colors) == 0 {
		return nil, ErrNoTransformations
	}
	if len(colors) > MaxTransformations {
		return nil, fmt.Errorf("%d transformations requested, at most %d are supported", len(colors), MaxTransformations)
	}

	g := &TransformationGenerator{timeScale: DefaultTimeScale}
	for _, opt := range opts {
		opt(g)
	}

	rng := random.New()
	if g.seed != nil {
		rng = random.WithSeed(*g.seed)
	}
	combined := rng.Seed()

	g.entries = make([]generatorEntry, len(colors))
	for i, c := range colors {
		g.entries[i] = generatorEntry{seed: rng.Uint32(), color: c}
	}
	g.total = animator.NewTrack(func(i int32) animator.Scalar {
		r := random.WithSeed(uint32(i) ^ combined)
		return animator.Scalar(r.Float32()*0.1 + 0.85)
	}, 1)

	common.Logger().Debug("transformation generator created",
		zap.Int("transformations", len(g.entries)),
		zap.Uint32("seed", combined),
		zap.Float32("timeScale", g.timeScale),
	)
	return g, nil
}

// Len returns the number of transformations generated per call.
func (g *TransformationGenerator) Len() int {
	return len(g.entries)
}

// TimeScale returns the number of spline knots the animation advances per second.
func (g *TransformationGenerator) TimeScale() float32 {
	return g.timeScale
}

// TotalScale returns the target sum of squared scales at knot time t, in [0.85, 0.95].
func (g *TransformationGenerator) TotalScale(t float32) float32 {
	return g.total.At(t).Float32()
}

// Generate returns the transformations at knot time t, in construction order.
// The scales are normalized so that their squares sum to TotalScale(t).
//
// Parameters:
//   - t: the knot time; callers animating in seconds multiply by TimeScale first
//
// Returns:
//   - []Transformation: one transformation per color
//
// If every interpolated scale is zero, each transformation gets sqrt(total/n) instead.
func (g *TransformationGenerator) Generate(t float32) []Transformation {
	total := g.TotalScale(t)

	out := make([]Transformation, len(g.entries))
	var sumSq float32
	for i, e := range g.entries {
		seed := e.seed
		center := animator.Cubic(func(k int32) mgl32.Vec2 {
			r := random.WithSeed(seed)
			return r.Hash(uint32(k)).Hash(saltCenter).Vec2()
		}, t)
		scale := animator.Cubic(func(k int32) animator.Scalar {
			r := random.WithSeed(seed)
			return animator.Scalar(r.Hash(uint32(k)).Hash(saltScale).Float32())
		}, t).Float32()
		angle := animator.Cubic(func(k int32) animator.Scalar {
			r := random.WithSeed(seed)
			return animator.Scalar(r.Hash(uint32(k)).Hash(saltAngle).Float32() * 2 * math.Pi)
		}, t).Float32()

		out[i] = Transformation{
			Center: center.Sub(mgl32.Vec2{0.5, 0.5}),
			Scale:  scale,
			Angle:  angle,
			Color:  e.color,
		}
		sumSq += scale * scale
	}

	normalizeScales(out, sumSq, total, t)
	return out
}

// normalizeScales rescales out so the squared scales sum to total. When every scale vanished the
// total is split evenly instead.
func normalizeScales(out []Transformation, sumSq, total, t float32) {
	if len(out) == 0 {
		return
	}
	if sumSq > 0 {
		factor := float32(math.Sqrt(float64(total / sumSq)))
		for i := range out {
			out[i].Scale *= factor
		}
		return
	}

	equal := float32(math.Sqrt(float64(total / float32(len(out)))))
	common.Logger().Debug("all scales vanished, splitting total scale evenly",
		zap.Float32("t", t),
		zap.Float32("scale", equal),
	)
	for i := range out {
		out[i].Scale = equal
	}
}

// GenerateComputed returns Generate(t) with the matrix of every transformation.
func (g *TransformationGenerator) GenerateComputed(t float32) []ComputedTransformation {
	return ComputeAll(g.Generate(t))
}
