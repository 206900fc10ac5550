package dance

// TransformationGeneratorOption configures a TransformationGenerator.
type TransformationGeneratorOption func(*TransformationGenerator)

// WithSeed makes the generator deterministic: equal seeds and colors produce equal animations.
//
// Parameters:
//   - seed: the seed every transformation seed is drawn from
//
// Returns:
//   - TransformationGeneratorOption: a function that applies the seed
func WithSeed(seed uint32) TransformationGeneratorOption {
	return func(g *TransformationGenerator) {
		g.seed = &seed
	}
}

// WithTimeScale sets how many spline knots the animation advances per second.
// Non-positive values are ignored.
//
// Parameters:
//   - knotsPerSecond: the animation speed
//
// Returns:
//   - TransformationGeneratorOption: a function that applies the speed
func WithTimeScale(knotsPerSecond float32) TransformationGeneratorOption {
	return func(g *TransformationGenerator) {
		if knotsPerSecond > 0 {
			g.timeScale = knotsPerSecond
		}
	}
}
