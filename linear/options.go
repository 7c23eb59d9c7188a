package linear

// Option is a function that configures GDRegressor
type Option func(*GDRegressor)

// WithEpsilon sets the value added to every standard deviation before dividing
func WithEpsilon(eps float64) Option {
	return func(r *GDRegressor) {
		r.epsilon = eps
	}
}

// WithMaxIter sets the number of full-batch gradient descent iterations
func WithMaxIter(n int) Option {
	return func(r *GDRegressor) {
		r.maxIter = n
	}
}

// WithLearningRate sets the initial learning rate
func WithLearningRate(rate float64) Option {
	return func(r *GDRegressor) {
		r.learningRate = rate
	}
}

// WithDecay multiplies the learning rate by factor after every iteration
// whose index is a multiple of every (including iteration 0)
func WithDecay(every int, factor float64) Option {
	return func(r *GDRegressor) {
		r.decayEvery = every
		r.decayFactor = factor
	}
}

// WithFeatureNames names the input columns in exported weights
func WithFeatureNames(names ...string) Option {
	return func(r *GDRegressor) {
		r.featureNames = append([]string(nil), names...)
	}
}
