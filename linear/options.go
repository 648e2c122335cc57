package linear

// Option configures LinearRegression and Ridge.
type Option func(*options)

type options struct {
	fitIntercept bool
	alpha        float64
}

func defaultOptions() options {
	return options{fitIntercept: true, alpha: DefaultAlpha}
}

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(o *options) {
		o.fitIntercept = fit
	}
}

// WithAlpha sets the L2 penalty strength. Only Ridge uses it.
func WithAlpha(alpha float64) Option {
	return func(o *options) {
		o.alpha = alpha
	}
}
