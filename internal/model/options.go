package model

// Option adjusts a save or delete.
type Option func(*options)

type options struct {
	validate    bool
	callbacks   bool
	transaction bool
	cascade     bool
	fields      []string
}

func defaultOptions() options {
	return options{validate: true, callbacks: true, transaction: true, cascade: true}
}

func applyOptions(base options, opts []Option) options {
	for _, opt := range opts {
		opt(&base)
	}
	return base
}

// WithoutValidation skips validation.
func WithoutValidation() Option {
	return func(o *options) { o.validate = false }
}

// WithValidation forces validation, e.g. for SaveField.
func WithValidation() Option {
	return func(o *options) { o.validate = true }
}

// WithoutCallbacks skips callbacks and extensions.
func WithoutCallbacks() Option {
	return func(o *options) { o.callbacks = false }
}

// WithCallbacks forces callbacks, e.g. for DeleteAll.
func WithCallbacks() Option {
	return func(o *options) { o.callbacks = true }
}

// WithoutTransaction runs without opening a transaction.
func WithoutTransaction() Option {
	return func(o *options) { o.transaction = false }
}

// WithoutCascade leaves dependent records in place on delete.
func WithoutCascade() Option {
	return func(o *options) { o.cascade = false }
}

// WithFields whitelists the columns a save may write.
func WithFields(fields ...string) Option {
	return func(o *options) { o.fields = append([]string(nil), fields...) }
}
