package history

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithMaxOpenConns caps the connection pool size.
func WithMaxOpenConns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithMaxIdleConns sets how many idle connections the pool keeps.
func WithMaxIdleConns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxIdleConns = n
		}
	}
}
