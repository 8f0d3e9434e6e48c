package httpcachestore

import "log/slog"

// Option configures a Store at construction time, mirroring the teacher's
// functional-options style in options.go.
type Option func(*Store) error

// WithLogger installs a custom slog.Logger for this package (equivalent to
// calling the package-level SetLogger before New).
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) error {
		SetLogger(l)
		return nil
	}
}

// WithFreshnessPredicate installs the FreshnessPredicate the sweeper and
// Invalidate use to judge variants. Required before Clear or Invalidate is
// called; New does not supply a default so callers must pick one (e.g.
// freshness.RFC9111) explicitly, per spec §4.8's "external" framing.
func WithFreshnessPredicate(p FreshnessPredicate) Option {
	return func(s *Store) error {
		s.freshness = p
		return nil
	}
}

// WithResiliencePolicy wraps the entity and metadata stores with a retry
// policy for transient I/O failures. Disabled unless configured, matching
// the teacher's "resilience off by default" stance.
func WithResiliencePolicy(policy ResiliencePolicy) Option {
	return func(s *Store) error {
		s.entities = withResilience(s.entities, policy)
		s.metadata = withResilience(s.metadata, policy)
		return nil
	}
}

// WithEntityWrapper wraps the entity store with wrap, e.g. a
// wrapper/cryptostore, wrapper/compressstore, or wrapper/s3mirror
// decorator. Wrappers compose in call order: the last WithEntityWrapper
// applied is outermost.
func WithEntityWrapper(wrap func(EntityStore) EntityStore) Option {
	return func(s *Store) error {
		s.entities = wrap(s.entities)
		return nil
	}
}

// WithMetadataWrapper wraps the metadata store with wrap.
func WithMetadataWrapper(wrap func(MetadataStore) MetadataStore) Option {
	return func(s *Store) error {
		s.metadata = wrap(s.metadata)
		return nil
	}
}

// WithPruneTempFilesOnStart removes leftover diskv temp files from
// interrupted writes as soon as the Store is constructed (spec §5: "a
// cancelled write leaves at most a leftover temp file ... implementers
// SHOULD prune stale temps on start").
func WithPruneTempFilesOnStart() Option {
	return func(s *Store) error {
		s.pruneOnStart = true
		return nil
	}
}
