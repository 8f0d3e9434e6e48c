package httpcachestore

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// ResiliencePolicy configures transient-failure retry for the underlying
// BlobStore I/O, grounded on the teacher's resilience.go/ResilienceConfig.
// Disabled by default; opt in with WithResiliencePolicy.
type ResiliencePolicy = retrypolicy.RetryPolicy[[]byte]

// DefaultResiliencePolicy is a sensible starting point for flaky storage
// (a brief NFS hiccup, a momentarily-full disk): three retries with
// exponential backoff.
func DefaultResiliencePolicy() ResiliencePolicy {
	return retrypolicy.NewBuilder[[]byte]().
		WithMaxRetries(3).
		WithBackoff(100*time.Millisecond, 2*time.Second).
		Build()
}

// resilientBlobStore decorates a BlobStore's Save/Load with a retry policy.
// Delete and Path are left alone: deletion is already best-effort and Path
// never touches the filesystem.
type resilientBlobStore struct {
	BlobStore
	policy ResiliencePolicy
}

func withResilience(bs BlobStore, policy ResiliencePolicy) BlobStore {
	if policy == nil {
		return bs
	}
	return &resilientBlobStore{BlobStore: bs, policy: policy}
}

func (r *resilientBlobStore) Save(ctx context.Context, key string, data []byte) error {
	policies := []failsafe.Policy[[]byte]{r.policy}
	_, err := failsafe.With(policies...).Get(func() ([]byte, error) {
		return nil, r.BlobStore.Save(ctx, key, data)
	})
	return err
}

func (r *resilientBlobStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var ok bool
	policies := []failsafe.Policy[[]byte]{r.policy}
	data, err := failsafe.With(policies...).Get(func() ([]byte, error) {
		d, o, e := r.BlobStore.Load(ctx, key)
		ok = o
		return d, e
	})
	return data, ok, err
}
