package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// refreshSkew is how long before expiry a cached token is considered
// stale.
const refreshSkew = 5 * time.Minute

// CachingSource hands out IAM tokens, exchanging lazily and refreshing
// shortly before expiry. Concurrent refreshes collapse into a single
// exchange. It implements compute.TokenSource.
type CachingSource struct {
	exchanger *Exchanger
	oauth     string
	skew      time.Duration

	mu    sync.RWMutex
	cred  Credential
	group singleflight.Group
}

// NewCachingSource creates a source backed by the exchanger and the
// given OAuth token.
func NewCachingSource(exchanger *Exchanger, oauthToken string) *CachingSource {
	return &CachingSource{
		exchanger: exchanger,
		oauth:     oauthToken,
		skew:      refreshSkew,
	}
}

// Token returns a valid IAM token, exchanging when the cache is empty
// or near expiry.
func (s *CachingSource) Token(ctx context.Context) (string, error) {
	// Fast path: cached token still fresh.
	s.mu.RLock()
	cred := s.cred
	s.mu.RUnlock()
	if cred.IAMToken != "" && time.Until(cred.ExpiresAt) > s.skew {
		return cred.IAMToken, nil
	}

	result, err, _ := s.group.Do("iam", func() (interface{}, error) {
		// Double-check after acquiring singleflight.
		s.mu.RLock()
		cred := s.cred
		s.mu.RUnlock()
		if cred.IAMToken != "" && time.Until(cred.ExpiresAt) > s.skew {
			return cred.IAMToken, nil
		}

		fresh, err := s.exchanger.Exchange(ctx, s.oauth)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.cred = fresh
		s.mu.Unlock()
		return fresh.IAMToken, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Prime exchanges eagerly so startup fails fast when the OAuth token
// is rejected.
func (s *CachingSource) Prime(ctx context.Context) error {
	_, err := s.Token(ctx)
	return err
}
