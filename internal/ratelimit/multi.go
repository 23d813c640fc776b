package ratelimit

import "context"

// CheckAll evaluates every applicable scope in order and ANDs the results.
// Scopes must be ordered most specific first; the first scope to reject
// determines the returned result (and therefore the retry hint surfaced to
// the client). When every scope allows, the result carries the smallest
// remaining budget seen so response headers reflect the tightest limit.
//
// The failing scope's name is returned for diagnostics; it is empty when the
// request is admitted.
func (l *Limiter) CheckAll(ctx context.Context, checks []ScopedCheck) (Result, string, error) {
	if len(checks) == 0 {
		return Result{Allowed: true}, "", nil
	}

	var tightest Result
	haveTightest := false

	for _, c := range checks {
		res, err := l.Check(ctx, c.Key, c.Params, c.Cost)
		if err != nil {
			return Result{}, c.Scope, err
		}
		if !res.Allowed {
			return res, c.Scope, nil
		}
		if !haveTightest || res.Remaining < tightest.Remaining {
			tightest = res
			haveTightest = true
		}
	}

	return tightest, "", nil
}
