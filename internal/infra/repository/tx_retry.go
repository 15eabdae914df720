package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockledger/internal/metrics"
	repo "stockledger/internal/repository"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// 競合時のやり直し設定
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// RetryingTxManager は ErrConflict のときだけ読み直し〜書き込みを丸ごとやり直す。
// 業務エラー（在庫不足など）はそのまま返す。
type RetryingTxManager struct {
	next   repo.TransactionManager
	policy RetryPolicy
}

func NewRetryingTxManager(next repo.TransactionManager, policy RetryPolicy) *RetryingTxManager {
	if policy.MaxAttempts == 0 {
		policy.MaxAttempts = 1
	}
	return &RetryingTxManager{next: next, policy: policy}
}

func (m *RetryingTxManager) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	b := backoff.NewExponentialBackOff()
	if m.policy.InitialInterval > 0 {
		b.InitialInterval = m.policy.InitialInterval
	}
	if m.policy.MaxInterval > 0 {
		b.MaxInterval = m.policy.MaxInterval
	}

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := m.next.WithinTx(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, repo.ErrConflict) {
			metrics.TxConflicts.Inc()
			zerolog.Ctx(ctx).Debug().Err(err).Int("attempt", attempts).Msg("tx conflict, retrying")
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(m.policy.MaxAttempts),
	)
	if err == nil {
		return nil
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	if errors.Is(err, repo.ErrConflict) {
		return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
	}
	return err
}
