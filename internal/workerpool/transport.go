package workerpool

import (
	"context"

	"github.com/mikey/mail-risk-analyzer/internal/core"
)

// PooledTransport runs every call of the wrapped transport on a pool so that
// slow mailbox round trips cannot tie up request handlers
type PooledTransport struct {
	next core.MailTransport
	pool *Pool
}

// NewPooledTransport wraps next with pool
func NewPooledTransport(next core.MailTransport, pool *Pool) *PooledTransport {
	return &PooledTransport{next: next, pool: pool}
}

func (t *PooledTransport) FetchLatest(ctx context.Context, limit int) ([]*core.Message, error) {
	return Do(ctx, t.pool, func(ctx context.Context) ([]*core.Message, error) {
		return t.next.FetchLatest(ctx, limit)
	})
}

func (t *PooledTransport) FetchMessage(ctx context.Context, id string) (*core.Message, error) {
	return Do(ctx, t.pool, func(ctx context.Context) (*core.Message, error) {
		return t.next.FetchMessage(ctx, id)
	})
}

func (t *PooledTransport) MessageCount(ctx context.Context) (int, error) {
	return Do(ctx, t.pool, func(ctx context.Context) (int, error) {
		return t.next.MessageCount(ctx)
	})
}

func (t *PooledTransport) ModifySubject(ctx context.Context, id string, subject string) (bool, error) {
	return Do(ctx, t.pool, func(ctx context.Context) (bool, error) {
		return t.next.ModifySubject(ctx, id, subject)
	})
}

func (t *PooledTransport) Ping(ctx context.Context) error {
	_, err := Do(ctx, t.pool, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.next.Ping(ctx)
	})
	return err
}
