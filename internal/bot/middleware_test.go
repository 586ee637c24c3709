package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	logx "domwatch/pkg/logx"
)

func TestChainOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mw := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *Request) error {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}
	h := Chain(func(ctx context.Context, req *Request) error {
		order = append(order, "handler")
		return nil
	}, mw("outer"), mw("inner"))

	if err := h(context.Background(), &Request{}); err != nil {
		t.Fatalf("h: %v", err)
	}
	if strings.Join(order, ",") != "outer,inner,handler" {
		t.Fatalf("order = %v", order)
	}
}

func TestMWTimeout(t *testing.T) {
	t.Parallel()

	h := MWTimeout(20 * time.Millisecond)(func(ctx context.Context, req *Request) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	if err := h(context.Background(), &Request{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	// Zero disables the timeout.
	h = MWTimeout(0)(func(ctx context.Context, req *Request) error {
		if _, ok := ctx.Deadline(); ok {
			return errors.New("unexpected deadline")
		}
		return nil
	})
	if err := h(context.Background(), &Request{}); err != nil {
		t.Fatalf("h: %v", err)
	}
}

func TestMWPanicRecover(t *testing.T) {
	t.Parallel()

	h := MWPanicRecover(logx.Nop())(func(ctx context.Context, req *Request) error {
		panic("boom")
	})
	err := h(context.Background(), &Request{})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v, want panic error", err)
	}
}

func TestMWRequestLogPassesError(t *testing.T) {
	t.Parallel()

	want := errors.New("send failed")
	h := MWRequestLog(logx.Nop())(func(ctx context.Context, req *Request) error {
		return want
	})
	if err := h(context.Background(), &Request{}); !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}
