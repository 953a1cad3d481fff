package router

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	logx "irbridge/pkg/logx"
)

// slowRequest is the duration above which a finished request is logged at
// info instead of debug.
const slowRequest = 750 * time.Millisecond

// wrap runs h with a deadline, panic recovery and a completion log line.
// A panic becomes the returned error; the worker survives it.
func wrap(h HandlerFunc, timeout time.Duration) HandlerFunc {
	return func(ctx context.Context, req *Request) (err error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				req.Logger.Error("handler panic",
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("%s: panic: %v", req.Command, r)
			}
			finished(req, time.Since(start), err)
		}()
		return h(ctx, req)
	}
}

func finished(req *Request, took time.Duration, err error) {
	fields := []logx.Field{
		logx.String("kind", string(req.Update.Kind)),
		logx.Duration("took", took),
	}
	switch {
	case err != nil:
		req.Logger.Warn("command failed", append(fields, logx.Err(err))...)
	case took >= slowRequest:
		req.Logger.Info("command done (slow)", fields...)
	default:
		req.Logger.Debug("command done", fields...)
	}
}
