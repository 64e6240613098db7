package tools

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Executor defaults.
const (
	DefaultCallTimeout = 45 * time.Second
	DefaultConcurrency = 4
)

// Executor validates and runs tool calls. It never returns an error and
// never panics: every failure becomes Result.Error.
type Executor struct {
	registry    *Registry
	opts        Options
	timeout     time.Duration
	concurrency int
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithCallTimeout bounds each call.
func WithCallTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithConcurrency bounds concurrent calls in ExecuteAll.
func WithConcurrency(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// NewExecutor creates an Executor over r. Tools disabled by opts are
// rejected as if unknown to the model.
func NewExecutor(r *Registry, opts Options, eopts ...ExecutorOption) *Executor {
	e := &Executor{
		registry:    r,
		opts:        opts,
		timeout:     DefaultCallTimeout,
		concurrency: DefaultConcurrency,
	}
	for _, o := range eopts {
		o(e)
	}
	return e
}

// Execute runs one call.
func (e *Executor) Execute(ctx context.Context, call Call) Result {
	start := time.Now()
	res := e.execute(ctx, call)
	res.CallID = call.ID
	res.Tool = call.Name
	res.DurationMS = time.Since(start).Milliseconds()

	fields := []zap.Field{
		zap.String("tool", string(call.Name)),
		zap.String("call_id", call.ID),
		zap.Int64("duration_ms", res.DurationMS),
	}
	if res.Failed() {
		zap.L().Warn("tools: call failed", append(fields, zap.String("error", res.Error))...)
	} else {
		zap.L().Debug("tools: call complete", append(fields, zap.Int("leads", len(res.Leads)))...)
	}
	return res
}

// ExecuteAll runs calls concurrently and returns results in call order.
func (e *Executor) ExecuteAll(ctx context.Context, calls []Call) []Result {
	out := make([]Result, len(calls))
	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)
	for i, c := range calls {
		g.Go(func() error {
			out[i] = e.Execute(ctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Executor) execute(ctx context.Context, call Call) Result {
	tool, ok := e.registry.Get(call.Name)
	if !ok {
		return Result{Error: fmt.Sprintf("unknown tool %q", call.Name)}
	}
	if !e.opts.Enabled(call.Name) {
		return Result{Error: fmt.Sprintf("tool %q is disabled for this request", call.Name)}
	}
	if err := Validate(tool.Spec().InputSchema, call.Input); err != nil {
		return Result{Error: err.Error()}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				zap.L().Error("tools: handler panic",
					zap.String("tool", string(call.Name)),
					zap.Any("panic", p),
					zap.ByteString("stack", debug.Stack()),
				)
				done <- outcome{err: fmt.Errorf("tool %q panicked: %v", call.Name, p)}
			}
		}()
		res, err := tool.Execute(callCtx, call.Input)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			o.res.Error = o.err.Error()
		}
		return o.res
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return Result{Error: fmt.Sprintf("tool %q cancelled: %v", call.Name, ctx.Err())}
		}
		return Result{Error: fmt.Sprintf("tool %q timed out after %s", call.Name, e.timeout)}
	}
}
