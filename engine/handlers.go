package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/quantaflow/quantaflow/workflow"
)

// ActionHandler executes one step's work. Handlers receive the step
// parameters and the execution context and return the step's output.
// Handlers that block must honor ctx cancellation; the engine races
// them against the step timeout but cannot interrupt them.
type ActionHandler func(ctx context.Context, params map[string]interface{}, wctx *workflow.Context) (interface{}, error)

// newTracedHTTPClient builds the client used by the http_request
// handler, instrumented for distributed tracing.
func newTracedHTTPClient() *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   30 * time.Second,
	}
}

// registerDefaultHandlers installs the three built-in handlers:
// log, delay, and http_request.
func (e *Engine) registerDefaultHandlers() {
	e.RegisterActionHandler("log", func(ctx context.Context, params map[string]interface{}, wctx *workflow.Context) (interface{}, error) {
		message := ""
		if m, ok := params["message"].(string); ok {
			message = m
		}
		e.logger.Info("Workflow log step", map[string]interface{}{
			"message": message,
		})
		return message, nil
	})

	e.RegisterActionHandler("delay", func(ctx context.Context, params map[string]interface{}, wctx *workflow.Context) (interface{}, error) {
		duration := 1000 * time.Millisecond
		switch v := params["duration_ms"].(type) {
		case float64:
			duration = time.Duration(v) * time.Millisecond
		case int:
			duration = time.Duration(v) * time.Millisecond
		}

		timer := time.NewTimer(duration)
		defer timer.Stop()
		select {
		case <-timer.C:
			return map[string]interface{}{"delayed_ms": duration.Milliseconds()}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	e.RegisterActionHandler("http_request", func(ctx context.Context, params map[string]interface{}, wctx *workflow.Context) (interface{}, error) {
		url, ok := params["url"].(string)
		if !ok || url == "" {
			return nil, fmt.Errorf("http_request requires a url parameter")
		}

		method := http.MethodGet
		if m, ok := params["method"].(string); ok && m != "" {
			method = m
		}

		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}

		resp, err := e.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}

		return map[string]interface{}{
			"status": resp.StatusCode,
			"body":   string(body),
		}, nil
	})
}
