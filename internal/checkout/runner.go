package checkout

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pingcap/errors"
	"github.com/studiowebux/checkoutload/internal/catalog"
	"go.uber.org/zap"
)

const (
	// DefaultThinkTime is the pause after every iteration
	DefaultThinkTime = 1 * time.Second
	// DefaultRequestTimeout bounds a single request when no client is given
	DefaultRequestTimeout = 10 * time.Second
)

// RunnerOptions configures a Runner
type RunnerOptions struct {
	BaseURL  string
	Catalog  *catalog.Catalog
	Shape    Shape
	Customer CustomerTemplate
	// Client is copied; redirects and cookie jars are always disabled on the copy
	Client   *http.Client
	Reporter Reporter
	Logger   *zap.Logger
	// ThinkTime < 0 disables the pause, 0 selects DefaultThinkTime
	ThinkTime time.Duration
	// LogIterations emits the per-order info line
	LogIterations bool
}

// Runner executes checkout iterations. It holds no per-iteration state and
// is shared by all virtual users.
type Runner struct {
	baseURL       string
	catalog       *catalog.Catalog
	shape         Shape
	customer      CustomerTemplate
	client        *http.Client
	reporter      Reporter
	logger        *zap.Logger
	thinkTime     time.Duration
	logIterations bool
}

// NewRunner validates opts and builds a Runner
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if opts.Catalog == nil || opts.Catalog.Len() == 0 {
		return nil, catalog.ErrEmptyCatalog
	}
	if opts.Shape == nil {
		return nil, errors.New("protocol shape is required")
	}
	if err := opts.Customer.Validate(); err != nil {
		return nil, err
	}

	var client http.Client
	if opts.Client != nil {
		client = *opts.Client
	} else {
		client.Timeout = DefaultRequestTimeout
	}
	client.Jar = nil
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	r := &Runner{
		baseURL:       opts.BaseURL,
		catalog:       opts.Catalog,
		shape:         opts.Shape,
		customer:      opts.Customer,
		client:        &client,
		reporter:      opts.Reporter,
		logger:        opts.Logger,
		thinkTime:     opts.ThinkTime,
		logIterations: opts.LogIterations,
	}
	if r.reporter == nil {
		r.reporter = NopReporter{}
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.thinkTime == 0 {
		r.thinkTime = DefaultThinkTime
	}
	return r, nil
}

// Shape returns the configured protocol shape
func (r *Runner) Shape() Shape {
	return r.shape
}

// BaseURL returns the target base URL
func (r *Runner) BaseURL() string {
	return r.baseURL
}

// RunIteration performs one add-to-cart then place-order cycle for vu and
// pauses for the think time. It never fails: problems are logged, recorded
// as checks and reflected in the returned outcome.
//
// Requests are not cancelled by ctx; they are bounded by the client
// timeout. Cancelling ctx only cuts the think time short.
func (r *Runner) RunIteration(ctx context.Context, vu *VirtualUser) IterationResult {
	start := time.Now()
	res := r.checkout(context.WithoutCancel(ctx), vu)
	res.Duration = time.Since(start)

	r.reporter.Iteration(res)
	vu.Iteration++

	r.pause(ctx)
	return res
}

func (r *Runner) checkout(ctx context.Context, vu *VirtualUser) IterationResult {
	code := r.catalog.Pick(vu.Rand)
	res := IterationResult{
		VU:          vu.ID,
		Iteration:   vu.Iteration,
		Shape:       r.shape.Name(),
		ProductCode: code,
	}
	logger := r.logger.With(
		zap.Int("vu", vu.ID),
		zap.Int("iteration", vu.Iteration),
		zap.String("product", string(code)),
	)

	// Add to cart
	req, err := r.shape.CartRequest(ctx, r.baseURL, code)
	if err != nil {
		return r.transportFailure(logger, res, StepCart, r.shape.CartChecks(), err)
	}
	cartResp, err := r.send(req, StepCart)
	if err != nil {
		return r.transportFailure(logger, res, StepCart, r.shape.CartChecks(), err)
	}
	res.CartStatus = cartResp.StatusCode
	if !r.evaluate(&res, r.shape.CartChecks(), cartResp) {
		logger.Error("Add to cart failed, no session to place an order with",
			zap.Int("status", cartResp.StatusCode),
			zap.String("location", cartResp.Location()))
		res.Outcome = OutcomeCartFailed
		res.Err = errors.Annotatef(ErrUnexpectedStatus, "add to cart returned %d", cartResp.StatusCode)
		return res
	}

	// Capture session
	token, ok := cartResp.Cookie(r.shape.SessionCookie())
	if !ok {
		logger.Error("No session cookie found after adding to cart",
			zap.String("cookie", r.shape.SessionCookie()))
		res.Outcome = OutcomeNoSession
		res.Err = ErrNoSession
		return res
	}
	item, err := r.shape.ParseCart(cartResp, code)
	if err != nil {
		logger.Error("Cannot read cart item from add to cart response", zap.Error(err))
		res.Outcome = OutcomeCartFailed
		res.Err = err
		return res
	}

	// Place order
	customer := r.customer.For(vu.ID)
	req, err = r.shape.OrderRequest(ctx, r.baseURL, SessionToken(token), customer, item)
	if err != nil {
		return r.transportFailure(logger, res, StepOrder, r.shape.OrderChecks(), err)
	}
	res.OrderCalled = true
	orderResp, err := r.send(req, StepOrder)
	if err != nil {
		return r.transportFailure(logger, res, StepOrder, r.shape.OrderChecks(), err)
	}
	res.OrderStatus = orderResp.StatusCode
	if !r.evaluate(&res, r.shape.OrderChecks(), orderResp) {
		logger.Error("Order was not created",
			zap.Int("status", orderResp.StatusCode),
			zap.String("location", orderResp.Location()))
		res.Outcome = OutcomeOrderFailed
		res.Err = errors.Annotatef(ErrUnexpectedStatus, "place order returned %d", orderResp.StatusCode)
		return res
	}

	res.Outcome = OutcomeSuccess
	res.OrderNumber = r.shape.OrderNumber(orderResp)
	if res.OrderNumber == "" {
		logger.Warn("Order created but no order number found", zap.Int("status", orderResp.StatusCode))
	} else if r.logIterations {
		// Message text is kept whole so log scrapers can match it
		logger.Info(fmt.Sprintf("Order created: %s with product %s", res.OrderNumber, code),
			zap.String("order", res.OrderNumber))
	}
	return res
}

// send executes req and reads the whole body
func (r *Runner) send(req *http.Request, step Step) (*Response, error) {
	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		r.reporter.Request(step, 0, time.Since(start))
		return nil, errors.Annotatef(err, "%s request failed", step)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	r.reporter.Request(step, resp.StatusCode, elapsed)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to read %s response body", step)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Cookies:    resp.Cookies(),
		Body:       body,
		Duration:   elapsed,
	}, nil
}

// evaluate records every check and reports whether all passed
func (r *Runner) evaluate(res *IterationResult, checks []Check, resp *Response) bool {
	passed := true
	for _, c := range checks {
		ok := c.Fn(resp)
		r.record(res, c.Name, ok)
		passed = passed && ok
	}
	return passed
}

func (r *Runner) record(res *IterationResult, name string, ok bool) {
	r.reporter.Check(name, ok)
	res.Checks = append(res.Checks, CheckResult{Name: name, OK: ok})
}

func (r *Runner) transportFailure(logger *zap.Logger, res IterationResult, step Step, checks []Check, err error) IterationResult {
	for _, c := range checks {
		r.record(&res, c.Name, false)
	}
	logger.Error("Request failed", zap.String("step", string(step)), zap.Error(err))
	res.Outcome = OutcomeTransportError
	res.Err = err
	return res
}

func (r *Runner) pause(ctx context.Context) {
	if r.thinkTime <= 0 {
		return
	}
	t := time.NewTimer(r.thinkTime)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
