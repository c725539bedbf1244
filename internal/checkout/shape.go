package checkout

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pingcap/errors"
	"github.com/studiowebux/checkoutload/internal/catalog"
	"github.com/studiowebux/checkoutload/internal/extract"
)

// Supported shape names
const (
	ShapeForm = "form"
	ShapeREST = "rest"
)

// Step names a request within an iteration
type Step string

const (
	StepCart  Step = "add_to_cart"
	StepOrder Step = "place_order"
)

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Cookies    []*http.Cookie
	Body       []byte
	Duration   time.Duration
}

// Cookie returns the value of the named response cookie
func (r *Response) Cookie(name string) (string, bool) {
	for _, c := range r.Cookies {
		if c.Name == name && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}

// Location returns the Location header
func (r *Response) Location() string {
	return r.Header.Get("Location")
}

// Check is a named boolean assertion on a response
type Check struct {
	Name string
	Fn   func(*Response) bool
}

// Shape is a protocol variant of the checkout flow. The runner owns the
// flow; a shape only builds requests and interprets responses.
type Shape interface {
	Name() string
	SessionCookie() string
	CartRequest(ctx context.Context, baseURL string, code catalog.ProductCode) (*http.Request, error)
	CartChecks() []Check
	// ParseCart returns the cart item to echo into the order, or nil when
	// the shape does not carry one.
	ParseCart(resp *Response, code catalog.ProductCode) (*CartItem, error)
	OrderRequest(ctx context.Context, baseURL string, session SessionToken, customer CustomerInfo, item *CartItem) (*http.Request, error)
	OrderChecks() []Check
	// OrderNumber returns "" when no order number can be derived
	OrderNumber(resp *Response) string
}

// ShapeOptions tunes shape construction
type ShapeOptions struct {
	// Quantity added to the cart (REST shape)
	Quantity int
	// CartItemExpr is a JMESPath expression selecting the cart item.
	// Empty selects the item matching the requested code.
	CartItemExpr string
	// OrderNumberExpr is a JMESPath expression for the order number
	OrderNumberExpr string
}

// ShapeFor returns the shape registered under name
func ShapeFor(name string, opts ShapeOptions) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ShapeForm:
		return FormShape{}, nil
	case ShapeREST:
		s, err := NewRESTShape(opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.Annotatef(ErrUnknownShape, "%q (expected %s or %s)", name, ShapeForm, ShapeREST)
	}
}

func endpoint(baseURL, p string) string {
	return strings.TrimRight(baseURL, "/") + p
}

func statusIs(code int) func(*Response) bool {
	return func(r *Response) bool {
		return r.StatusCode == code
	}
}

// lastPathSegment returns the text after the final "/" of a Location path.
// A trailing slash yields "".
func lastPathSegment(location string) string {
	if location == "" {
		return ""
	}
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}
	return u.Path[strings.LastIndex(u.Path, "/")+1:]
}

// orderNumberFromBody is shared by shapes that may return a JSON body
func orderNumberFromBody(body []byte, expr string) string {
	if len(body) == 0 || expr == "" {
		return ""
	}
	n, err := extract.String(body, expr)
	if err != nil {
		return ""
	}
	return n
}
