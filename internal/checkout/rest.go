package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pingcap/errors"
	"github.com/studiowebux/checkoutload/internal/catalog"
	"github.com/studiowebux/checkoutload/internal/extract"
)

const (
	restSessionCookie      = "BOOKSTORE_SESSION"
	restContentType        = "application/json"
	defaultOrderNumberExpr = "orderNumber"
	firstCartItemExpr      = "items[0]"
)

type addToCartRequest struct {
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
}

type customerPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type createOrderRequest struct {
	Customer        customerPayload `json:"customer"`
	DeliveryAddress string          `json:"deliveryAddress"`
	Item            CartItem        `json:"item"`
}

// RESTShape drives the JSON API: 201 responses, session in the
// BOOKSTORE_SESSION cookie, cart item echoed into the order.
type RESTShape struct {
	quantity        int
	cartItemExpr    string
	orderNumberExpr string
}

// NewRESTShape validates opts and builds a REST shape
func NewRESTShape(opts ShapeOptions) (*RESTShape, error) {
	s := &RESTShape{
		quantity:        opts.Quantity,
		cartItemExpr:    opts.CartItemExpr,
		orderNumberExpr: opts.OrderNumberExpr,
	}
	if s.quantity == 0 {
		s.quantity = 1
	}
	if s.quantity < 1 {
		return nil, errors.Errorf("quantity must be at least 1, got %d", s.quantity)
	}
	if s.orderNumberExpr == "" {
		s.orderNumberExpr = defaultOrderNumberExpr
	}
	for _, expr := range []string{s.cartItemExpr, s.orderNumberExpr} {
		if expr == "" {
			continue
		}
		if err := extract.Compile(expr); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *RESTShape) Name() string { return ShapeREST }

func (s *RESTShape) SessionCookie() string { return restSessionCookie }

func (s *RESTShape) CartRequest(ctx context.Context, baseURL string, code catalog.ProductCode) (*http.Request, error) {
	body, err := json.Marshal(addToCartRequest{Code: string(code), Quantity: s.quantity})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return newJSONRequest(ctx, endpoint(baseURL, "/api/cart/items"), body)
}

func (s *RESTShape) CartChecks() []Check {
	return []Check{{Name: "add to cart returns 201", Fn: statusIs(http.StatusCreated)}}
}

func (s *RESTShape) ParseCart(resp *Response, code catalog.ProductCode) (*CartItem, error) {
	var item CartItem
	if s.cartItemExpr != "" {
		if err := extract.Into(resp.Body, s.cartItemExpr, &item); err != nil {
			return nil, errors.Annotate(ErrCartItemMissing, err.Error())
		}
	} else {
		err := extract.Into(resp.Body, matchingItemExpr(code), &item)
		if errors.Cause(err) == extract.ErrNotFound {
			err = extract.Into(resp.Body, firstCartItemExpr, &item)
		}
		if err != nil {
			return nil, errors.Annotate(ErrCartItemMissing, err.Error())
		}
	}

	if item.Code == "" {
		return nil, errors.Annotate(ErrCartItemMissing, "item has no code")
	}
	if item.Quantity < 1 {
		return nil, errors.Annotatef(ErrCartItemMissing, "item %s has quantity %d", item.Code, item.Quantity)
	}
	return &item, nil
}

func (s *RESTShape) OrderRequest(ctx context.Context, baseURL string, session SessionToken, customer CustomerInfo, item *CartItem) (*http.Request, error) {
	if item == nil {
		return nil, ErrCartItemMissing
	}
	body, err := json.Marshal(createOrderRequest{
		Customer: customerPayload{
			Name:  customer.Name,
			Email: customer.Email,
			Phone: customer.Phone,
		},
		DeliveryAddress: customer.DeliveryAddress,
		Item:            *item,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	req, err := newJSONRequest(ctx, endpoint(baseURL, "/api/orders"), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cookie", restSessionCookie+"="+string(session))
	return req, nil
}

func (s *RESTShape) OrderChecks() []Check {
	return []Check{{Name: "order created successfully", Fn: statusIs(http.StatusCreated)}}
}

// OrderNumber prefers the body field and falls back to the Location header
func (s *RESTShape) OrderNumber(resp *Response) string {
	if n := orderNumberFromBody(resp.Body, s.orderNumberExpr); n != "" {
		return n
	}
	return lastPathSegment(resp.Location())
}

// matchingItemExpr compares against a JSON literal, which unlike a raw
// string literal can carry any code including a trailing backslash.
func matchingItemExpr(code catalog.ProductCode) string {
	literal, _ := json.Marshal(string(code))
	quoted := strings.ReplaceAll(string(literal), "`", "\\`")
	return fmt.Sprintf("items[?code==`%s`] | [0]", quoted)
}

func newJSONRequest(ctx context.Context, target string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Annotatef(err, "failed to create request to %s", target)
	}
	req.Header.Set("Content-Type", restContentType)
	req.Header.Set("Accept", restContentType)
	return req, nil
}
