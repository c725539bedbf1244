package checkout

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pingcap/errors"
	"github.com/studiowebux/checkoutload/internal/catalog"
)

const (
	formSessionCookie = "SESSION"
	formContentType   = "application/x-www-form-urlencoded"
	formAccept        = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// FormShape drives the server-rendered storefront: form posts answered
// with redirects, session in the SESSION cookie.
type FormShape struct{}

func (FormShape) Name() string { return ShapeForm }

func (FormShape) SessionCookie() string { return formSessionCookie }

func (FormShape) CartRequest(ctx context.Context, baseURL string, code catalog.ProductCode) (*http.Request, error) {
	target := endpoint(baseURL, "/buy?code="+url.QueryEscape(string(code)))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return nil, errors.Annotate(err, "failed to create add to cart request")
	}
	req.Header.Set("Content-Type", formContentType)
	req.Header.Set("Accept", formAccept)
	return req, nil
}

func (FormShape) CartChecks() []Check {
	return []Check{
		{
			Name: "add to cart redirects to /cart",
			Fn: func(r *Response) bool {
				return r.StatusCode == http.StatusFound && strings.Contains(r.Location(), "/cart")
			},
		},
	}
}

func (FormShape) ParseCart(*Response, catalog.ProductCode) (*CartItem, error) {
	return nil, nil
}

func (FormShape) OrderRequest(ctx context.Context, baseURL string, session SessionToken, customer CustomerInfo, _ *CartItem) (*http.Request, error) {
	form := url.Values{}
	form.Set("customer.name", customer.Name)
	form.Set("customer.email", customer.Email)
	form.Set("customer.phone", customer.Phone)
	form.Set("deliveryAddress", customer.DeliveryAddress)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(baseURL, "/orders"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Annotate(err, "failed to create order request")
	}
	req.Header.Set("Content-Type", formContentType)
	req.Header.Set("Accept", formAccept)
	req.Header.Set("Cookie", formSessionCookie+"="+string(session))
	return req, nil
}

func (FormShape) OrderChecks() []Check {
	return []Check{
		{Name: "order created successfully", Fn: statusIs(http.StatusFound)},
		{
			Name: "redirects to order details",
			Fn: func(r *Response) bool {
				return strings.Contains(r.Location(), "/orders/")
			},
		},
	}
}

func (FormShape) OrderNumber(resp *Response) string {
	return lastPathSegment(resp.Location())
}
