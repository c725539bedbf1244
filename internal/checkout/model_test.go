package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/checkoutload/internal/catalog"
	"github.com/studiowebux/checkoutload/internal/extract"
)

func TestCustomerTemplateFor(t *testing.T) {
	tpl := DefaultCustomerTemplate()
	seenEmail := make(map[string]int)
	seenAddress := make(map[string]int)

	for vu := 1; vu <= 100; vu++ {
		c := tpl.For(vu)
		require.Equal(t, c, tpl.For(vu), "derivation must be deterministic")

		if other, dup := seenEmail[c.Email]; dup {
			t.Fatalf("vu %d and %d share email %s", vu, other, c.Email)
		}
		if other, dup := seenAddress[c.DeliveryAddress]; dup {
			t.Fatalf("vu %d and %d share address %s", vu, other, c.DeliveryAddress)
		}
		seenEmail[c.Email] = vu
		seenAddress[c.DeliveryAddress] = vu
	}

	c := tpl.For(3)
	require.Equal(t, "Load Test User", c.Name)
	require.Equal(t, "loadtest3@example.com", c.Email)
	require.Equal(t, "3 Test Street, Load City", c.DeliveryAddress)
}

func TestCustomerTemplateValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CustomerTemplate)
		wantErr bool
	}{
		{"default", func(*CustomerTemplate) {}, false},
		{"no name", func(c *CustomerTemplate) { c.Name = "" }, true},
		{"shared email", func(c *CustomerTemplate) { c.Email = "load@example.com" }, true},
		{"shared address", func(c *CustomerTemplate) { c.Address = "1 Main St" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := DefaultCustomerTemplate()
			tt.mutate(&tpl)
			err := tpl.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLastPathSegment(t *testing.T) {
	tests := []struct {
		location string
		want     string
	}{
		{"/orders/ORD-1", "ORD-1"},
		{"http://localhost:8080/orders/ORD-2", "ORD-2"},
		{"/orders/ORD-3/", ""},
		{"/orders/", ""},
		{"ORD-5", "ORD-5"},
		{"/orders/ORD-4?x=1", "ORD-4"},
		{"", ""},
		{"/", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, lastPathSegment(tt.location), tt.location)
	}
}

func TestMatchingItemExpr(t *testing.T) {
	for _, code := range []string{"P100", "it's", `P\`, "a`b", `x\` + "`"} {
		body, err := json.Marshal(map[string]interface{}{
			"items": []map[string]interface{}{
				{"code": "decoy", "quantity": 1},
				{"code": code, "quantity": 2},
			},
		})
		require.NoError(t, err)

		var item CartItem
		require.NoError(t, extract.Into(body, matchingItemExpr(catalog.ProductCode(code)), &item), code)
		require.Equal(t, code, item.Code, code)
		require.Equal(t, 2, item.Quantity, code)
	}
}

func TestShapeFor(t *testing.T) {
	s, err := ShapeFor("form", ShapeOptions{})
	require.NoError(t, err)
	require.Equal(t, "SESSION", s.SessionCookie())

	s, err = ShapeFor(" REST ", ShapeOptions{})
	require.NoError(t, err)
	require.Equal(t, "BOOKSTORE_SESSION", s.SessionCookie())

	_, err = ShapeFor("grpc", ShapeOptions{})
	require.Equal(t, ErrUnknownShape, errors.Cause(err))

	_, err = ShapeFor("rest", ShapeOptions{Quantity: -1})
	require.Error(t, err)

	_, err = ShapeFor("rest", ShapeOptions{OrderNumberExpr: "a[?"})
	require.Error(t, err)
}

func TestFormRequests(t *testing.T) {
	ctx := context.Background()
	s := FormShape{}

	req, err := s.CartRequest(ctx, "http://shop/", "P 1")
	require.NoError(t, err)
	require.Equal(t, http.MethodPost, req.Method)
	require.Equal(t, "http://shop/buy?code=P+1", req.URL.String())
	require.Equal(t, formContentType, req.Header.Get("Content-Type"))

	req, err = s.OrderRequest(ctx, "http://shop", "tok", DefaultCustomerTemplate().For(4), nil)
	require.NoError(t, err)
	require.Equal(t, "SESSION=tok", req.Header.Get("Cookie"))
	require.NoError(t, req.ParseForm())
	require.Equal(t, "loadtest4@example.com", req.PostForm.Get("customer.email"))
	require.Equal(t, "4 Test Street, Load City", req.PostForm.Get("deliveryAddress"))
	require.Equal(t, "Load Test User", req.PostForm.Get("customer.name"))
	require.Equal(t, "+1-555-0100", req.PostForm.Get("customer.phone"))
}

func TestRESTParseCart(t *testing.T) {
	s, err := NewRESTShape(ShapeOptions{})
	require.NoError(t, err)

	body := []byte(`{"items":[{"code":"P100","name":"A","price":1.5,"quantity":1},{"code":"P101","name":"B","price":2,"quantity":2}]}`)
	item, err := s.ParseCart(&Response{Body: body}, "P101")
	require.NoError(t, err)
	require.Equal(t, CartItem{Code: "P101", Name: "B", Price: 2, Quantity: 2}, *item)

	// code missing from the cart falls back to the first item
	item, err = s.ParseCart(&Response{Body: body}, "P999")
	require.NoError(t, err)
	require.Equal(t, "P100", item.Code)

	_, err = s.ParseCart(&Response{Body: []byte(`{"items":[]}`)}, "P100")
	require.Equal(t, ErrCartItemMissing, errors.Cause(err))

	_, err = s.ParseCart(&Response{Body: []byte(`not json`)}, "P100")
	require.Equal(t, ErrCartItemMissing, errors.Cause(err))

	_, err = s.OrderRequest(context.Background(), "http://shop", "tok", CustomerInfo{}, nil)
	require.Equal(t, ErrCartItemMissing, errors.Cause(err))
}
