// Package checkouttest provides an in-process bookstore that speaks both
// checkout shapes, for tests.
package checkouttest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Product is a catalog entry known to the fake store
type Product struct {
	Name  string
	Price float64
}

// Options controls fake store behaviour
type Options struct {
	// Products defaults to P100..P104
	Products map[string]Product
	// OmitSession stops the cart endpoints from setting a session cookie
	OmitSession bool
	// CartStatus and OrderStatus override the success status codes
	CartStatus  int
	OrderStatus int
	// OmitOrderNumber drops orderNumber from the REST order body
	OmitOrderNumber bool
	// OrderLocation sets a Location header on REST order responses
	OrderLocation bool
}

// Order is an order accepted by the fake store
type Order struct {
	Number          string
	Code            string
	Name            string
	Price           float64
	Quantity        int
	CustomerName    string
	Email           string
	Phone           string
	DeliveryAddress string
}

type cartLine struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Subtotal float64 `json:"subtotal"`
}

type cartBody struct {
	Items       []cartLine `json:"items"`
	TotalAmount float64    `json:"totalAmount"`
	ItemCount   int        `json:"itemCount"`
}

// Server is a running fake store
type Server struct {
	*httptest.Server

	opts       Options
	cartCalls  atomic.Int64
	orderCalls atomic.Int64
	nextOrder  atomic.Int64

	mu       sync.Mutex
	sessions map[string]cartLine
	orders   []Order
}

// NewServer starts a fake store. Callers must Close it.
func NewServer(opts Options) *Server {
	if opts.Products == nil {
		opts.Products = map[string]Product{
			"P100": {Name: "The Go Programming Language", Price: 34.99},
			"P101": {Name: "Concurrency in Go", Price: 29.99},
			"P102": {Name: "Learning Go", Price: 39.99},
			"P103": {Name: "Go in Action", Price: 24.99},
			"P104": {Name: "100 Go Mistakes", Price: 44.99},
		}
	}
	s := &Server{
		opts:     opts,
		sessions: make(map[string]cartLine),
	}

	r := chi.NewRouter()
	r.Post("/buy", s.formBuy)
	r.Post("/orders", s.formOrder)
	r.Route("/api", func(r chi.Router) {
		r.Post("/cart/items", s.restAddItem)
		r.Post("/orders", s.restOrder)
	})

	s.Server = httptest.NewServer(r)
	return s
}

// CartCalls returns the number of add-to-cart requests received
func (s *Server) CartCalls() int { return int(s.cartCalls.Load()) }

// OrderCalls returns the number of place-order requests received
func (s *Server) OrderCalls() int { return int(s.orderCalls.Load()) }

// Orders returns a copy of the accepted orders
func (s *Server) Orders() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Order, len(s.orders))
	copy(out, s.orders)
	return out
}

func (s *Server) startSession(w http.ResponseWriter, cookie string, line cartLine) {
	if s.opts.OmitSession {
		return
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = line
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: cookie, Value: id, Path: "/", HttpOnly: true})
}

func (s *Server) lookupSession(r *http.Request, cookie string) (cartLine, bool) {
	c, err := r.Cookie(cookie)
	if err != nil {
		return cartLine{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	line, ok := s.sessions[c.Value]
	return line, ok
}

func (s *Server) accept(o Order) string {
	o.Number = fmt.Sprintf("ORD-%d", s.nextOrder.Add(1))
	s.mu.Lock()
	s.orders = append(s.orders, o)
	s.mu.Unlock()
	return o.Number
}

func (s *Server) line(code string, quantity int) (cartLine, bool) {
	p, ok := s.opts.Products[code]
	if !ok {
		return cartLine{}, false
	}
	return cartLine{
		Code:     code,
		Name:     p.Name,
		Price:    p.Price,
		Quantity: quantity,
		Subtotal: p.Price * float64(quantity),
	}, true
}

func status(override, def int) int {
	if override != 0 {
		return override
	}
	return def
}

func (s *Server) formBuy(w http.ResponseWriter, r *http.Request) {
	s.cartCalls.Add(1)
	line, ok := s.line(r.URL.Query().Get("code"), 1)
	if !ok {
		http.Redirect(w, r, "/products", http.StatusFound)
		return
	}
	s.startSession(w, "SESSION", line)
	w.Header().Set("Location", "/cart")
	w.WriteHeader(status(s.opts.CartStatus, http.StatusFound))
}

func (s *Server) formOrder(w http.ResponseWriter, r *http.Request) {
	s.orderCalls.Add(1)
	line, ok := s.lookupSession(r, "SESSION")
	if !ok || r.ParseForm() != nil {
		w.Header().Set("Location", "/cart")
		w.WriteHeader(http.StatusFound)
		return
	}
	number := s.accept(Order{
		Code:            line.Code,
		Name:            line.Name,
		Price:           line.Price,
		Quantity:        line.Quantity,
		CustomerName:    r.PostForm.Get("customer.name"),
		Email:           r.PostForm.Get("customer.email"),
		Phone:           r.PostForm.Get("customer.phone"),
		DeliveryAddress: r.PostForm.Get("deliveryAddress"),
	})
	w.Header().Set("Location", "/orders/"+number)
	w.WriteHeader(status(s.opts.OrderStatus, http.StatusFound))
}

func (s *Server) restAddItem(w http.ResponseWriter, r *http.Request) {
	s.cartCalls.Add(1)
	var req struct {
		Code     string `json:"code"`
		Quantity int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity < 1 {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	line, ok := s.line(req.Code, req.Quantity)
	if !ok {
		http.Error(w, "product not found", http.StatusNotFound)
		return
	}
	s.startSession(w, "BOOKSTORE_SESSION", line)
	writeJSON(w, status(s.opts.CartStatus, http.StatusCreated), cartBody{
		Items:       []cartLine{line},
		TotalAmount: line.Subtotal,
		ItemCount:   1,
	})
}

func (s *Server) restOrder(w http.ResponseWriter, r *http.Request) {
	s.orderCalls.Add(1)
	line, ok := s.lookupSession(r, "BOOKSTORE_SESSION")
	if !ok {
		http.Error(w, "no cart", http.StatusBadRequest)
		return
	}
	var req struct {
		Customer struct {
			Name  string `json:"name"`
			Email string `json:"email"`
			Phone string `json:"phone"`
		} `json:"customer"`
		DeliveryAddress string `json:"deliveryAddress"`
		Item            struct {
			Code     string  `json:"code"`
			Name     string  `json:"name"`
			Price    float64 `json:"price"`
			Quantity int     `json:"quantity"`
		} `json:"item"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Item.Code != line.Code || req.Item.Price != line.Price || req.Item.Quantity != line.Quantity {
		http.Error(w, "item does not match cart", http.StatusBadRequest)
		return
	}

	number := s.accept(Order{
		Code:            req.Item.Code,
		Name:            req.Item.Name,
		Price:           req.Item.Price,
		Quantity:        req.Item.Quantity,
		CustomerName:    req.Customer.Name,
		Email:           req.Customer.Email,
		Phone:           req.Customer.Phone,
		DeliveryAddress: req.DeliveryAddress,
	})
	if s.opts.OrderLocation {
		w.Header().Set("Location", "/api/orders/"+number)
	}
	code := status(s.opts.OrderStatus, http.StatusCreated)
	if s.opts.OmitOrderNumber {
		w.WriteHeader(code)
		return
	}
	writeJSON(w, code, map[string]string{"orderNumber": number})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
