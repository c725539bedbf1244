package checkout

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/pingcap/errors"
	"github.com/studiowebux/checkoutload/internal/catalog"
)

// VUPlaceholder is replaced by the virtual user id in customer templates
const VUPlaceholder = "{vu}"

// SessionToken is the value of the session cookie set by the cart call
type SessionToken string

// CartItem is a cart line as returned by the cart service
type CartItem struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// CustomerInfo is the customer submitted with an order
type CustomerInfo struct {
	Name            string
	Email           string
	Phone           string
	DeliveryAddress string
}

// CustomerTemplate derives a CustomerInfo from a virtual user id
type CustomerTemplate struct {
	Name    string `yaml:"name" toml:"name" json:"name"`
	Email   string `yaml:"email" toml:"email" json:"email"`
	Phone   string `yaml:"phone" toml:"phone" json:"phone"`
	Address string `yaml:"address" toml:"address" json:"address"`
}

// DefaultCustomerTemplate returns the template used when none is configured
func DefaultCustomerTemplate() CustomerTemplate {
	return CustomerTemplate{
		Name:    "Load Test User",
		Email:   "loadtest{vu}@example.com",
		Phone:   "+1-555-0100",
		Address: "{vu} Test Street, Load City",
	}
}

// Validate checks that email and address are unique per virtual user
func (t CustomerTemplate) Validate() error {
	if t.Name == "" {
		return errors.New("customer name is required")
	}
	if !strings.Contains(t.Email, VUPlaceholder) {
		return errors.Errorf("customer email %q must contain %s", t.Email, VUPlaceholder)
	}
	if !strings.Contains(t.Address, VUPlaceholder) {
		return errors.Errorf("customer address %q must contain %s", t.Address, VUPlaceholder)
	}
	return nil
}

// For builds the customer for virtual user vu
func (t CustomerTemplate) For(vu int) CustomerInfo {
	id := strconv.Itoa(vu)
	return CustomerInfo{
		Name:            strings.ReplaceAll(t.Name, VUPlaceholder, id),
		Email:           strings.ReplaceAll(t.Email, VUPlaceholder, id),
		Phone:           strings.ReplaceAll(t.Phone, VUPlaceholder, id),
		DeliveryAddress: strings.ReplaceAll(t.Address, VUPlaceholder, id),
	}
}

// OrderResult identifies a placed order
type OrderResult struct {
	OrderNumber       string
	SourceProductCode catalog.ProductCode
}

// VirtualUser is the per-user state carried across iterations.
// It is owned by a single goroutine.
type VirtualUser struct {
	ID        int
	Iteration int
	Rand      *rand.Rand
}

// NewVirtualUser creates virtual user id with a private random source.
// A zero seed picks a time-based one.
func NewVirtualUser(id int, seed uint64) *VirtualUser {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &VirtualUser{
		ID:   id,
		Rand: rand.New(rand.NewPCG(seed, uint64(id))),
	}
}

// Outcome classifies how an iteration ended
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeCartFailed     Outcome = "cart_failed"
	OutcomeNoSession      Outcome = "no_session"
	OutcomeOrderFailed    Outcome = "order_failed"
	OutcomeTransportError Outcome = "transport_error"
)

// Outcomes lists every outcome in reporting order
var Outcomes = []Outcome{
	OutcomeSuccess,
	OutcomeCartFailed,
	OutcomeNoSession,
	OutcomeOrderFailed,
	OutcomeTransportError,
}

// CheckResult is a single evaluated check
type CheckResult struct {
	Name string
	OK   bool
}

// IterationResult describes one finished iteration
type IterationResult struct {
	VU          int
	Iteration   int
	Shape       string
	ProductCode catalog.ProductCode
	Outcome     Outcome
	OrderNumber string
	CartStatus  int
	OrderStatus int
	OrderCalled bool
	Checks      []CheckResult
	Duration    time.Duration
	Err         error
}

// Order returns the placed order, if any
func (r IterationResult) Order() (OrderResult, bool) {
	if r.Outcome != OutcomeSuccess || r.OrderNumber == "" {
		return OrderResult{}, false
	}
	return OrderResult{OrderNumber: r.OrderNumber, SourceProductCode: r.ProductCode}, true
}
