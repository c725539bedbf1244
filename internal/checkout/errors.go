package checkout

import "github.com/pingcap/errors"

var (
	// ErrNoSession means the cart response did not set the session cookie
	ErrNoSession = errors.New("no session cookie found after adding to cart")
	// ErrUnexpectedStatus means a response failed its status checks
	ErrUnexpectedStatus = errors.New("unexpected response status")
	// ErrCartItemMissing means the cart body did not contain a usable item
	ErrCartItemMissing = errors.New("cart response has no usable item")
	// ErrUnknownShape is returned for an unsupported protocol shape name
	ErrUnknownShape = errors.New("unknown protocol shape")
)
