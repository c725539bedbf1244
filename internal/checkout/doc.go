/*
Package checkout drives a bookstore checkout flow: add a random product to
the cart, then place an order with the session captured from the cart call.

# Flow

Every iteration run by Runner.RunIteration is strictly sequential:

 1. Pick a product code uniformly from the catalog
 2. Add it to the cart
 3. Evaluate the cart checks, abort on failure
 4. Capture the session cookie (and the cart item for the REST shape), abort if missing
 5. Build the customer from the virtual user id
 6. Place the order, passing the session explicitly in a Cookie header
 7. Evaluate the order checks
 8. Derive the order number and log it
 9. Pause for the think time

No order request is ever sent without a session captured in the same
iteration. The HTTP client never follows redirects and has no cookie jar,
so redirect targets and cookies can be inspected directly.

# Shapes

Two protocol variants implement Shape:

	form  POST /buy?code=..      302 -> /cart, SESSION cookie
	      POST /orders (form)    302 -> /orders/{orderNumber}

	rest  POST /api/cart/items   201, BOOKSTORE_SESSION cookie, {items:[...]}
	      POST /api/orders       201, optional {orderNumber}, optional Location

The flow itself lives only in Runner; shapes build requests and interpret
responses.

# Reporting

Checks, request timings and iteration results go to a Reporter. Human
readable lines go to the zap logger:

	Order created: ORD-1 with product P100

Failures never escape an iteration. They are visible as failed checks, an
error or warning log line and the IterationResult outcome.
*/
package checkout
