package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jmespath/go-jmespath"
	"github.com/pingcap/errors"
)

// ErrNotFound is returned when an expression evaluates to null
var ErrNotFound = errors.New("expression matched nothing")

// Compile validates a JMESPath expression
func Compile(expr string) error {
	if _, err := jmespath.Compile(expr); err != nil {
		return errors.Annotatef(err, "invalid JMESPath expression %q", expr)
	}
	return nil
}

// Search evaluates expr against a JSON body and returns the raw result
func Search(body []byte, expr string) (interface{}, error) {
	return search(body, expr, false)
}

// search decodes numbers as json.Number when useNumber is set. JMESPath
// ordering comparisons only work on float64, so that mode is reserved for
// reading a scalar back in its literal form.
func search(body []byte, expr string, useNumber bool) (interface{}, error) {
	var data interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	if useNumber {
		dec.UseNumber()
	}
	if err := dec.Decode(&data); err != nil {
		return nil, errors.New("cannot extract value: response is not valid JSON")
	}

	result, err := jmespath.Search(expr, data)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to evaluate %s", expr)
	}
	if result == nil {
		return nil, ErrNotFound
	}
	return result, nil
}

// String evaluates expr and converts a scalar result to its string form.
// Numbers keep the digits they had in the body.
func String(body []byte, expr string) (string, error) {
	result, err := Search(body, expr)
	if err != nil {
		return "", err
	}

	switch v := result.(type) {
	case string:
		return v, nil
	case float64:
		if literal, err := search(body, expr, true); err == nil {
			if n, ok := literal.(json.Number); ok && sameNumber(n, v) {
				return n.String(), nil
			}
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return fmt.Sprintf("%t", v), nil
	default:
		// Complex values are returned as JSON
		b, err := json.Marshal(v)
		if err != nil {
			return "", errors.Annotate(err, "failed to convert extracted value to string")
		}
		return string(b), nil
	}
}

// sameNumber guards against expressions that select a different element
// once numbers stop comparing as float64
func sameNumber(n json.Number, v float64) bool {
	f, err := n.Float64()
	return err == nil && f == v
}

// Into evaluates expr and decodes the result into out
func Into(body []byte, expr string, out interface{}) error {
	result, err := Search(body, expr)
	if err != nil {
		return err
	}

	b, err := json.Marshal(result)
	if err != nil {
		return errors.Trace(err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return errors.Annotatef(err, "extracted value of %s has unexpected shape", expr)
	}
	return nil
}
