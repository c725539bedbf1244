package extract

import (
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
)

const cartBody = `{"items":[{"code":"P100","name":"Book","price":9.99,"quantity":1},{"code":"P101","name":"Other","price":5,"quantity":2}],"totalAmount":19.99,"itemCount":2}`

func TestString(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		expr    string
		want    string
		wantErr bool
	}{
		{"string field", `{"orderNumber":"ORD-1"}`, "orderNumber", "ORD-1", false},
		{"number field", cartBody, "totalAmount", "19.99", false},
		{"integer field", `{"orderNumber":12345678}`, "orderNumber", "12345678", false},
		{"large integer field", `{"orderNumber":9007199254740993}`, "orderNumber", "9007199254740993", false},
		{"filtered number", `{"orders":[{"total":5,"id":101},{"total":50,"id":102}]}`, "orders[?total > `10`] | [0].id", "102", false},
		{"bool field", `{"ok":true}`, "ok", "true", false},
		{"object field", `{"a":{"b":1}}`, "a", `{"b":1}`, false},
		{"missing field", `{"other":"x"}`, "orderNumber", "", true},
		{"invalid json", `<html>`, "orderNumber", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := String([]byte(tt.body), tt.expr)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMissingIsNotFound(t *testing.T) {
	_, err := String([]byte(`{}`), "orderNumber")
	require.Equal(t, ErrNotFound, errors.Cause(err))
}

func TestInto(t *testing.T) {
	var item struct {
		Code     string  `json:"code"`
		Name     string  `json:"name"`
		Price    float64 `json:"price"`
		Quantity int     `json:"quantity"`
	}

	err := Into([]byte(cartBody), "items[?code=='P101'] | [0]", &item)
	require.NoError(t, err)
	require.Equal(t, "P101", item.Code)
	require.Equal(t, 5.0, item.Price)
	require.Equal(t, 2, item.Quantity)

	err = Into([]byte(cartBody), "items[?code=='P999'] | [0]", &item)
	require.Equal(t, ErrNotFound, errors.Cause(err))
}

func TestCompile(t *testing.T) {
	require.NoError(t, Compile("items[0]"))
	require.Error(t, Compile("items[?"))
}
