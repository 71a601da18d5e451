package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAckDate(t *testing.T) {
	want := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	for _, in := range []string{
		"2025-03-14T09:26:53",
		"2025-03-14T09:26:53Z",
		"2025-03-14T09:26:53.123456",
		"2025-03-14T09:26:53.123Z[UTC]",
		"2025-03-14T09:26:53[Africa/Addis_Ababa]",
		"2025-03-14T09:26:53+03:00",
	} {
		got, ok := ParseAckDate(in)
		require.True(t, ok, in)
		assert.True(t, want.Equal(got), in)
	}

	_, ok := ParseAckDate("")
	assert.False(t, ok)
	_, ok = ParseAckDate("yesterday")
	assert.False(t, ok)
}

func TestDecodeResponse_CodeAsString(t *testing.T) {
	r, err := DecodeResponse([]byte(`{"statusCode":"200","message":"SUCCESS","body":{"irn":"abc"}}`))
	require.NoError(t, err)
	assert.True(t, r.Accepted(200))

	var body RegisterResult
	require.NoError(t, r.DecodeBody(&body))
	assert.Equal(t, "abc", body.Irn)
}

func TestResponse_Reject(t *testing.T) {
	r, err := DecodeResponse([]byte(`{"statusCode":409,"message":"duplicate document"}`))
	require.NoError(t, err)
	assert.False(t, r.Accepted(200))

	rej := r.Reject(200, []byte("raw"))
	assert.True(t, errors.Is(rej, ErrRegistryRejection))
	assert.Equal(t, 409, rej.StatusCode)
	assert.Contains(t, rej.Error(), "duplicate document")
}

func TestAmount_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Amount `json:"a"`
		N Number `json:"n"`
	}{
		A: NewAmount(decimal.RequireFromString("27.005")),
		N: NewNumber(decimal.RequireFromString("1.5")),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":27.01,"n":1.5}`, string(b))

	var a Amount
	require.NoError(t, json.Unmarshal([]byte(`"12.5"`), &a))
	assert.Equal(t, "12.50", a.StringFixed(2))
}

func TestValidationError_Kinds(t *testing.T) {
	err := NewClassificationError("buyer", "unknown classification")
	assert.True(t, errors.Is(err, ErrClassification))
	assert.True(t, errors.Is(err, ErrValidation))

	err = NewValidationError("seller.tin", "missing")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrClassification))
}

func TestReceiptResult_Reference(t *testing.T) {
	assert.Equal(t, "R1", (&ReceiptResult{ReceiptNumber: "R1", RRN: "R2"}).Reference())
	assert.Equal(t, "R2", (&ReceiptResult{RRN: "R2", ReceiptRef: "R3"}).Reference())
	assert.Equal(t, "R3", (&ReceiptResult{ReceiptRef: "R3"}).Reference())
}
