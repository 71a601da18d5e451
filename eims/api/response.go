package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Response is the common envelope of every registry answer.
type Response struct {
	StatusCode Code            `json:"statusCode"`
	Message    string          `json:"message"`
	Body       json.RawMessage `json:"body"`
}

// DecodeResponse parses a registry answer. Bodies that are not JSON yield an
// empty Response and the raw bytes are kept by the caller for audit.
func DecodeResponse(raw []byte) (*Response, error) {
	var r Response
	if len(raw) == 0 {
		return &r, nil
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return &r, errors.Wrap(err, "decode registry response")
	}
	return &r, nil
}

// DecodeBody unmarshals the body part into v. An empty or null body leaves v
// untouched.
func (r *Response) DecodeBody(v any) error {
	if len(r.Body) == 0 || string(r.Body) == "null" {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrap(err, "decode registry response body")
	}
	return nil
}

// Accepted checks the business status code of the answer.
func (r *Response) Accepted(httpStatus int, codes ...int) bool {
	if httpStatus < 200 || httpStatus > 299 {
		return false
	}
	if len(codes) == 0 {
		codes = []int{200}
	}
	for _, c := range codes {
		if int(r.StatusCode) == c {
			return true
		}
	}
	return false
}

func (r *Response) Reject(httpStatus int, raw []byte) *RejectionError {
	msg := r.Message
	if msg == "" {
		msg = "no message"
	}
	return &RejectionError{
		HTTPStatus: httpStatus,
		StatusCode: int(r.StatusCode),
		Message:    msg,
		Body:       raw,
	}
}

const ackDateLayout = "2006-01-02T15:04:05"

// ParseAckDate accepts the registry timestamp with or without a zone suffix,
// a bracketed zone id and fractional seconds, which are all dropped.
func ParseAckDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if i := strings.IndexAny(s, "Z[."); i >= 0 {
		s = s[:i]
	}
	if len(s) > len(ackDateLayout) {
		// +03:00 style offsets
		if i := strings.IndexAny(s[len(ackDateLayout)-1:], "+-"); i >= 0 {
			s = s[:len(ackDateLayout)-1+i]
		}
	}
	t, err := time.Parse(ackDateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
