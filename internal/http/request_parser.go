// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for decoding and validating request data.

package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// maxBodyBytes caps request bodies; every payload here is a handful of fields.
const maxBodyBytes = 64 << 10

// errMalformedBody marks bodies that could not be decoded at all.
var errMalformedBody = errors.New("malformed request body")

// maxNumberExponent bounds the exponent a JSON number may carry before it is
// expanded to plain digits; anything wider is far outside the amount bound.
const maxNumberExponent = 20

// AmountField accepts a JSON number or a JSON string ("12.50", "12,50") and
// keeps its text so the handler can choose positive or ceiling rules.
// JSON numbers in exponent form (1e2) are expanded to plain digits; strings
// must be written out in plain notation.
type AmountField string

func (a *AmountField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = AmountField(s)
	default:
		s, err := plainNumber(data)
		if err != nil {
			return err
		}
		*a = AmountField(s)
	}
	return nil
}

// plainNumber returns the text of a JSON number, rewriting exponent form as
// plain decimal digits.
func plainNumber(data []byte) (string, error) {
	s := string(data)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("amount must be a number or a string, got %s", s)
	}
	if !strings.ContainsAny(s, "eE") {
		return s, nil
	}
	if exp := d.Exponent(); exp > maxNumberExponent || exp < -maxNumberExponent {
		return s, nil
	}
	return d.String(), nil
}

// Amount parses a strictly positive amount.
func (a AmountField) Amount() (core.Money, error) {
	return core.ParseAmount(string(a))
}

// Ceiling parses a non-negative amount.
func (a AmountField) Ceiling() (core.Money, error) {
	return core.ParseCeiling(string(a))
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
// Decoding problems come back wrapped in errMalformedBody.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("%w: body too large", errMalformedBody)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%w: empty body", errMalformedBody)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return nil
}

// parseOptionalTimestamp accepts the stored layout, RFC 3339, or a bare date.
// Empty input means "now" and yields nil.
func parseOptionalTimestamp(s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := core.ParseTimestamp(s, loc)
	if err != nil {
		return nil, core.InvalidInput("timestamp must look like YYYY-MM-DD HH:MM:SS")
	}
	return &t, nil
}

func parseOptionalDate(s string) (*core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return nil, core.InvalidInput("deadline must be YYYY-MM-DD")
	}
	return &d, nil
}

// queryInt reads a positive integer query parameter, falling back to def when absent.
func queryInt(q url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, core.InvalidInput(key + " must be a positive integer")
	}
	return n, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
