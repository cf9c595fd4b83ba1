package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"subtrack/internal/core"
)

// maxBodyBytes bounds request bodies; subscription payloads are tiny.
const maxBodyBytes = 64 << 10

var errBadRequest = errors.New("bad request")

// RequestBodyParser reads a JSON or form-encoded body once and serves its
// fields as trimmed strings.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]interface{}
	formData url.Values
	parsed   bool
	err      error
}

func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse decodes the body as JSON when it looks like an object, otherwise as
// form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		p.jsonData = make(map[string]interface{})
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = fmt.Errorf("%w: malformed JSON: %v", errBadRequest, err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	if p.err != nil {
		p.err = fmt.Errorf("%w: malformed form body: %v", errBadRequest, p.err)
	}
	return p.err
}

// Has reports whether key was present in the body.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
}

// Get returns the first non-empty value among keys.
func (p *RequestBodyParser) Get(keys ...string) string {
	for _, key := range keys {
		var v string
		if p.jsonData != nil {
			if val, ok := p.jsonData[key]; ok {
				v = stringValue(val)
			}
		} else if p.formData != nil {
			v = p.formData.Get(key)
		}
		if v = sanitizeInput(v); v != "" {
			return v
		}
	}
	return ""
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput trims and drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// parseSubscription builds a subscription from the body. Omitted fields are
// taken from base, which is the zero value on create. A missing start date
// on create defaults to today.
func parseSubscription(p *RequestBodyParser, base core.Subscription, now time.Time) (core.Subscription, error) {
	sub := base

	if p.Has("name") {
		sub.Name = p.Get("name")
	}

	if p.Has("amount") {
		amount, err := core.ParseAmount(p.Get("amount"))
		if err != nil {
			return sub, err
		}
		sub.Amount = amount
	} else if base.ID == "" {
		return sub, fmt.Errorf("%w: amount is required", core.ErrInvalidAmount)
	}

	if raw := p.Get("billing_frequency", "billingFrequency", "frequency"); raw != "" {
		f, err := core.ParseBillingFrequency(raw)
		if err != nil {
			return sub, err
		}
		sub.Frequency = f
	}

	if raw := p.Get("start_date", "startDate"); raw != "" {
		d, err := core.ParseDate(raw)
		if err != nil {
			return sub, err
		}
		sub.StartDate = d
	} else if sub.StartDate.IsZero() {
		sub.StartDate = core.DateOf(now)
	}

	if p.Has("category") {
		c, err := core.ParseCategory(p.Get("category"))
		if err != nil {
			return sub, err
		}
		sub.Category = c
	}

	return sub, nil
}

// queryInt reads a non-negative integer query parameter, def when absent.
func queryInt(q url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, key)
	}
	return n, nil
}
