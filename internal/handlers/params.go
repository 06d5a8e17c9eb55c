package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/labstack/echo/v4"

	"github.com/nichesite/directory/internal/entities"
)

const maxBodyBytes = 1 << 20

var (
	tagPattern        = regexp.MustCompile(`(?s)<[^<>]*>`)
	octetPattern      = regexp.MustCompile(`%[a-fA-F0-9]{2}`)
	whitespacePattern = regexp.MustCompile(`[\s\p{Zs}]+`)
)

// requestParams merges query, form and JSON body parameters. Body values
// override query values of the same name.
type requestParams map[string]interface{}

// readParams returns the query parameters even when the body cannot be read.
func readParams(c echo.Context) (requestParams, error) {
	params := requestParams{}
	for name, values := range c.QueryParams() {
		if len(values) > 0 {
			params[name] = values[0]
		}
	}

	req := c.Request()
	if req.Body == nil || req.ContentLength == 0 {
		return params, nil
	}

	contentType := req.Header.Get(echo.HeaderContentType)
	switch {
	case strings.HasPrefix(contentType, echo.MIMEApplicationJSON):
		body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
		if err != nil {
			return params, err
		}
		if len(bytes.TrimSpace(body)) == 0 {
			return params, nil
		}

		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		var payload map[string]interface{}
		if err := dec.Decode(&payload); err != nil {
			return params, err
		}
		for name, value := range payload {
			params[name] = value
		}

	case strings.HasPrefix(contentType, echo.MIMEApplicationForm),
		strings.HasPrefix(contentType, echo.MIMEMultipartForm):
		if _, err := c.FormParams(); err != nil {
			return params, err
		}
		for name, values := range req.PostForm {
			if len(values) > 0 {
				params[name] = values[0]
			}
		}
	}

	return params, nil
}

// Int coerces a parameter the way PHP intval does: the leading integer of a
// string, a truncated number, or 0.
func (p requestParams) Int(name string) int64 {
	return intval(p[name])
}

// Text returns a parameter as sanitized single-line text.
func (p requestParams) Text(name string) string {
	return sanitizeText(scalarString(p[name]))
}

func intval(v interface{}) int64 {
	switch val := v.(type) {
	case nil:
		return 0
	case bool:
		if val {
			return 1
		}
		return 0
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		f, err := val.Float64()
		if err != nil {
			return leadingInt(val.String())
		}
		return truncateFloat(f)
	case float64:
		return truncateFloat(val)
	case string:
		return leadingInt(val)
	default:
		return 0
	}
}

func truncateFloat(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	if f <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(f)
}

// leadingInt converts the longest numeric prefix of s. A prefix with a
// fraction or exponent is read as a float and truncated, so "2.5e2" is 250.
func leadingInt(s string) int64 {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	intStart := end
	end = skipDigits(s, end)
	intDigits := end - intStart

	isFloat := false
	if end < len(s) && s[end] == '.' {
		frac := skipDigits(s, end+1)
		if intDigits > 0 || frac > end+1 {
			isFloat = true
			end = frac
		}
	}
	if intDigits == 0 && !isFloat {
		return 0
	}

	if end < len(s) && (s[end] == 'e' || s[end] == 'E') {
		exp := end + 1
		if exp < len(s) && (s[exp] == '+' || s[exp] == '-') {
			exp++
		}
		if digits := skipDigits(s, exp); digits > exp {
			isFloat = true
			end = digits
		}
	}

	if isFloat {
		f, _ := strconv.ParseFloat(s[:end], 64)
		return truncateFloat(f)
	}

	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		if s[0] == '-' {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return n
}

func skipDigits(s string, i int) int {
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i
}

func scalarString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "1"
		}
		return ""
	default:
		return ""
	}
}

// sanitizeText strips markup, percent-encoded octets, control characters and
// redundant whitespace, then truncates to the external ID width.
func sanitizeText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = tagPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = octetPattern.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return entities.TruncateExternalID(s)
}
