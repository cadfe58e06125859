package validation

import (
	"context"
	"fmt"
	"net"
	"net/mail"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/recordkit/internal/entity"
)

// Context is what a rule sees while checking one value.
type Context struct {
	Ctx    context.Context
	Field  string
	Entity *entity.Entity
	Args   []any
	IsNew  bool
}

// Func checks one value. An error aborts validation; a false result is an
// ordinary validation failure.
type Func func(value any, c Context) (bool, error)

// Registry maps rule names to functions.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]Func
}

// NewRegistry returns a registry holding the built-in rules.
func NewRegistry() *Registry {
	r := &Registry{rules: make(map[string]Func)}
	for name, fn := range builtins() {
		r.rules[name] = fn
	}
	return r
}

// Register adds or replaces a rule.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[name] = fn
}

// Lookup returns a rule by name.
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.rules[name]
	return fn, ok
}

func builtins() map[string]Func {
	return map[string]Func{
		"notBlank":     notBlank,
		"alphaNumeric": alphaNumeric,
		"boolean":      boolean,
		"date":         layouts("2006-01-02"),
		"datetime":     layouts("2006-01-02 15:04:05", time.RFC3339),
		"time":         layouts("15:04:05", "15:04"),
		"decimal":      decimal,
		"email":        email,
		"inList":       inList,
		"integer":      integer,
		"ip":           ip,
		"maxLength":    maxLength,
		"minLength":    minLength,
		"numeric":      numeric,
		"range":        inRange,
		"url":          isURL,
		"equalTo":      equalTo,
		"regex":        matches,
	}
}

// IsEmpty reports whether v counts as empty: nil, a blank string or an empty
// slice or map.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []byte:
		return len(t) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer:
		return rv.IsNil()
	}
	return false
}

func notBlank(v any, _ Context) (bool, error) {
	return !IsEmpty(v), nil
}

var alphaNumericRe = regexp.MustCompile(`^[\p{L}\p{N}]+$`)

func alphaNumeric(v any, _ Context) (bool, error) {
	return alphaNumericRe.MatchString(str(v)), nil
}

func boolean(v any, _ Context) (bool, error) {
	switch t := v.(type) {
	case bool:
		return true, nil
	case int, int64:
		n := toInt64(t)
		return n == 0 || n == 1, nil
	case string:
		return t == "0" || t == "1" || t == "true" || t == "false", nil
	}
	return false, nil
}

func layouts(formats ...string) Func {
	return func(v any, _ Context) (bool, error) {
		if _, ok := v.(time.Time); ok {
			return true, nil
		}
		s := str(v)
		for _, f := range formats {
			if _, err := time.Parse(f, s); err == nil {
				return true, nil
			}
		}
		return false, nil
	}
}

// decimal accepts a number with a fractional part. With one argument it
// requires exactly that many decimal places.
func decimal(v any, c Context) (bool, error) {
	s := str(v)
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return false, nil
	}
	i := strings.IndexByte(s, '.')
	if len(c.Args) == 0 {
		return i >= 0 && i < len(s)-1, nil
	}
	places, ok := argInt(c.Args, 0)
	if !ok {
		return false, &Error{Code: ErrCodeBadArgs, Rule: "decimal", Field: c.Field}
	}
	if i < 0 {
		return places == 0, nil
	}
	return len(s)-i-1 == places, nil
}

func email(v any, _ Context) (bool, error) {
	s := str(v)
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false, nil
	}
	return addr.Address == s && strings.Contains(s[strings.LastIndexByte(s, '@'):], "."), nil
}

func inList(v any, c Context) (bool, error) {
	s := str(v)
	for _, a := range c.Args {
		if list, ok := a.([]any); ok {
			for _, item := range list {
				if str(item) == s {
					return true, nil
				}
			}
			continue
		}
		if str(a) == s {
			return true, nil
		}
	}
	return false, nil
}

func integer(v any, _ Context) (bool, error) {
	switch t := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true, nil
	case float64:
		return t == float64(int64(t)), nil
	}
	_, err := strconv.ParseInt(strings.TrimSpace(str(v)), 10, 64)
	return err == nil, nil
}

func ip(v any, _ Context) (bool, error) {
	return net.ParseIP(str(v)) != nil, nil
}

func maxLength(v any, c Context) (bool, error) {
	n, ok := argInt(c.Args, 0)
	if !ok {
		return false, &Error{Code: ErrCodeBadArgs, Rule: "maxLength", Field: c.Field}
	}
	return utf8.RuneCountInString(str(v)) <= n, nil
}

func minLength(v any, c Context) (bool, error) {
	n, ok := argInt(c.Args, 0)
	if !ok {
		return false, &Error{Code: ErrCodeBadArgs, Rule: "minLength", Field: c.Field}
	}
	return utf8.RuneCountInString(str(v)) >= n, nil
}

func numeric(v any, _ Context) (bool, error) {
	_, ok := toFloat(v)
	return ok, nil
}

// inRange checks lower <= v <= upper.
func inRange(v any, c Context) (bool, error) {
	if len(c.Args) != 2 {
		return false, &Error{Code: ErrCodeBadArgs, Rule: "range", Field: c.Field}
	}
	lo, ok1 := toFloat(c.Args[0])
	hi, ok2 := toFloat(c.Args[1])
	if !ok1 || !ok2 {
		return false, &Error{Code: ErrCodeBadArgs, Rule: "range", Field: c.Field}
	}
	f, ok := toFloat(v)
	if !ok {
		return false, nil
	}
	return f >= lo && f <= hi, nil
}

func isURL(v any, _ Context) (bool, error) {
	u, err := url.ParseRequestURI(str(v))
	if err != nil {
		return false, nil
	}
	switch u.Scheme {
	case "http", "https", "ftp", "ftps":
	default:
		return false, nil
	}
	return u.Host != "", nil
}

func equalTo(v any, c Context) (bool, error) {
	if len(c.Args) != 1 {
		return false, &Error{Code: ErrCodeBadArgs, Rule: "equalTo", Field: c.Field}
	}
	return str(v) == str(c.Args[0]), nil
}

var (
	regexCacheMu sync.Mutex
	regexCache   = map[string]*regexp.Regexp{}
)

func matches(v any, c Context) (bool, error) {
	pattern, ok := argString(c.Args, 0)
	if !ok {
		return false, &Error{Code: ErrCodeBadArgs, Rule: "regex", Field: c.Field}
	}
	regexCacheMu.Lock()
	re, cached := regexCache[pattern]
	if !cached {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			regexCacheMu.Unlock()
			return false, &Error{Code: ErrCodeBadArgs, Rule: "regex", Field: c.Field}
		}
		regexCache[pattern] = re
	}
	regexCacheMu.Unlock()
	return re.MatchString(str(v)), nil
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	}
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int, int8, int16, int32, int64:
		return float64(toInt64(t)), true
	case uint, uint8, uint16, uint32, uint64:
		return float64(reflect.ValueOf(t).Uint()), true
	case bool, nil:
		return 0, false
	}
	s := strings.TrimSpace(str(v))
	if s == "" || strings.IndexFunc(s, unicode.IsLetter) >= 0 && !strings.ContainsAny(s, "eE") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func toInt64(v any) int64 {
	return reflect.ValueOf(v).Int()
}

func argInt(args []any, i int) (int, bool) {
	if i >= len(args) {
		return 0, false
	}
	f, ok := toFloat(args[i])
	if !ok {
		return 0, false
	}
	return int(f), true
}

func argString(args []any, i int) (string, bool) {
	if i >= len(args) {
		return "", false
	}
	s, ok := args[i].(string)
	return s, ok
}
