package filter

import (
	"strings"
)

// Predicate defines a function that returns true if the given item matches a condition.
type Predicate[T any] func(item T, filterValue string) bool

// Options holds configuration for filtering behavior.
type Options[T any] struct {
	matchers    map[string]Predicate[T]
	unsupported map[string]struct{}
	logFunc     func(key string, val string)
}

// Option configures filter Options.
type Option[T any] func(*Options[T]) error

// defaultOptions returns the default filter Options.
func defaultOptions[T any]() Options[T] {
	return Options[T]{
		matchers:    make(map[string]Predicate[T]),
		unsupported: make(map[string]struct{}),
		logFunc:     func(key, val string) {}, // no-op
	}
}

// NormalizeString can be used to normalize a string value for filtering/comparison.
// The value is made lowercase and has any leading and/or trailing whitespace removed.
func NormalizeString(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeSlice can be used to normalize all values of a slice, returning a new slice.
// The values are normalized with the same behavior as NormalizeString.
func NormalizeSlice(s []string) []string {
	s2 := make([]string, len(s))
	for i := range s {
		s2[i] = NormalizeString(s[i])
	}
	return s2
}

// NewOptions creates filter Options with defaults and applies given options.
func NewOptions[T any](opt ...Option[T]) (Options[T], error) {
	opts := defaultOptions[T]()

	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(&opts); err != nil {
			return Options[T]{}, err
		}
	}
	return opts, nil
}

// Provider is a generic function type that encapsulates the logic for extracting
// a value of type V from an item of type T.
type Provider[T any, V any] func(T) V

// StringValueProvider extracts a single string value from an item of type T.
type StringValueProvider[T any] Provider[T, string]

// StringValuesProvider extracts a slice of string values from an item of type T.
type StringValuesProvider[T any] Provider[T, []string]

// Equals returns a Predicate that checks if the value extracted by the provider
// exactly matches the filter value (case-insensitive, normalized).
//
// Example:
//
// predicate := Equals(statusProvider),
// result := predicate(server, "active") // true if server.Status equals "active"
func Equals[T any](provider StringValueProvider[T]) Predicate[T] {
	return func(item T, val string) bool {
		actual := NormalizeString(provider(item))
		expected := NormalizeString(val)
		return actual == expected
	}
}

// Partial returns a Predicate that checks if the value extracted by the provider
// contains the filter value as a substring (case-insensitive, normalized).
//
// Example:
//
// predicate := Partial(nameProvider),
// result := predicate(server, "filesystem") // true if server.Name contains "filesystem"
func Partial[T any](provider StringValueProvider[T]) Predicate[T] {
	return func(item T, val string) bool {
		actual := NormalizeString(provider(item))
		expected := NormalizeString(val)
		return strings.Contains(actual, expected)
	}
}

// PartialAny returns a Predicate that checks if *ANY* of the values from the supplied
// providers contain the filter value as a substring (case-insensitive, normalized).
//
// Example:
//
// predicate := PartialAny(nameProvider, descriptionProvider),
// result := predicate(server, "search") // true if name or description contains "search"
func PartialAny[T any](providers ...StringValueProvider[T]) Predicate[T] {
	return func(item T, val string) bool {
		q := NormalizeString(val)
		for _, p := range providers {
			actual := NormalizeString(p(item))
			if strings.Contains(actual, q) {
				return true
			}
		}
		return false
	}
}

// HasAny returns a Predicate that checks if the values extracted by the provider include *ANY* of
// the comma-separated values in the filter string (case-insensitive, normalized).
// Returns true if at least one required value is present in the extracted values.
//
// Example:
//
// predicate := HasAny(registryTypesProvider),
// result := predicate(server, "npm,pypi") // true if server has an npm or pypi package
func HasAny[T any](provider StringValuesProvider[T]) Predicate[T] {
	return func(item T, val string) bool {
		required := NormalizeSlice(strings.Split(val, ","))
		allowed := make(map[string]struct{}, len(required))

		for _, v := range required {
			allowed[v] = struct{}{}
		}

		for _, v := range provider(item) {
			if _, ok := allowed[NormalizeString(v)]; ok {
				return true
			}
		}
		return false
	}
}

// WithMatchers adds or overrides matchers.
func WithMatchers[T any](m map[string]Predicate[T]) Option[T] {
	return func(o *Options[T]) error {
		for k, v := range m {
			o.matchers[NormalizeString(k)] = v
		}
		return nil
	}
}

// WithMatcher adds or overrides a matcher.
func WithMatcher[T any](key string, value Predicate[T]) Option[T] {
	return func(o *Options[T]) error {
		o.matchers[NormalizeString(key)] = value
		return nil
	}
}

// WithUnsupportedKeys marks specific keys as unsupported when used for filtering.
func WithUnsupportedKeys[T any](keys ...string) Option[T] {
	return func(o *Options[T]) error {
		for _, key := range keys {
			k := NormalizeString(key)
			o.unsupported[k] = struct{}{}
		}
		return nil
	}
}

// WithLogFunc sets a log function which will be used to log info if unsupported keys are encountered.
func WithLogFunc[T any](logFunc func(key string, val string)) Option[T] {
	return func(o *Options[T]) error {
		if logFunc != nil {
			o.logFunc = logFunc
		}
		return nil
	}
}

// Match applies the provided filters to an item of type T using any configured Option matchers.
// It returns false if any unsupported filter key is encountered or if any matcher fails to validate
// the corresponding field.
func Match[T any](item T, filters map[string]string, opts ...Option[T]) (bool, error) {
	if filters == nil {
		return true, nil
	}

	filterOpts, err := NewOptions(opts...)
	if err != nil {
		return false, err
	}

	for key, val := range filters {
		k := NormalizeString(key)
		if k == "" {
			continue
		}

		if _, unsupported := filterOpts.unsupported[k]; unsupported {
			filterOpts.logFunc(k, val)
			return false, nil
		}

		matcher, ok := filterOpts.matchers[k]
		if !ok {
			continue
		}
		if !matcher(item, val) {
			return false, nil
		}
	}
	return true, nil
}
