package normalize

import "strings"

// Normalizer is a named string canonicalization function.
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register("alphanumeric", Normalize)
	Register("sku", Normalize)
	Register("oem", Normalize)
	Register("aftermarket", Normalize)
	Register("supplier", Normalize)
	Register("digits_only", DigitsOnly)
	Register("upc", DigitsOnly)
	Register("ean", DigitsOnly)
	Register("lowercase", strings.ToLower)
	Register("trim", strings.TrimSpace)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value. Unknown names leave the value
// unchanged.
func Apply(value, name string) string {
	fn, ok := registry[name]
	if !ok {
		return value
	}
	return fn(value)
}

// ForNumberType returns the normalizer for a part-number type. Barcode types
// keep digits only; everything else canonicalizes to lowercase alphanumerics.
func ForNumberType(numberType string) Normalizer {
	if fn, ok := registry[numberType]; ok {
		return fn
	}
	return Normalize
}

// DigitsOnly strips every non-digit character.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
