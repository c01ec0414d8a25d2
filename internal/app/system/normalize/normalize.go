// Package normalize canonicalizes user-supplied identifiers before they are
// stored or used in store filters.
package normalize

import "strings"

// Email trims whitespace and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace and preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Currency trims and lowercases an ISO 4217 currency code ("USD" -> "usd").
func Currency(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryParam trims a query-string value.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}

// Token trims an opaque identifier such as a provider transaction id.
// Case is significant and preserved.
func Token(s string) string {
	return strings.TrimSpace(s)
}
