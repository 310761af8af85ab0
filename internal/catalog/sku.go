package catalog

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// abbreviate keeps the first three alphanumeric runes, uppercased.
func abbreviate(s string) string {
	var b strings.Builder
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
		if b.Len() >= 3 {
			break
		}
	}
	return b.String()
}

// BuildSKU composes CATEGORY-NAME-YY-SEQ, e.g. OFF-PEN-26-004. seq is the
// per-day creation sequence (count created today + 1).
func BuildSKU(categoryName, name string, now time.Time, seq int) string {
	year := now.Format("06")
	return fmt.Sprintf("%s-%s-%s-%03d", abbreviate(categoryName), abbreviate(name), year, seq)
}

// UniqueSKU appends -1, -2, ... to base until exists reports it free.
func UniqueSKU(base string, exists func(string) bool) string {
	sku := base
	for counter := 1; exists(sku); counter++ {
		sku = fmt.Sprintf("%s-%d", base, counter)
	}
	return sku
}
