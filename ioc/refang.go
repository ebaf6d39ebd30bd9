// Package ioc normalizes defanged indicators of compromise and validates
// them before they are attached to a sentence.
package ioc

import (
	"fmt"
	"net/netip"
	"strings"
)

var refanger = strings.NewReplacer(
	"hxxps://", "https://",
	"hxxp://", "http://",
	"hXXps://", "https://",
	"hXXp://", "http://",
	"[.]", ".",
	"(.)", ".",
	"[dot]", ".",
	"(dot)", ".",
	"[:]", ":",
	"[@]", "@",
	"[at]", "@",
	`"`, "",
	"'", "",
	"\u200b", "", // zero-width space
	"\u200c", "", // zero-width non-joiner
	"\u200d", "", // zero-width joiner
	"\ufeff", "", // zero-width no-break space
)

// Refang normalizes a defanged indicator back to its usable form.
func Refang(text string) string {
	return strings.TrimSpace(refanger.Replace(text))
}

// Validate rejects refanged indicators that can never identify an
// adversary host. Non-IP text passes; an address must be globally
// meaningful.
func Validate(refanged string) error {
	if refanged == "" {
		return fmt.Errorf("indicator is empty")
	}
	addr, err := netip.ParseAddr(refanged)
	if err != nil {
		return nil // not an IP; free text is allowed
	}
	switch {
	case addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast():
		return fmt.Errorf("%s is a link-local address", refanged)
	case addr.IsMulticast():
		return fmt.Errorf("%s is a multicast address", refanged)
	case addr.IsPrivate() || addr.IsLoopback() || addr.IsUnspecified():
		return fmt.Errorf("%s is a private address", refanged)
	}
	return nil
}
