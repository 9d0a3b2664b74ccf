package datarequest

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/flyingwithjoel/fwj-api/notify"
)

const maxEmailLen = 254

// ValidEmail is a plausibility check, not RFC 5322: exactly one "@", a non-empty local
// part, a dotted domain and no whitespace or control characters.
func ValidEmail(email string) bool {
	if email == "" || len(email) > maxEmailLen {
		return false
	}
	for _, r := range email {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	if strings.Count(email, "@") != 1 {
		return false
	}
	local, domain, _ := strings.Cut(email, "@")
	if local == "" || !strings.Contains(domain, ".") {
		return false
	}
	return !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

func actionLabel(a Action) string {
	if a == ActionDelete {
		return "deletion"
	}
	return "access"
}

func confirmationEmail(to string, a Action, link string) notify.Email {
	var b strings.Builder
	fmt.Fprintf(&b, "We received a data %s request for this email address on flyingwithjoel.co.uk.\n\n", actionLabel(a))
	fmt.Fprintf(&b, "To confirm it, open this link within %d hours:\n\n%s\n\n", int(pendingTTL/time.Hour), link)
	b.WriteString("If you did not make this request you can ignore this email; nothing will happen.\n")
	return notify.Email{
		To:      to,
		Subject: fmt.Sprintf("Confirm your data %s request", actionLabel(a)),
		Text:    b.String(),
	}
}

// resultEmail describes what was done. There are no user accounts, so the truthful
// answer for both actions is that no server-side record tied to the address exists.
func resultEmail(to string, a Action) notify.Email {
	var b strings.Builder
	switch a {
	case ActionDelete:
		b.WriteString("Your data deletion request has been processed.\n\n")
		b.WriteString("Any server-side records associated with this email address have been removed. ")
		b.WriteString("This site does not keep user accounts, so in most cases there was nothing to delete.\n\n")
		b.WriteString("Please note that third-party providers (for example our email and hosting providers, or Discord ")
		b.WriteString("for messages sent through the flight suggestion form) may retain logs outside of our control. ")
		b.WriteString("You can contact them directly to request removal.\n")
	default:
		b.WriteString("Your data access request has been processed.\n\n")
		b.WriteString("We found no server-side record associated with this email address. ")
		b.WriteString("This site does not keep user accounts or profiles.\n\n")
		b.WriteString("Preferences such as cookie consent are stored only in your own browser and never reach our servers. ")
		b.WriteString("Flight suggestions submitted through the site are forwarded to a Discord channel and may persist there ")
		b.WriteString("independently of this system.\n")
	}
	b.WriteString("\nWe keep a minimal record of this request (action, timestamps and a one-way hash of your address) ")
	fmt.Fprintf(&b, "for %d days as an audit trail. Your email address itself is not retained.\n", int(processedTTL/(24*time.Hour)))
	return notify.Email{
		To:      to,
		Subject: fmt.Sprintf("Your data %s request has been processed", actionLabel(a)),
		Text:    b.String(),
	}
}
