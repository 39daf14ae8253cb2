package utils

import "strings"

// NormalizePhone strips everything but digits from a phone number.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneFromJID extracts the phone digits from a WhatsApp JID such as
// "553199999999@s.whatsapp.net".
func PhoneFromJID(jid string) string {
	if idx := strings.Index(jid, "@"); idx >= 0 {
		jid = jid[:idx]
	}
	return NormalizePhone(jid)
}

// WhatsAppJID formats a phone number the way the Evolution API expects.
func WhatsAppJID(phone string) string {
	return NormalizePhone(phone) + "@s.whatsapp.net"
}
