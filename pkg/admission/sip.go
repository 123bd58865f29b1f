package admission

import "strings"

// Routing header names on the inbound call. Diversion carries the
// dialed (callee) number, From the caller.
const (
	headerDiversion = "Diversion"
	headerFrom      = "From"
)

// headerValue finds a SIP header by name, case-insensitively.
func headerValue(headers []SIPHeader, name string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// extractAddress pulls the user part out of a user@host-shaped SIP
// token, e.g. `<sip:+3906123@carrier.example>;reason=busy` -> +3906123.
func extractAddress(raw string) (string, bool) {
	_, rest, found := strings.Cut(raw, "sip:")
	if !found {
		return "", false
	}
	addr, _, found := strings.Cut(rest, "@")
	if !found || addr == "" {
		return "", false
	}
	return addr, true
}

// routingAddresses resolves callee and caller from the SIP headers.
func routingAddresses(headers []SIPHeader) (callee, caller string, ok bool) {
	div, found := headerValue(headers, headerDiversion)
	if !found {
		return "", "", false
	}
	callee, ok = extractAddress(div)
	if !ok {
		return "", "", false
	}

	if from, found := headerValue(headers, headerFrom); found {
		caller, _ = extractAddress(from)
	}
	return callee, caller, true
}
