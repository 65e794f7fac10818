package eventstream

import "strings"

// forbiddenKeys are dropped from every redacted/sanitized payload outright,
// regardless of casing. Grounded on spec.md §6's public sanitizer rule.
var forbiddenKeys = map[string]bool{
	"exchange_order_id": true,
	"idempotency_key":   true,
	"ciphertext":        true,
	"nonce":             true,
	"api_key":           true,
	"secret":            true,
	"id":                true,
	"trade_id":          true,
}

// RedactPayload returns a copy of payload with every forbidden key removed,
// plus any key whose lowercased name contains "secret" or "key" (spec.md
// §6). Used both for the public REST sanitizer and the authenticated live
// stream's payload redaction — the two share the same key set.
func RedactPayload(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		lower := strings.ToLower(k)
		if forbiddenKeys[lower] {
			continue
		}
		if strings.Contains(lower, "secret") || strings.Contains(lower, "key") {
			continue
		}
		out[k] = v
	}
	return out
}
