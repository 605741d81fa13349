// Package dedupe provides a time-windowed idempotency-key cache used to
// drop duplicate inbound posts before they reach persistence.
package dedupe
