// Package signature implements the gateway's push signing scheme: the flat
// field bag is sorted case-insensitively, concatenated as key=value pairs,
// suffixed with the per-channel shared secret and SHA-1 hashed. A second,
// unauthenticated "push hash" over the same fields is used for idempotency
// correlation, not authentication.
package signature

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Field is one key/value pair of the flat gateway body. Order of a Fields
// slice matters: the sort below is stable, so keys that collide
// case-insensitively keep their delivery order.
type Field struct {
	Key   string
	Value string
}

type Fields []Field

// Get returns the value for key, matched case-insensitively.
func (f Fields) Get(key string) string {
	for _, field := range f {
		if strings.EqualFold(field.Key, key) {
			return field.Value
		}
	}
	return ""
}

// Map flattens the fields to a lowercase-keyed map.
func (f Fields) Map() map[string]string {
	m := make(map[string]string, len(f))
	for _, field := range f {
		m[strings.ToLower(field.Key)] = field.Value
	}
	return m
}

// FromValues converts a parsed form body. url.Values has no delivery order,
// so keys are sorted for a deterministic result.
func FromValues(values url.Values) Fields {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	fields := make(Fields, 0, len(keys))
	for _, key := range keys {
		fields = append(fields, Field{Key: key, Value: values.Get(key)})
	}
	return fields
}

// Customer/consumer free-text fields arrive already decoded; URL-decoding
// them again would corrupt names containing '+' or '%'.
var noDecodeFields = map[string]bool{
	"brq_customer_name":              true,
	"cust_customer_name":             true,
	"brq_invoice_address":            true,
	"brq_shipping_address":           true,
	"brq_service_ideal_consumername": true,
}

// Fields excluded from the push hash on top of the signature field: the
// timestamp differs per delivery attempt and the customer name is mutable
// upstream, so neither may influence the idempotency fingerprint.
var pushHashExcluded = map[string]bool{
	"brq_timestamp":      true,
	"brq_customer_name":  true,
	"cust_customer_name": true,
}

// knakenKeyQuirk reproduces a documented quirk of the Knaken integration: its
// compound buyer fields are signed with the last underscore rendered as a
// space. This is wire compatibility with one upstream gateway, not a general
// rule; do not extend it to new payment methods.
func knakenKeyQuirk(key string) string {
	if !strings.HasSuffix(key, "_Buyer_UUID") && !strings.HasSuffix(key, "_Buyer_Name") {
		return key
	}
	idx := strings.LastIndex(key, "_")
	return key[:idx] + " " + key[idx+1:]
}

func signingString(fields Fields, excluded map[string]bool) string {
	kept := make(Fields, 0, len(fields))
	for _, field := range fields {
		lower := strings.ToLower(field.Key)
		if lower == "brq_signature" || excluded[lower] {
			continue
		}
		kept = append(kept, field)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return strings.ToLower(kept[i].Key) < strings.ToLower(kept[j].Key)
	})

	var sb strings.Builder
	for _, field := range kept {
		value := field.Value
		if !noDecodeFields[strings.ToLower(field.Key)] {
			if decoded, err := url.QueryUnescape(field.Value); err == nil {
				value = decoded
			}
		}
		sb.WriteString(knakenKeyQuirk(field.Key))
		sb.WriteString("=")
		sb.WriteString(value)
	}
	return sb.String()
}

// ComputeSignature builds the authenticated signature for a field bag.
func ComputeSignature(fields Fields, secret string) string {
	sum := sha1.Sum([]byte(signingString(fields, nil) + secret))
	return hex.EncodeToString(sum[:])
}

// ComputePushHash builds the unauthenticated correlation hash: timestamp and
// customer-name fields are dropped and the current UTC minute is prefixed
// instead of appending a secret.
func ComputePushHash(fields Fields, now time.Time) string {
	prefix := now.UTC().Format("200601021504")
	sum := sha1.Sum([]byte(prefix + signingString(fields, pushHashExcluded)))
	return hex.EncodeToString(sum[:])
}

// Verify checks the claimed signature against the computed one in constant
// time. A missing claimed signature always fails.
func Verify(fields Fields, claimed, secret string) bool {
	if claimed == "" {
		return false
	}
	computed := ComputeSignature(fields, secret)
	return subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(claimed)),
		[]byte(computed),
	) == 1
}
