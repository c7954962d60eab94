// Package seal encodes and decodes the authenticity payload printed as a QR code on
// every invoice, receipt and payslip.
//
// The scheme is obfuscation, not encryption: the XOR key is static and compiled
// into this package, so anyone holding the scheme can forge or read a code. It gives
// tamper evidence against casual inspection only. Printed documents already depend
// on the exact byte layout, so the layout must not change; deployments that need a
// defensible guarantee should store a Signer MAC alongside the code.
//
// Only records that encode to a JSON object can be sealed: the salt and marker are
// merged into the object as sibling fields. Arrays, strings, numbers and null fail
// with ErrNotObject; callers wrap such values in an object of their own.
package seal

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

const (
	// Prefix marks strings produced by this scheme.
	Prefix = "AVSEAL"
	// Marker is injected into every payload and checked on unseal.
	Marker = "accountsvedartha/v1"

	saltField   = "_salt"
	markerField = "_marker"
)

var key = []byte("vedartha::document-integrity::2024")

// ErrNotObject is returned when the record does not serialize to a JSON object.
var ErrNotObject = errors.New("seal: record must encode to a JSON object")

// Payload is an unsealed record without the salt and marker fields.
type Payload map[string]any

// String returns a string field or "".
func (p Payload) String(field string) string {
	s, _ := p[field].(string)
	return s
}

// Float returns a numeric field.
func (p Payload) Float(field string) (float64, bool) {
	switch v := p[field].(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// Opened is the full result of unsealing a code.
type Opened struct {
	Record   Payload
	SealedAt time.Time
}

// Sealer seals records. The zero value is not usable; call New.
type Sealer struct {
	now      func() time.Time
	lastSalt atomic.Int64
}

// New returns a Sealer using the wall clock.
func New() *Sealer {
	return &Sealer{now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Sealer) WithNow(now func() time.Time) *Sealer {
	if now != nil {
		s.now = now
	}
	return s
}

// Seal merges record with a salt and the marker, then obfuscates it as
// "AVSEAL:" + base64(xor(json)).
func (s *Sealer) Seal(record any) (string, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("seal: encode record: %w", err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return "", ErrNotObject
	}
	fields[saltField] = json.RawMessage(fmt.Sprintf("%d", s.nextSalt()))
	markerJSON, _ := json.Marshal(Marker)
	fields[markerField] = markerJSON

	// map keys are emitted in sorted order, giving a canonical form
	canonical, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("seal: encode payload: %w", err)
	}
	return Prefix + ":" + base64.StdEncoding.EncodeToString(xor(canonical)), nil
}

// Unseal returns the record behind code. Codes that are not ours, or that fail to
// decode at any step, yield (nil, false); Unseal never panics.
func (s *Sealer) Unseal(code string) (Payload, bool) {
	opened, ok := Open(code)
	if !ok {
		return nil, false
	}
	return opened.Record, true
}

// UnsealInto decodes the record behind code into dst.
func (s *Sealer) UnsealInto(code string, dst any) bool {
	record, ok := s.Unseal(code)
	if !ok {
		return false
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// Open is the method form of the package-level Open.
func (s *Sealer) Open(code string) (Opened, bool) {
	return Open(code)
}

// Open unseals code and also reports when it was sealed.
func Open(code string) (opened Opened, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			opened, ok = Opened{}, false
		}
	}()

	body, found := strings.CutPrefix(strings.TrimSpace(code), Prefix+":")
	if !found {
		return Opened{}, false
	}
	cipher, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return Opened{}, false
	}
	dec := json.NewDecoder(bytes.NewReader(xor(cipher)))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return Opened{}, false
	}
	if marker, _ := fields[markerField].(string); marker != Marker {
		return Opened{}, false
	}
	var sealedAt time.Time
	if salt, isNum := fields[saltField].(json.Number); isNum {
		if ms, err := salt.Int64(); err == nil {
			sealedAt = time.UnixMilli(ms)
		}
	}
	delete(fields, markerField)
	delete(fields, saltField)
	return Opened{Record: Payload(fields), SealedAt: sealedAt}, true
}

// IsSealed reports whether code carries the scheme prefix.
func IsSealed(code string) bool {
	return strings.HasPrefix(strings.TrimSpace(code), Prefix+":")
}

// nextSalt returns epoch milliseconds, forced strictly increasing per Sealer.
func (s *Sealer) nextSalt() int64 {
	now := s.now().UnixMilli()
	for {
		last := s.lastSalt.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if s.lastSalt.CompareAndSwap(last, next) {
			return next
		}
	}
}

func xor(in []byte) []byte {
	out := make([]byte, len(in))
	for i, b := range in {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}
