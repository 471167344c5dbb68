// Package token issues and consumes the signed one-time tokens that chain
// consecutive chat requests from the same browser together.
package token

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkorolev/sitegate/pkg/store"
)

// Lifetime is how long an issued token stays valid. The stored record's TTL
// matches, so expired tokens are reclaimed by the store instead of deleted.
const Lifetime = 15 * time.Minute

const keyPrefix = "token:"

type payload struct {
	TokenID     string `json:"token_id"`
	Fingerprint string `json:"fingerprint"`
	IPAddress   string `json:"ip_address"`
	Expires     int64  `json:"expires"`
}

type record struct {
	Used      bool    `json:"used"`
	Payload   payload `json:"payload"`
	Signature string  `json:"signature"`
}

type Manager struct {
	store  store.Store
	secret []byte
	now    func() time.Time
}

func NewManager(s store.Store, secret string) *Manager {
	return &Manager{
		store:  s,
		secret: []byte(secret),
		now:    time.Now,
	}
}

// SetClock replaces the manager's time source. Test-only.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Issue mints a fresh single-use token bound to the caller's fingerprint and
// network address. The external form is "<token_id>.<signature>"; the signing
// key never leaves the server.
func (m *Manager) Issue(ctx context.Context, fingerprint, ip string) (string, error) {
	p := payload{
		TokenID:     uuid.NewString(),
		Fingerprint: fingerprint,
		IPAddress:   ip,
		Expires:     m.now().Add(Lifetime).Unix(),
	}
	sig := m.sign(p)
	rec, err := json.Marshal(record{Used: false, Payload: p, Signature: sig})
	if err != nil {
		return "", fmt.Errorf("encode token record: %w", err)
	}
	if err := m.store.SetWithTTL(ctx, keyPrefix+p.TokenID, string(rec), Lifetime); err != nil {
		return "", fmt.Errorf("store token record: %w", err)
	}
	return p.TokenID + "." + sig, nil
}

// Consume validates tok against the stored record and marks it used. It fails
// closed (false, nil) on anything malformed, expired, mismatched, or already
// consumed; only store failures surface as errors. The used flag flips through
// the store's compare-and-swap, so of N racing callers at most one wins.
func (m *Manager) Consume(ctx context.Context, tok, fingerprint, ip string) (bool, error) {
	parts := strings.Split(tok, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return false, nil
	}
	tokenID, sig := parts[0], parts[1]

	raw, ok, err := m.store.Get(ctx, keyPrefix+tokenID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return false, nil
	}
	switch {
	case rec.Used:
		return false, nil
	case rec.Payload.Expires < m.now().Unix():
		return false, nil
	case rec.Payload.Fingerprint != fingerprint || rec.Payload.IPAddress != ip:
		return false, nil
	case !hmac.Equal([]byte(sig), []byte(rec.Signature)):
		return false, nil
	}

	rec.Used = true
	next, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("encode token record: %w", err)
	}
	return m.store.CompareAndSwap(ctx, keyPrefix+tokenID, raw, string(next))
}

// sign computes the HMAC-SHA256 over the key-sorted JSON form of the payload.
// A map is marshaled instead of the struct because encoding/json sorts map
// keys, giving an order-independent canonical serialization.
func (m *Manager) sign(p payload) string {
	canonical, _ := json.Marshal(map[string]any{
		"token_id":    p.TokenID,
		"fingerprint": p.Fingerprint,
		"ip_address":  p.IPAddress,
		"expires":     p.Expires,
	})
	mac := hmac.New(sha256.New, m.secret)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil))
}
