package upload

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Envelope is a signed parameter set accepted by the assembly endpoint.
type Envelope struct {
	Params    string `json:"params"`
	Signature string `json:"signature"`
}

// Signer produces upload envelopes. The hosted app fetches them from its own
// auth endpoint; HMACSigner signs locally with the account secret.
type Signer interface {
	Sign(ctx context.Context) (Envelope, error)
}

type HMACSigner struct {
	Key        string
	Secret     string
	TemplateID string
	TTL        time.Duration
	Now        func() time.Time
}

type authParams struct {
	Auth struct {
		Key     string `json:"key"`
		Expires string `json:"expires"`
	} `json:"auth"`
	TemplateID string `json:"template_id,omitempty"`
}

func (s *HMACSigner) Sign(_ context.Context) (Envelope, error) {
	if s == nil || strings.TrimSpace(s.Key) == "" || strings.TrimSpace(s.Secret) == "" {
		return Envelope{}, fmt.Errorf("upload: signer key and secret are required")
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	var p authParams
	p.Auth.Key = s.Key
	p.Auth.Expires = now().Add(ttl).UTC().Format("2006-01-02T15:04:05.000Z")
	p.TemplateID = s.TemplateID

	raw, err := json.Marshal(p)
	if err != nil {
		return Envelope{}, err
	}
	mac := hmac.New(sha512.New384, []byte(s.Secret))
	mac.Write(raw)
	return Envelope{Params: string(raw), Signature: hex.EncodeToString(mac.Sum(nil))}, nil
}
