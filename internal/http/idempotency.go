package http

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
)

const idempotencyHeader = "Idempotency-Key"

// idempotentResponse is a completed allocation kept for replay. A pending
// entry claims the key while the allocation runs.
type idempotentResponse struct {
	pending     bool
	status      int
	body        []byte
	fingerprint string
}

func newIdempotentResponse(status int, fingerprint string, v any) (idempotentResponse, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return idempotentResponse{}, err
	}
	return idempotentResponse{status: status, body: body, fingerprint: fingerprint}, nil
}

func (p idempotentResponse) write(w http.ResponseWriter) {
	NewJSONResponse().Status(p.status).Raw("application/json", p.body).Write(w)
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if len(key) > 200 {
		key = key[:200]
	}
	return key
}

// requestFingerprint identifies the decoded request so a reused key with a
// different payload can be refused.
func requestFingerprint(v any) string {
	data, _ := json.Marshal(v)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
