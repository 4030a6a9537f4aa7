// Package auth implements the request-authentication schemes: the symmetric
// HMAC channel used by the bot, the asymmetric Ed25519 channel used by
// Discord interaction webhooks, and browser session tokens.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/taskhive/taskhive/pkg/logger"
)

// HMAC channel header names.
const (
	HeaderUserID    = "X-Taskhive-User-ID"
	HeaderTimestamp = "X-Taskhive-Timestamp"
	HeaderSignature = "X-Taskhive-Signature"
)

const (
	// FreshnessWindow is the maximum age of a signed timestamp before the
	// request is rejected as a replay.
	FreshnessWindow = 60 * time.Second

	// ClockSkewTolerance bounds how far in the future a timestamp may claim
	// to be.
	ClockSkewTolerance = 5 * time.Second

	// signatureHexLen is the hex length of an HMAC-SHA256 digest.
	signatureHexLen = 64

	// secretPlaceholder is the value shipped in example configuration; a
	// secret equal to it counts as unconfigured.
	secretPlaceholder = "change-me"
)

// HMACHeaders is the header bundle carried by a bot-signed request.
type HMACHeaders struct {
	UserID    string
	Timestamp string
	Signature string
}

// HMACVerifier authenticates bot-to-API requests signed with a shared secret.
type HMACVerifier struct {
	secret string
	now    func() time.Time
	log    *logger.Logger
}

// NewHMACVerifier builds a verifier for the given shared secret.
func NewHMACVerifier(secret string, log *logger.Logger) *HMACVerifier {
	if log == nil {
		log = logger.NewDefault("auth.hmac")
	}
	return &HMACVerifier{secret: secret, now: time.Now, log: log}
}

// Verify returns the principal id iff the header bundle is authentic and
// fresh. Failure is silent to the caller: the empty string and false, with
// the reason only logged for operational diagnosis.
func (v *HMACVerifier) Verify(h HMACHeaders) (string, bool) {
	if h.UserID == "" || h.Timestamp == "" || h.Signature == "" {
		v.log.Debug("signed request missing headers")
		return "", false
	}
	if v.secret == "" || v.secret == secretPlaceholder {
		v.log.Warn("bot signing secret not configured")
		return "", false
	}

	ts, err := strconv.ParseInt(h.Timestamp, 10, 64)
	if err != nil {
		v.log.WithField("timestamp", h.Timestamp).Debug("unparseable timestamp")
		return "", false
	}

	nowMs := v.now().UnixMilli()
	if nowMs-ts > FreshnessWindow.Milliseconds() {
		v.log.WithField("age_ms", nowMs-ts).Debug("stale signed request")
		return "", false
	}
	if ts-nowMs > ClockSkewTolerance.Milliseconds() {
		v.log.WithField("skew_ms", ts-nowMs).Debug("signed request from the future")
		return "", false
	}

	if len(h.Signature) != signatureHexLen {
		return "", false
	}
	got, err := hex.DecodeString(h.Signature)
	if err != nil {
		return "", false
	}

	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write([]byte(h.UserID + "|" + h.Timestamp))
	want := mac.Sum(nil)

	// hmac.Equal is constant-time; a short-circuiting comparison would leak
	// the position of the first differing byte.
	if !hmac.Equal(got, want) {
		v.log.WithField("user_id", h.UserID).Debug("signature mismatch")
		return "", false
	}
	return h.UserID, true
}

// SignRequest computes the signature the bot attaches for a user id and
// millisecond timestamp. Exposed for the bot client and for tests.
func SignRequest(secret, userID string, timestampMs int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(userID + "|" + strconv.FormatInt(timestampMs, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
