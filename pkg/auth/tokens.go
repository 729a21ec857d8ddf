// Package auth covers credentials: opaque token minting and
// classification, JWT sessions, password hashing and the topic ACL.
package auth

import (
	"strings"

	"github.com/google/uuid"
)

// TokenType classifies a presented bearer credential by prefix.
type TokenType int

const (
	// TokenSession is anything without a known prefix, treated as a JWT.
	TokenSession TokenType = iota
	TokenApp
	TokenClient
	TokenWebhook
)

const (
	appTokenPrefix     = "AP_"
	clientTokenPrefix  = "CL_"
	webhookTokenPrefix = "WH_"
)

func randomHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewAppToken mints an application token: "AP_" + 32 hex chars.
func NewAppToken() string { return appTokenPrefix + randomHex() }

// NewClientToken mints a client token: "CL_" + 32 hex chars.
func NewClientToken() string { return clientTokenPrefix + randomHex() }

// NewWebhookToken mints a webhook token: "WH_" + 32 hex chars.
func NewWebhookToken() string { return webhookTokenPrefix + randomHex() }

// Classify inspects the prefix of a presented token.
func Classify(token string) TokenType {
	switch {
	case strings.HasPrefix(token, appTokenPrefix):
		return TokenApp
	case strings.HasPrefix(token, clientTokenPrefix):
		return TokenClient
	case strings.HasPrefix(token, webhookTokenPrefix):
		return TokenWebhook
	default:
		return TokenSession
	}
}
