// Package jwt issues and verifies rewards subscription session tokens, and
// inspects token expiry without verification for clients that only hold them.
package jwt
