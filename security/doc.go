// Package security provides the primitives the engine is built on top of:
// AES-256-GCM encryption for credentials at rest, HKDF key derivation, and a
// per-provider rate limiter for outbound token-endpoint calls.
package security
