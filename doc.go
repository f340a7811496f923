// Package auth implements the identity, authorization, and team-provisioning
// core for a tenant-scoped coaching platform: the identity session state
// machine, claims/profile synchronization, the signed single-use invite
// lifecycle with seat-limit enforcement, the pure access decision engine,
// and the session security guard (CSRF rotation, idle/absolute expiry).
//
// The backing profile store, the identity provider, and the billing provider
// are consumed through narrow interfaces; this package is a defense-in-depth
// layer and assumes a trusted backend is the final authorization arbiter.
package auth
