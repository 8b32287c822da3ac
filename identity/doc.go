// Package identity resolves the client identifier a request is rate
// limited under.
//
// A Resolver tries, in order: a verified bearer JWT (the subject claim), an
// API key registered in an APIKeyStore (identified by its hash, never the
// raw key), and finally the client IP, honouring X-Forwarded-For and
// X-Real-IP only when the connecting peer is a trusted proxy. Resolution
// never fails; an invalid token or unknown key simply falls through to the
// next source.
package identity
