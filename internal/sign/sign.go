// Package sign implements the per-venue request authentication strategies.
//
// Each strategy is stateless: timestamps and nonces are supplied on the request
// by the caller, so tests can pin them and reproduce exact signatures.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"net/url"

	"github.com/tradewire/execgate/errs"
	"github.com/tradewire/execgate/internal/schema"
)

// Algorithm selects the HMAC hash function.
type Algorithm int

const (
	// SHA256 selects HMAC-SHA256.
	SHA256 Algorithm = iota
	// SHA384 selects HMAC-SHA384.
	SHA384
	// SHA512 selects HMAC-SHA512.
	SHA512
)

func (a Algorithm) constructor() func() hash.Hash {
	switch a {
	case SHA384:
		return sha512.New384
	case SHA512:
		return sha512.New
	default:
		return sha256.New
	}
}

// Encoding selects the digest text encoding.
type Encoding int

const (
	// Hex encodes digests as lowercase hexadecimal.
	Hex Encoding = iota
	// Base64 encodes digests as standard base64.
	Base64
)

// Request carries the canonical pieces of an outbound call to be signed.
// Path excludes the query string; Query is the already-encoded query string.
// Timestamp and Nonce are pre-rendered in the venue's expected format.
type Request struct {
	Method    string
	Path      string
	Query     string
	Body      string
	Timestamp string
	Nonce     string
}

func (r Request) pathWithQuery() string {
	if r.Query == "" {
		return r.Path
	}
	return r.Path + "?" + r.Query
}

// Material is the authentication output attached to the outbound request:
// headers and/or extra query parameters.
type Material struct {
	Headers map[string]string
	Query   url.Values
}

// Signer produces the authentication material for one request.
type Signer interface {
	Sign(req Request, creds schema.Credentials) (Material, error)
}

func digest(alg Algorithm, enc Encoding, key []byte, payload string) string {
	mac := hmac.New(alg.constructor(), key)
	mac.Write([]byte(payload))
	sum := mac.Sum(nil)
	if enc == Base64 {
		return base64.StdEncoding.EncodeToString(sum)
	}
	return hex.EncodeToString(sum)
}

func missingCredentials(venue string) error {
	return errs.New(venue, errs.CodeValidation, errs.WithMessage("api credentials missing"))
}
