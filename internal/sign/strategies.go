package sign

import (
	"encoding/base64"
	"net/url"

	"github.com/tradewire/execgate/internal/schema"
)

// TimestampConcat signs timestamp ++ method ++ path ++ body with an HMAC and
// attaches the result as headers. It covers the KuCoin, OKX and Bitfinex
// families through the configurable payload and passphrase handling.
type TimestampConcat struct {
	Venue            string
	Alg              Algorithm
	Enc              Encoding
	KeyHeader        string
	SignHeader       string
	TimestampHeader  string
	PassphraseHeader string
	// ExtraHeaders are fixed headers the venue requires on every signed call,
	// e.g. an API key version marker.
	ExtraHeaders map[string]string
	// SignPassphrase additionally HMAC-signs the passphrase with the API secret
	// (KuCoin key version 2 behaviour). When false the passphrase is sent as-is.
	SignPassphrase bool
	// Payload overrides the default canonicalization
	// (timestamp + method + path?query + body).
	Payload func(Request) string
	// TimestampValue overrides the value placed in TimestampHeader; Bitfinex
	// sends the nonce there instead of a clock reading.
	TimestampValue func(Request) string
}

// Sign implements Signer.
func (s TimestampConcat) Sign(req Request, creds schema.Credentials) (Material, error) {
	if !creds.Present() {
		return Material{}, missingCredentials(s.Venue)
	}
	payload := req.Timestamp + req.Method + req.pathWithQuery() + req.Body
	if s.Payload != nil {
		payload = s.Payload(req)
	}
	signature := digest(s.Alg, s.Enc, []byte(creds.APISecret), payload)

	headers := map[string]string{
		s.KeyHeader:  creds.APIKey,
		s.SignHeader: signature,
	}
	if s.TimestampHeader != "" {
		value := req.Timestamp
		if s.TimestampValue != nil {
			value = s.TimestampValue(req)
		}
		headers[s.TimestampHeader] = value
	}
	if s.PassphraseHeader != "" && creds.Passphrase != "" {
		passphrase := creds.Passphrase
		if s.SignPassphrase {
			passphrase = digest(s.Alg, s.Enc, []byte(creds.APISecret), creds.Passphrase)
		}
		headers[s.PassphraseHeader] = passphrase
	}
	for k, v := range s.ExtraHeaders {
		headers[k] = v
	}
	return Material{Headers: headers}, nil
}

// QueryString signs the canonical query string (plus body, when present) and
// appends the digest as a query parameter. This is the Binance family, reused
// verbatim by several venues.
type QueryString struct {
	Venue     string
	KeyHeader string
	SignParam string
}

// Sign implements Signer.
func (s QueryString) Sign(req Request, creds schema.Credentials) (Material, error) {
	if !creds.Present() {
		return Material{}, missingCredentials(s.Venue)
	}
	signParam := s.SignParam
	if signParam == "" {
		signParam = "signature"
	}
	payload := req.Query + req.Body
	signature := digest(SHA256, Hex, []byte(creds.APISecret), payload)
	query := url.Values{}
	query.Set(signParam, signature)
	return Material{
		Headers: map[string]string{s.KeyHeader: creds.APIKey},
		Query:   query,
	}, nil
}

// NonceDigest is the Kraken family: the signature is
// HMAC-SHA512(base64decode(secret), path ++ SHA256(nonce ++ body)), base64
// encoded. The nonce must already be present in the request body.
type NonceDigest struct {
	Venue      string
	KeyHeader  string
	SignHeader string
}

// Sign implements Signer.
func (s NonceDigest) Sign(req Request, creds schema.Credentials) (Material, error) {
	if !creds.Present() {
		return Material{}, missingCredentials(s.Venue)
	}
	secret, err := base64.StdEncoding.DecodeString(creds.APISecret)
	if err != nil {
		return Material{}, missingCredentials(s.Venue)
	}
	inner := sha256Sum(req.Nonce + req.Body)
	mac := hmacSHA512(secret, append([]byte(req.Path), inner...))
	return Material{
		Headers: map[string]string{
			s.KeyHeader:  creds.APIKey,
			s.SignHeader: base64.StdEncoding.EncodeToString(mac),
		},
	}, nil
}

// Basic authenticates with HTTP basic auth over the API key pair.
type Basic struct {
	Venue string
}

// Sign implements Signer.
func (s Basic) Sign(_ Request, creds schema.Credentials) (Material, error) {
	if !creds.Present() {
		return Material{}, missingCredentials(s.Venue)
	}
	token := base64.StdEncoding.EncodeToString([]byte(creds.APIKey + ":" + creds.APISecret))
	return Material{
		Headers: map[string]string{"Authorization": "Basic " + token},
	}, nil
}
