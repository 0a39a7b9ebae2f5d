package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/tradewire/execgate/errs"
	"github.com/tradewire/execgate/internal/schema"
)

var testCreds = schema.Credentials{
	APIKey:     "key-1",
	APISecret:  "secret-1",
	Passphrase: "phrase-1",
}

func TestTimestampConcatSignsCanonicalPayload(t *testing.T) {
	signer := TimestampConcat{
		Venue:            "kucoin",
		Alg:              SHA256,
		Enc:              Base64,
		KeyHeader:        "KC-API-KEY",
		SignHeader:       "KC-API-SIGN",
		TimestampHeader:  "KC-API-TIMESTAMP",
		PassphraseHeader: "KC-API-PASSPHRASE",
		SignPassphrase:   true,
	}
	req := Request{
		Method:    "POST",
		Path:      "/api/v1/orders",
		Body:      `{"side":"buy"}`,
		Timestamp: "1700000000000",
	}
	material, err := signer.Sign(req, testCreds)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	mac := hmac.New(sha256.New, []byte(testCreds.APISecret))
	mac.Write([]byte("1700000000000POST/api/v1/orders" + `{"side":"buy"}`))
	wantSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if got := material.Headers["KC-API-SIGN"]; got != wantSig {
		t.Fatalf("signature mismatch: got %s want %s", got, wantSig)
	}
	if material.Headers["KC-API-KEY"] != "key-1" {
		t.Fatalf("missing key header")
	}
	if material.Headers["KC-API-TIMESTAMP"] != "1700000000000" {
		t.Fatalf("missing timestamp header")
	}

	phraseMac := hmac.New(sha256.New, []byte(testCreds.APISecret))
	phraseMac.Write([]byte(testCreds.Passphrase))
	wantPhrase := base64.StdEncoding.EncodeToString(phraseMac.Sum(nil))
	if got := material.Headers["KC-API-PASSPHRASE"]; got != wantPhrase {
		t.Fatalf("expected signed passphrase %s, got %s", wantPhrase, got)
	}
}

func TestTimestampConcatPlainPassphrase(t *testing.T) {
	signer := TimestampConcat{
		Venue:            "okx",
		Alg:              SHA256,
		Enc:              Base64,
		KeyHeader:        "OK-ACCESS-KEY",
		SignHeader:       "OK-ACCESS-SIGN",
		TimestampHeader:  "OK-ACCESS-TIMESTAMP",
		PassphraseHeader: "OK-ACCESS-PASSPHRASE",
	}
	material, err := signer.Sign(Request{Method: "GET", Path: "/api/v5/account/balance", Timestamp: "2023-01-01T00:00:00.000Z"}, testCreds)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if got := material.Headers["OK-ACCESS-PASSPHRASE"]; got != "phrase-1" {
		t.Fatalf("expected plain passphrase, got %s", got)
	}
}

func TestTimestampConcatIsDeterministic(t *testing.T) {
	signer := TimestampConcat{Venue: "okx", Alg: SHA256, Enc: Base64, KeyHeader: "K", SignHeader: "S", TimestampHeader: "T"}
	req := Request{Method: "GET", Path: "/x", Timestamp: "123"}
	first, err := signer.Sign(req, testCreds)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	second, err := signer.Sign(req, testCreds)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if first.Headers["S"] != second.Headers["S"] {
		t.Fatalf("fixed timestamp must give a reproducible signature")
	}
}

func TestTimestampConcatSHA384Hex(t *testing.T) {
	signer := TimestampConcat{
		Venue:           "bitfinex",
		Alg:             SHA384,
		Enc:             Hex,
		KeyHeader:       "bfx-apikey",
		SignHeader:      "bfx-signature",
		TimestampHeader: "bfx-nonce",
		Payload: func(r Request) string {
			return "/api/" + r.Path + r.Nonce + r.Body
		},
		TimestampValue: func(r Request) string { return r.Nonce },
	}
	req := Request{Method: "POST", Path: "v2/auth/w/order/submit", Body: "{}", Nonce: "42"}
	material, err := signer.Sign(req, testCreds)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	mac := hmac.New(sha512.New384, []byte(testCreds.APISecret))
	mac.Write([]byte("/api/v2/auth/w/order/submit42{}"))
	if got, want := material.Headers["bfx-signature"], hex.EncodeToString(mac.Sum(nil)); got != want {
		t.Fatalf("signature mismatch: got %s want %s", got, want)
	}
	if material.Headers["bfx-nonce"] != "42" {
		t.Fatalf("nonce header missing")
	}
}

func TestQueryStringAppendsSignatureParam(t *testing.T) {
	signer := QueryString{Venue: "binance", KeyHeader: "X-MBX-APIKEY"}
	req := Request{Method: "POST", Path: "/api/v3/order", Query: "side=BUY&symbol=XRPUSDT&timestamp=1700000000000"}
	material, err := signer.Sign(req, testCreds)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	mac := hmac.New(sha256.New, []byte(testCreds.APISecret))
	mac.Write([]byte(req.Query))
	want := hex.EncodeToString(mac.Sum(nil))
	if got := material.Query.Get("signature"); got != want {
		t.Fatalf("signature mismatch: got %s want %s", got, want)
	}
	if material.Headers["X-MBX-APIKEY"] != "key-1" {
		t.Fatalf("key header missing")
	}
}

func TestNonceDigestDecodesSecret(t *testing.T) {
	rawSecret := []byte("kraken-secret-bytes")
	creds := schema.Credentials{
		APIKey:    "key-1",
		APISecret: base64.StdEncoding.EncodeToString(rawSecret),
	}
	signer := NonceDigest{Venue: "kraken", KeyHeader: "API-Key", SignHeader: "API-Sign"}
	req := Request{
		Method: "POST",
		Path:   "/0/private/AddOrder",
		Body:   "nonce=99&pair=XBTUSDT",
		Nonce:  "99",
	}
	material, err := signer.Sign(req, creds)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	inner := sha256.Sum256([]byte("99nonce=99&pair=XBTUSDT"))
	mac := hmac.New(sha512.New, rawSecret)
	mac.Write([]byte(req.Path))
	mac.Write(inner[:])
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if got := material.Headers["API-Sign"]; got != want {
		t.Fatalf("signature mismatch: got %s want %s", got, want)
	}
}

func TestNonceDigestRejectsMalformedSecret(t *testing.T) {
	signer := NonceDigest{Venue: "kraken", KeyHeader: "API-Key", SignHeader: "API-Sign"}
	_, err := signer.Sign(Request{Path: "/0/private/Balance"}, schema.Credentials{APIKey: "k", APISecret: "%%%not-base64%%%"})
	if err == nil {
		t.Fatalf("expected error for non-base64 secret")
	}
}

func TestBasicAuthHeader(t *testing.T) {
	signer := Basic{Venue: "luno"}
	material, err := signer.Sign(Request{}, schema.Credentials{APIKey: "id", APISecret: "sec"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("id:sec"))
	if got := material.Headers["Authorization"]; got != want {
		t.Fatalf("unexpected header: %s", got)
	}
}

func TestSignersRejectMissingCredentials(t *testing.T) {
	signers := []Signer{
		TimestampConcat{Venue: "okx", KeyHeader: "K", SignHeader: "S"},
		QueryString{Venue: "binance", KeyHeader: "K"},
		NonceDigest{Venue: "kraken", KeyHeader: "K", SignHeader: "S"},
		Basic{Venue: "luno"},
	}
	for _, s := range signers {
		_, err := s.Sign(Request{}, schema.Credentials{})
		if !errs.HasCode(err, errs.CodeValidation) {
			t.Fatalf("%T: expected validation error, got %v", s, err)
		}
	}
}
