package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
)

func sha256Sum(payload string) []byte {
	sum := sha256.Sum256([]byte(payload))
	return sum[:]
}

func hmacSHA512(key, payload []byte) []byte {
	mac := hmac.New(sha512.New, key)
	mac.Write(payload)
	return mac.Sum(nil)
}
