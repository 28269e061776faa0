package links

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math"
)

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// EncodeBase62 将计数器编码为短码
func EncodeBase62(n uint64) string {
	if n == 0 {
		return base62Alphabet[:1]
	}
	var buf [11]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = base62Alphabet[n%62]
		n /= 62
	}
	return string(buf[i:])
}

// DecodeBase62 EncodeBase62 的逆运算
func DecodeBase62(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty base62 string")
	}
	var n uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		var d uint64
		switch {
		case c >= '0' && c <= '9':
			d = uint64(c - '0')
		case c >= 'A' && c <= 'Z':
			d = uint64(c-'A') + 10
		case c >= 'a' && c <= 'z':
			d = uint64(c-'a') + 36
		default:
			return 0, fmt.Errorf("invalid base62 character %q", c)
		}
		if n > (math.MaxUint64-d)/62 {
			return 0, fmt.Errorf("base62 value %q overflows uint64", s)
		}
		n = n*62 + d
	}
	return n, nil
}

// =============================================================================
// 🔐 访问密码
// =============================================================================

// GenerateSalt 16 字节随机数的十六进制表示
func GenerateSalt() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashPassword sha256(salt + password) 的十六进制表示
func HashPassword(password, salt string) string {
	sum := sha256.Sum256([]byte(salt + password))
	return hex.EncodeToString(sum[:])
}

// Authorized 未设密码的记录总是放行；否则校验提供的密码
func Authorized(rec Record, password string) bool {
	if !rec.Protected() {
		return true
	}
	if password == "" {
		return false
	}
	expected := HashPassword(password, rec.PasswordSalt)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(rec.PasswordHash)) == 1
}
