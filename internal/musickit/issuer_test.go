package musickit

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// genP256Key genera una clave P-256 y su PEM PKCS#8 (formato de los .p8 de
// Apple).
func genP256Key(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal pkcs8: %v", err)
	}
	var buf bytes.Buffer
	if err := pem.Encode(&buf, &pem.Block{Type: "PRIVATE KEY", Bytes: der}); err != nil {
		t.Fatalf("encode pem: %v", err)
	}
	return priv, buf.String()
}

func decodeClaims(t *testing.T, token string) (map[string]any, map[string]any) {
	t.Helper()
	parser := jwtv5.NewParser()
	tk, _, err := parser.ParseUnverified(token, jwtv5.MapClaims{})
	if err != nil {
		t.Fatalf("parse unverified: %v", err)
	}
	mc, ok := tk.Claims.(jwtv5.MapClaims)
	if !ok {
		t.Fatalf("claims are not MapClaims: %T", tk.Claims)
	}
	return tk.Header, map[string]any(mc)
}

func TestSign_HeaderAndClaims(t *testing.T) {
	t.Parallel()
	_, pemStr := genP256Key(t)

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := Issuer{Now: func() time.Time { return fixed }}

	tok, err := iss.Sign(Credential{
		TeamID:        "TEAM123456",
		KeyID:         "KEY1234567",
		PrivateKeyPEM: pemStr,
	})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if got := strings.Count(tok, "."); got != 2 {
		t.Fatalf("token segments: got %d dots, want 2 (compact JWS)", got)
	}

	header, claims := decodeClaims(t, tok)
	if header["alg"] != "ES256" {
		t.Fatalf("alg = %v, want ES256", header["alg"])
	}
	if header["kid"] != "KEY1234567" {
		t.Fatalf("kid = %v, want KEY1234567", header["kid"])
	}
	if header["typ"] != "JWT" {
		t.Fatalf("typ = %v, want JWT", header["typ"])
	}
	if claims["iss"] != "TEAM123456" {
		t.Fatalf("iss = %v, want TEAM123456", claims["iss"])
	}

	iat := int64(claims["iat"].(float64))
	exp := int64(claims["exp"].(float64))
	if iat != fixed.Unix() {
		t.Fatalf("iat = %d, want %d", iat, fixed.Unix())
	}
	if exp-iat != 180*24*3600 {
		t.Fatalf("exp-iat = %d, want %d (180 días exactos)", exp-iat, 180*24*3600)
	}
}

func TestSign_SignatureVerifies(t *testing.T) {
	t.Parallel()
	priv, pemStr := genP256Key(t)

	tok, err := Issuer{}.Sign(Credential{
		TeamID:        "ABC123",
		KeyID:         "DEF456",
		PrivateKeyPEM: pemStr,
	})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	parsed, err := jwtv5.Parse(tok, func(*jwtv5.Token) (any, error) {
		return &priv.PublicKey, nil
	}, jwtv5.WithValidMethods([]string{"ES256"}))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("token did not verify against its own public key")
	}

	// La propiedad observable del wire format: el payload decodificado en
	// crudo contiene el iss literal.
	parts := strings.Split(tok, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !strings.Contains(string(payload), `"iss":"ABC123"`) {
		t.Fatalf("payload %q does not contain iss ABC123", payload)
	}
}

func TestSign_SEC1PEM(t *testing.T) {
	t.Parallel()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal sec1: %v", err)
	}
	var buf bytes.Buffer
	if err := pem.Encode(&buf, &pem.Block{Type: "EC PRIVATE KEY", Bytes: der}); err != nil {
		t.Fatalf("encode pem: %v", err)
	}

	if _, err := (Issuer{}).Sign(Credential{
		TeamID:        "T1",
		KeyID:         "K1",
		PrivateKeyPEM: buf.String(),
	}); err != nil {
		t.Fatalf("Sign with SEC1 PEM: %v", err)
	}
}

func TestSign_KeyFromFile(t *testing.T) {
	t.Parallel()
	_, pemStr := genP256Key(t)
	path := filepath.Join(t.TempDir(), "AuthKey_TEST.p8")
	if err := os.WriteFile(path, []byte(pemStr), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	tok, err := Issuer{}.Sign(Credential{
		TeamID:         "T1",
		KeyID:          "K1",
		PrivateKeyPath: path,
	})
	if err != nil {
		t.Fatalf("Sign from file: %v", err)
	}
	if strings.Count(tok, ".") != 2 {
		t.Fatalf("malformed token: %q", tok)
	}
}

func TestSign_InlineWinsOverPath(t *testing.T) {
	t.Parallel()
	_, pemStr := genP256Key(t)
	// La ruta apunta a basura: si Sign la leyera, fallaría.
	path := filepath.Join(t.TempDir(), "garbage.p8")
	if err := os.WriteFile(path, []byte("not a key"), 0o600); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	if _, err := (Issuer{}).Sign(Credential{
		TeamID:         "T1",
		KeyID:          "K1",
		PrivateKeyPEM:  pemStr,
		PrivateKeyPath: path,
	}); err != nil {
		t.Fatalf("inline PEM should win over path, got %v", err)
	}
}

func TestSign_KeyUnreadable(t *testing.T) {
	t.Parallel()
	_, err := Issuer{}.Sign(Credential{
		TeamID:         "T1",
		KeyID:          "K1",
		PrivateKeyPath: filepath.Join(t.TempDir(), "missing.p8"),
	})
	if !errors.Is(err, ErrKeyUnreadable) {
		t.Fatalf("err = %v, want ErrKeyUnreadable", err)
	}
}

func TestSign_KeyFileTooLarge(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "huge.p8")
	if err := os.WriteFile(path, bytes.Repeat([]byte("A"), maxKeyFileSize+1), 0o600); err != nil {
		t.Fatalf("write huge file: %v", err)
	}
	_, err := Issuer{}.Sign(Credential{
		TeamID:         "T1",
		KeyID:          "K1",
		PrivateKeyPath: path,
	})
	if !errors.Is(err, ErrKeyUnreadable) {
		t.Fatalf("err = %v, want ErrKeyUnreadable", err)
	}
}

func TestSign_InvalidKey(t *testing.T) {
	t.Parallel()
	_, err := Issuer{}.Sign(Credential{
		TeamID:        "T1",
		KeyID:         "K1",
		PrivateKeyPEM: "definitely not pem",
	})
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("err = %v, want ErrInvalidKey", err)
	}
}

func TestSign_WrongCurve(t *testing.T) {
	t.Parallel()
	priv, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		t.Fatalf("generate P-384 key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal pkcs8: %v", err)
	}
	var buf bytes.Buffer
	if err := pem.Encode(&buf, &pem.Block{Type: "PRIVATE KEY", Bytes: der}); err != nil {
		t.Fatalf("encode pem: %v", err)
	}

	_, err = Issuer{}.Sign(Credential{
		TeamID:        "T1",
		KeyID:         "K1",
		PrivateKeyPEM: buf.String(),
	})
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("err = %v, want ErrInvalidKey for P-384", err)
	}
}

func TestPlaceholder_Constant(t *testing.T) {
	t.Parallel()
	if got := (Issuer{}).Placeholder(); got != "DEMO_TOKEN_REPLACE_WITH_REAL_TOKEN" {
		t.Fatalf("Placeholder() = %q", got)
	}
	// Pura: dos llamadas, mismo valor, sin tocar entorno ni disco.
	if (Issuer{}).Placeholder() != (Issuer{}).Placeholder() {
		t.Fatal("Placeholder() is not stable")
	}
}
