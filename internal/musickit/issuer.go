package musickit

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"
	"io"
	"os"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// DemoToken es el placeholder que reciben los clientes cuando no hay
// credenciales utilizables. Constante pura: sin I/O, sin entorno.
const DemoToken = "DEMO_TOKEN_REPLACE_WITH_REAL_TOKEN"

// TokenTTL es la vida del developer token: 180 días exactos.
// Apple admite hasta 6 meses; exp = iat + TokenTTL siempre.
const TokenTTL = 180 * 24 * time.Hour

// maxKeyFileSize acota la lectura del .p8 en disco. Una clave P-256 PEM pesa
// menos de 1 KiB; 64 KiB deja margen de sobra.
const maxKeyFileSize = 64 * 1024

// Issuer firma developer tokens ES256 para MusicKit.
// Now es inyectable para tests deterministas; nil usa time.Now.
type Issuer struct {
	Now func() time.Time
}

// Placeholder devuelve el token de demostración. Pura, siempre igual.
func (Issuer) Placeholder() string { return DemoToken }

// Sign emite un JWT compacto (header.payload.signature) firmado con la clave
// de la credencial. Claims: iss = TeamID, iat = ahora, exp = iat + 180 días.
// Header: alg ES256, kid = KeyID.
func (i Issuer) Sign(cred Credential) (string, error) {
	keyPEM, err := keyBytes(cred)
	if err != nil {
		return "", err
	}
	priv, err := parsePrivateKey(keyPEM)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	if i.Now != nil {
		now = i.Now().UTC()
	}
	claims := jwtv5.MapClaims{
		"iss": cred.TeamID,
		"iat": now.Unix(),
		"exp": now.Add(TokenTTL).Unix(),
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodES256, claims)
	tk.Header["kid"] = cred.KeyID
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(priv)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncodingFailed, err)
	}
	return signed, nil
}

// keyBytes devuelve el PEM de la clave: inline tal cual, o leyendo la ruta
// con tope de tamaño. Cualquier problema de disco es ErrKeyUnreadable.
func keyBytes(cred Credential) ([]byte, error) {
	if cred.PrivateKeyPEM != "" {
		return []byte(cred.PrivateKeyPEM), nil
	}
	f, err := os.Open(cred.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrKeyUnreadable, cred.PrivateKeyPath, err)
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, maxKeyFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrKeyUnreadable, cred.PrivateKeyPath, err)
	}
	if len(b) > maxKeyFileSize {
		return nil, fmt.Errorf("%w: %s: exceeds %d bytes", ErrKeyUnreadable, cred.PrivateKeyPath, maxKeyFileSize)
	}
	return b, nil
}

// parsePrivateKey acepta PEM SEC1 o PKCS#8 y exige curva P-256 (lo único
// válido para ES256).
func parsePrivateKey(pemBytes []byte) (*ecdsa.PrivateKey, error) {
	priv, err := jwtv5.ParseECPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if priv.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: curve %s, want P-256", ErrInvalidKey, priv.Curve.Params().Name)
	}
	return priv, nil
}
