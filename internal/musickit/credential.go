package musickit

import (
	"os"
	"strings"
)

// Variables de entorno que alimentan al resolver.
const (
	EnvTeamID         = "APPLE_TEAM_ID"
	EnvKeyID          = "APPLE_KEY_ID"
	EnvPrivateKey     = "APPLE_PRIVATE_KEY"      // PEM inline (prioridad)
	EnvPrivateKeyPath = "APPLE_PRIVATE_KEY_PATH" // ruta a un .p8
)

// Credential reúne lo necesario para firmar un developer token.
// La clave viene inline (PEM literal) o por ruta de archivo; si ambas están
// presentes gana la inline y la ruta se ignora sin error.
type Credential struct {
	TeamID         string
	KeyID          string
	PrivateKeyPEM  string
	PrivateKeyPath string
}

// Source indica el origen efectivo de la clave: "inline" o "file".
// Útil para logs; nunca expone material de la clave.
func (c Credential) Source() string {
	if c.PrivateKeyPEM != "" {
		return "inline"
	}
	return "file"
}

// Resolver lee credenciales de Apple desde el entorno del proceso.
// Lee en cada llamada: un cambio de entorno se ve en el próximo Resolve,
// no hay snapshot escondido. No toca el filesystem (eso es del Issuer).
type Resolver struct{}

// Resolve valida y devuelve las credenciales actuales.
// Ante una variable requerida ausente o en blanco devuelve *ConfigError con
// el nombre de la variable. Exige al menos una fuente de clave.
func (Resolver) Resolve() (Credential, error) {
	teamID, ok := lookupEnv(EnvTeamID)
	if !ok {
		return Credential{}, &ConfigError{Field: EnvTeamID}
	}
	keyID, ok := lookupEnv(EnvKeyID)
	if !ok {
		return Credential{}, &ConfigError{Field: EnvKeyID}
	}
	inline, _ := lookupEnv(EnvPrivateKey)
	path, _ := lookupEnv(EnvPrivateKeyPath)
	if inline == "" && path == "" {
		return Credential{}, &ConfigError{Field: EnvPrivateKey + " or " + EnvPrivateKeyPath}
	}
	return Credential{
		TeamID:         teamID,
		KeyID:          keyID,
		PrivateKeyPEM:  inline,
		PrivateKeyPath: path,
	}, nil
}

// lookupEnv trimea espacios; un valor en blanco cuenta como ausente.
func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
