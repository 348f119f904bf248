package musickit

import (
	"errors"
	"fmt"
)

// Errores del pipeline de firma. Se mantienen tipados (errors.Is/As funciona
// a través de cualquier wrap); recién en el borde HTTP/CLI se convierten a
// string o a código estable.
var (
	// ErrKeyUnreadable: la ruta del .p8 no existe, no se puede leer o excede
	// el tope de tamaño.
	ErrKeyUnreadable = errors.New("musickit: private key unreadable")

	// ErrInvalidKey: el PEM no parsea o la clave no es EC P-256.
	ErrInvalidKey = errors.New("musickit: invalid private key")

	// ErrEncodingFailed: falló la firma o la serialización del JWT.
	ErrEncodingFailed = errors.New("musickit: token encoding failed")
)

// ConfigError señala una variable de entorno requerida ausente o vacía.
// Field lleva el nombre exacto de la variable (o la alternativa "A or B"
// cuando falta la fuente de clave).
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("musickit: missing configuration: %s", e.Field)
}

// IsConfigError es un helper de conveniencia para los bordes.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ErrorCode mapea un error del pipeline a un código estable, compartido por
// logs, métricas y el cuerpo de error HTTP.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case IsConfigError(err):
		return "config_missing"
	case errors.Is(err, ErrKeyUnreadable):
		return "key_unreadable"
	case errors.Is(err, ErrInvalidKey):
		return "invalid_key"
	case errors.Is(err, ErrEncodingFailed):
		return "encoding_failed"
	default:
		return "internal"
	}
}
