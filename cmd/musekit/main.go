package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/musekit/internal/musickit"
	"github.com/dropDatabas3/musekit/internal/security/adminkey"
)

func main() {
	out := envOr("MUSEKIT_OUT", "text")

	root := &cobra.Command{
		Use:   "musekit",
		Short: "CLI de developer tokens de Apple MusicKit",
	}
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	// mint: emite un token con las credenciales del entorno (o flags)
	var mintTeamID, mintKeyID, mintKeyPath string
	mintCmd := &cobra.Command{
		Use:   "mint",
		Short: "Emite un developer token (env APPLE_* o flags)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, err := credFromFlagsOrEnv(mintTeamID, mintKeyID, mintKeyPath)
			if err != nil {
				return err
			}
			tok, err := (musickit.Issuer{}).Sign(cred)
			if err != nil {
				return err
			}
			if out == "json" {
				printJSON(map[string]any{
					"token":   tok,
					"team_id": cred.TeamID,
					"key_id":  cred.KeyID,
				})
				return nil
			}
			fmt.Println(tok)
			return nil
		},
	}
	mintCmd.Flags().StringVar(&mintTeamID, "team-id", "", "Team ID (default: $APPLE_TEAM_ID)")
	mintCmd.Flags().StringVar(&mintKeyID, "key-id", "", "Key ID (default: $APPLE_KEY_ID)")
	mintCmd.Flags().StringVar(&mintKeyPath, "key-path", "", "Ruta a la clave .p8 (default: $APPLE_PRIVATE_KEY_PATH)")

	// inspect: decodifica sin verificar
	inspectCmd := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Decodifica header y claims de un token (sin verificar firma)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, _, err := jwtv5.NewParser().ParseUnverified(args[0], jwtv5.MapClaims{})
			if err != nil {
				return err
			}
			claims, _ := parsed.Claims.(jwtv5.MapClaims)
			if out == "json" {
				printJSON(map[string]any{"header": parsed.Header, "claims": claims})
				return nil
			}
			fmt.Printf("alg=%v kid=%v\n", parsed.Header["alg"], parsed.Header["kid"])
			fmt.Printf("iss=%v\n", claims["iss"])
			if iat, ok := claims["iat"].(float64); ok {
				fmt.Printf("iat=%s\n", time.Unix(int64(iat), 0).UTC().Format(time.RFC3339))
			}
			if exp, ok := claims["exp"].(float64); ok {
				expT := time.Unix(int64(exp), 0).UTC()
				fmt.Printf("exp=%s (en %s)\n", expT.Format(time.RFC3339), time.Until(expT).Round(time.Hour))
			}
			return nil
		},
	}

	// check: resuelve y firma un token descartable; con un token como
	// argumento, además verifica su firma contra la clave configurada
	checkCmd := &cobra.Command{
		Use:   "check [token]",
		Short: "Verifica credenciales del entorno; con un token, verifica también su firma",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, err := (musickit.Resolver{}).Resolve()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return verifyAgainstCred(cred, args[0], out)
			}
			if _, err := (musickit.Issuer{}).Sign(cred); err != nil {
				return err
			}
			if out == "json" {
				printJSON(map[string]any{
					"ok":         true,
					"team_id":    cred.TeamID,
					"key_id":     cred.KeyID,
					"key_source": cred.Source(),
				})
				return nil
			}
			fmt.Printf("ok team_id=%s key_id=%s key_source=%s\n", cred.TeamID, cred.KeyID, cred.Source())
			return nil
		},
	}

	// keygen: clave P-256 PKCS#8 para desarrollo
	var keygenFile string
	keygenCmd := &cobra.Command{
		Use:   "keygen",
		Short: "Genera una clave privada P-256 en PKCS#8 (solo desarrollo)",
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
			if err != nil {
				return err
			}
			der, err := x509.MarshalPKCS8PrivateKey(priv)
			if err != nil {
				return err
			}
			block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
			if keygenFile == "" {
				return pem.Encode(os.Stdout, block)
			}
			if err := os.WriteFile(keygenFile, pem.EncodeToMemory(block), 0o600); err != nil {
				return err
			}
			fmt.Printf("clave escrita en %s\n", keygenFile)
			return nil
		},
	}
	keygenCmd.Flags().StringVar(&keygenFile, "file", "", "Archivo destino (default: stdout)")

	// hash-key: PHC argon2id para REFRESH_KEY_HASH
	var hashPlain string
	hashKeyCmd := &cobra.Command{
		Use:   "hash-key",
		Short: "Genera el hash argon2id para REFRESH_KEY_HASH",
		RunE: func(cmd *cobra.Command, args []string) error {
			if hashPlain == "" {
				return fmt.Errorf("--key es requerido")
			}
			phc, err := adminkey.Hash(adminkey.Default, hashPlain)
			if err != nil {
				return err
			}
			fmt.Println(phc)
			return nil
		},
	}
	hashKeyCmd.Flags().StringVar(&hashPlain, "key", "", "Clave en texto plano a hashear")

	root.AddCommand(mintCmd)
	root.AddCommand(inspectCmd)
	root.AddCommand(checkCmd)
	root.AddCommand(keygenCmd)
	root.AddCommand(hashKeyCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// verifyAgainstCred verifica la firma de un token con la mitad pública de la
// clave configurada y exige que kid e iss coincidan con la credencial.
func verifyAgainstCred(cred musickit.Credential, token, out string) error {
	pemBytes := []byte(cred.PrivateKeyPEM)
	if cred.PrivateKeyPEM == "" {
		b, err := os.ReadFile(cred.PrivateKeyPath)
		if err != nil {
			return err
		}
		pemBytes = b
	}
	priv, err := jwtv5.ParseECPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return err
	}

	parsed, err := jwtv5.Parse(token, func(*jwtv5.Token) (any, error) {
		return &priv.PublicKey, nil
	}, jwtv5.WithValidMethods([]string{"ES256"}))
	if err != nil {
		return fmt.Errorf("firma inválida: %w", err)
	}

	claims, _ := parsed.Claims.(jwtv5.MapClaims)
	kid, _ := parsed.Header["kid"].(string)
	iss, _ := claims["iss"].(string)
	if kid != cred.KeyID {
		return fmt.Errorf("kid %q no coincide con $APPLE_KEY_ID (%s)", kid, cred.KeyID)
	}
	if iss != cred.TeamID {
		return fmt.Errorf("iss %q no coincide con $APPLE_TEAM_ID (%s)", iss, cred.TeamID)
	}

	var expT time.Time
	if exp, ok := claims["exp"].(float64); ok {
		expT = time.Unix(int64(exp), 0).UTC()
	}
	if out == "json" {
		printJSON(map[string]any{
			"valid": true,
			"kid":   kid,
			"iss":   iss,
			"exp":   expT.Format(time.RFC3339),
		})
		return nil
	}
	fmt.Printf("ok firma válida kid=%s iss=%s exp=%s\n", kid, iss, expT.Format(time.RFC3339))
	return nil
}

// credFromFlagsOrEnv arma la credencial con flags explícitos; lo que falte
// sale del entorno vía el resolver normal.
func credFromFlagsOrEnv(teamID, keyID, keyPath string) (musickit.Credential, error) {
	if teamID == "" && keyID == "" && keyPath == "" {
		return (musickit.Resolver{}).Resolve()
	}
	cred, err := (musickit.Resolver{}).Resolve()
	if err != nil {
		// sin entorno completo: los flags tienen que alcanzar solos
		cred = musickit.Credential{}
	}
	if teamID != "" {
		cred.TeamID = teamID
	}
	if keyID != "" {
		cred.KeyID = keyID
	}
	if keyPath != "" {
		cred.PrivateKeyPEM = ""
		cred.PrivateKeyPath = keyPath
	}
	if cred.TeamID == "" {
		return musickit.Credential{}, fmt.Errorf("--team-id o $APPLE_TEAM_ID es requerido")
	}
	if cred.KeyID == "" {
		return musickit.Credential{}, fmt.Errorf("--key-id o $APPLE_KEY_ID es requerido")
	}
	if cred.PrivateKeyPEM == "" && cred.PrivateKeyPath == "" {
		return musickit.Credential{}, fmt.Errorf("--key-path o $APPLE_PRIVATE_KEY[_PATH] es requerido")
	}
	return cred, nil
}

func printJSON(v any) {
	p, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(p))
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
