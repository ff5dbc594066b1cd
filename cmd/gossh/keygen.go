package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"math/big"
	"os"

	"github.com/spf13/cobra"

	"github.com/postalsys/gossh/bigint"
	"github.com/postalsys/gossh/keys"
)

// keygenCmd generates a new key pair and writes it out in whichever
// registered format the caller names, mirroring muti-metroo's keygen
// subcommand but backed by keys.FormatPlugin instead of a fixed format.
func keygenCmd() *cobra.Command {
	var (
		algorithm string
		bits      int
		curve     string
		format    string
		out       string
		comment   string
		password  string
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "generate a new key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := generateKeyPair(algorithm, bits, curve, comment)
			if err != nil {
				return err
			}

			var pw []byte
			if password != "" {
				pw = []byte(password)
			}
			data, err := keys.SaveKeyAs(format, kp, pw)
			if err != nil {
				return fmt.Errorf("gossh: saving key: %w", err)
			}
			if out == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			return os.WriteFile(out, data, 0600)
		},
	}
	cmd.Flags().StringVarP(&algorithm, "type", "t", "ed25519", "key algorithm: rsa, ec, ed25519")
	cmd.Flags().IntVarP(&bits, "bits", "b", 3072, "RSA modulus size in bits")
	cmd.Flags().StringVar(&curve, "curve", "nistp256", "EC curve name (nistp256, nistp384, nistp521, secp256k1)")
	cmd.Flags().StringVarP(&format, "format", "f", "openssh-private", "output format (as registered with keys.RegisterFormat)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&comment, "comment", "C", "", "key comment")
	cmd.Flags().StringVar(&password, "password", "", "encrypt the private key with this passphrase")
	cmd.GroupID = "keys"
	return cmd
}

func generateKeyPair(algorithm string, bits int, curve, comment string) (*keys.KeyPair, error) {
	switch algorithm {
	case "rsa":
		priv, err := rsa.GenerateKey(rand.Reader, bits)
		if err != nil {
			return nil, fmt.Errorf("gossh: generating rsa key: %w", err)
		}
		k := keys.NewRSAPrivateKeyFromCRT(
			bigint.FromBig(priv.N),
			bigint.FromBig(big.NewInt(int64(priv.E))),
			bigint.FromBig(priv.D),
			bigint.FromBig(priv.Primes[0]),
			bigint.FromBig(priv.Primes[1]),
		)
		return &keys.KeyPair{Algorithm: keys.RSA, Public: k.Public(), Private: k, Comment: comment}, nil

	case "ec":
		name := keys.CurveName(curve)
		priv, pub, err := keys.GenerateECKey(name)
		if err != nil {
			return nil, fmt.Errorf("gossh: generating ec key: %w", err)
		}
		return &keys.KeyPair{Algorithm: keys.EC, Public: pub, Private: priv, Comment: comment}, nil

	case "ed25519":
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("gossh: generating ed25519 key: %w", err)
		}
		privKey := &keys.Ed25519PrivateKey{Raw: []byte(priv)}
		pubKey := &keys.Ed25519PublicKey{Raw: []byte(pub)}
		return &keys.KeyPair{Algorithm: keys.Ed25519, Public: pubKey, Private: privKey, Comment: comment}, nil

	default:
		return nil, fmt.Errorf("gossh: unsupported key type %q", algorithm)
	}
}
