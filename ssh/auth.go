package ssh

import (
	"fmt"

	"github.com/postalsys/gossh/keys"
	"github.com/postalsys/gossh/wireutil"
)

// AuthMethod is one way of authenticating a user (spec §6's "Interfaces
// the core exposes": at minimum password and public-key auth), tried in
// the order passed to WithAuth.
type AuthMethod interface {
	name() string
	// request builds this method's method-specific fields for one
	// USERAUTH_REQUEST attempt. sessionID is needed by public-key auth to
	// sign the request per RFC 4252 §7.
	request(user string, sessionID []byte) ([]byte, error)
}

type passwordAuth struct {
	password string
}

// Password authenticates with a cleartext password (RFC 4252 §8).
func Password(password string) AuthMethod { return passwordAuth{password: password} }

func (passwordAuth) name() string { return "password" }

func (p passwordAuth) request(user string, sessionID []byte) ([]byte, error) {
	return wireutil.NewBuilder().WriteBool(false).WriteCString(p.password).Bytes(), nil
}

type publicKeyAuth struct {
	priv keys.PrivateKey
	alg  string
}

// PublicKey authenticates with a private key (RFC 4252 §7). alg selects
// the signature algorithm name advertised on the wire (e.g. "ssh-rsa",
// "rsa-sha2-256", "rsa-sha2-512", "ssh-ed25519", "ecdsa-sha2-nistp256",
// "ssh-dss"); pass "" to use the key algorithm's default.
func PublicKey(priv keys.PrivateKey, alg string) AuthMethod {
	if alg == "" {
		alg = defaultSigAlgFor(priv.Algorithm())
	}
	return publicKeyAuth{priv: priv, alg: alg}
}

func defaultSigAlgFor(alg keys.Algorithm) string {
	switch alg {
	case keys.RSA:
		return "rsa-sha2-256"
	case keys.DSA:
		return "ssh-dss"
	case keys.EC:
		return "ecdsa-sha2-nistp256"
	case keys.Ed25519:
		return "ssh-ed25519"
	case keys.Ed448:
		return "ssh-ed448"
	default:
		return ""
	}
}

func (publicKeyAuth) name() string { return "publickey" }

func (p publicKeyAuth) request(user string, sessionID []byte) ([]byte, error) {
	pubBlob := p.priv.Public().MarshalSSH2()

	toSign := wireutil.NewBuilder().
		WriteString(sessionID).
		WriteByte(MsgUserauthRequest).
		WriteCString(user).
		WriteCString("ssh-connection").
		WriteCString("publickey").
		WriteBool(true).
		WriteCString(p.alg).
		WriteString(pubBlob).
		Bytes()

	digest := toSign
	if newHash := sigHashFor(p.alg); newHash != nil {
		hf := newHash()
		hf.Write(toSign)
		digest = hf.Sum(nil)
	}

	sig, err := p.priv.Sign(digest)
	if err != nil {
		return nil, fmt.Errorf("ssh: signing publickey auth request: %w", err)
	}

	codec, ok := keys.SignatureCodecFor(keys.SigSSH2)
	if !ok {
		return nil, fmt.Errorf("ssh: no SSH2 signature codec registered")
	}
	sigBlob, err := codec.Encode(p.priv.Algorithm(), sig)
	if err != nil {
		return nil, fmt.Errorf("ssh: encoding publickey auth signature: %w", err)
	}

	return wireutil.NewBuilder().
		WriteBool(true).
		WriteCString(p.alg).
		WriteString(pubBlob).
		WriteString(sigBlob).
		Bytes(), nil
}

// authenticate runs RFC 4252's USERAUTH_REQUEST loop, trying each method
// in order. Per spec §4.1, a failed attempt (bad password, rejected key)
// is reported as an error but never corrupts the transport -- only a
// transport-level error (read/write failure, protocol violation) does.
func authenticate(t *transport, user string, methods []AuthMethod) error {
	if len(methods) == 0 {
		return fmt.Errorf("ssh: no authentication methods configured")
	}

	for i, m := range methods {
		fields, err := m.request(user, t.sessionID)
		if err != nil {
			return err
		}
		payload := wireutil.NewBuilder().
			WriteByte(MsgUserauthRequest).
			WriteCString(user).
			WriteCString("ssh-connection").
			WriteCString(m.name()).
			WriteRaw(fields).
			Bytes()
		if err := t.send(payload); err != nil {
			return err
		}

		reply, err := t.recv()
		if err != nil {
			return err
		}
		switch {
		case len(reply) == 0:
			return fmt.Errorf("ssh: empty userauth reply")
		case reply[0] == MsgUserauthSuccess:
			return nil
		case reply[0] == MsgUserauthFailure:
			if i == len(methods)-1 {
				return fmt.Errorf("ssh: authentication failed for user %q (tried %d method(s))", user, len(methods))
			}
			continue
		case reply[0] == MsgUserauthBanner:
			// Servers may send a banner before the real reply; read once
			// more for the actual failure/success.
			reply, err = t.recv()
			if err != nil {
				return err
			}
			if len(reply) > 0 && reply[0] == MsgUserauthSuccess {
				return nil
			}
			continue
		default:
			return fmt.Errorf("ssh: unexpected message type %d (%s) during authentication", reply[0], MsgName(reply[0]))
		}
	}
	return fmt.Errorf("ssh: authentication failed for user %q", user)
}
