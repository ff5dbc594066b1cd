package x509go

import (
	"fmt"
	"strings"
	"time"
)

// ChainOptions configures validateSignature's walk per spec §4.4's chain
// validation rule, including the interoperability escape hatches it
// names (ignoreKeyUsage, ignoreBasicConstraints, looseDNComparison).
type ChainOptions struct {
	AllowSelfSigned       bool
	RecurLimit            int // default 10 if zero
	IgnoreKeyUsage        bool
	IgnoreBasicConstraints bool
	At                    time.Time // validation instant; zero means time.Now()
}

// ErrChainTooLong is returned when the issuer walk exceeds RecurLimit
// without reaching a self-signed root.
var ErrChainTooLong = fmt.Errorf("x509go: certificate chain exceeds recursion limit")

// ValidateChain walks leaf up through issuers (in the order given,
// leaf-first) per spec §4.4's validateSignature: DN equality, key usage,
// basicConstraints.cA, validity window, and AuthorityKeyIdentifier /
// SubjectKeyIdentifier matching at each hop.
func ValidateChain(leaf *Certificate, issuers []*Certificate, opts ChainOptions) error {
	if opts.RecurLimit == 0 {
		opts.RecurLimit = 10
	}
	at := opts.At
	if at.IsZero() {
		at = time.Now()
	}

	cur := leaf
	seen := map[*Certificate]bool{}
	for hop := 0; ; hop++ {
		if hop > opts.RecurLimit {
			return ErrChainTooLong
		}
		if err := checkValidity(cur, at); err != nil {
			return fmt.Errorf("hop %d: %w", hop, err)
		}

		if cur.Issuer.Equal(cur.Subject) {
			if hop == 0 && !opts.AllowSelfSigned {
				return fmt.Errorf("hop 0: leaf is self-signed but AllowSelfSigned is false")
			}
			if err := cur.VerifySelfSigned(); err != nil {
				return fmt.Errorf("hop %d: self-signature: %w", hop, err)
			}
			return nil
		}

		issuer := findIssuer(cur, issuers, seen)
		if issuer == nil {
			return fmt.Errorf("hop %d: no issuer found for %q", hop, cur.Issuer.String())
		}
		seen[issuer] = true

		if err := cur.VerifySignedBy(issuer); err != nil {
			return fmt.Errorf("hop %d: %w", hop, err)
		}

		if !opts.IgnoreBasicConstraints {
			bc, ok, err := issuer.BasicConstraints()
			if err != nil {
				return fmt.Errorf("hop %d: %w", hop, err)
			}
			if !ok || !bc.IsCA {
				return fmt.Errorf("hop %d: issuer %q is not a CA", hop, issuer.Subject.String())
			}
		}

		if !opts.IgnoreKeyUsage {
			ku, ok, err := issuer.KeyUsage()
			if err != nil {
				return fmt.Errorf("hop %d: %w", hop, err)
			}
			if ok && !ku.Has(KeyUsageKeyCertSign) {
				return fmt.Errorf("hop %d: issuer %q keyUsage does not permit signing", hop, issuer.Subject.String())
			}
		}

		if err := checkAuthorityKeyID(cur, issuer); err != nil {
			return fmt.Errorf("hop %d: %w", hop, err)
		}

		if err := checkNameConstraints(leaf, issuer); err != nil {
			return fmt.Errorf("hop %d: %w", hop, err)
		}

		cur = issuer
	}
}

func checkValidity(cert *Certificate, at time.Time) error {
	if at.Before(cert.NotBefore) || at.After(cert.NotAfter) {
		return fmt.Errorf("certificate %q not valid at %s (window %s .. %s)",
			cert.Subject.String(), at.Format(time.RFC3339), cert.NotBefore.Format(time.RFC3339), cert.NotAfter.Format(time.RFC3339))
	}
	return nil
}

func findIssuer(cert *Certificate, candidates []*Certificate, seen map[*Certificate]bool) *Certificate {
	for _, c := range candidates {
		if seen[c] || c == cert {
			continue
		}
		if c.Subject.Equal(cert.Issuer) {
			return c
		}
	}
	return nil
}

func checkAuthorityKeyID(cert, issuer *Certificate) error {
	akid, err := cert.AuthorityKeyID()
	if err != nil || akid == nil {
		return nil
	}
	skid, err := issuer.SubjectKeyID()
	if err != nil || skid == nil {
		return nil
	}
	if string(akid) != string(skid) {
		return fmt.Errorf("AuthorityKeyIdentifier does not match issuer's SubjectKeyIdentifier")
	}
	return nil
}

// checkNameConstraints applies issuer's NameConstraints extension, if
// present, against leaf's SubjectAltName DNS entries per spec §4.4.
func checkNameConstraints(leaf, issuer *Certificate) error {
	nc, err := issuer.NameConstraints()
	if err != nil || nc == nil {
		return nil
	}
	sans, err := leaf.SubjectAltNames()
	if err != nil {
		return err
	}
	for _, san := range sans {
		if san.Type != gnDNSName {
			continue
		}
		if len(nc.Excluded) > 0 {
			for _, ex := range nc.Excluded {
				if ex.Base.Type == gnDNSName && matchesDNSConstraint(ex.Base.Value, san.Value) {
					return fmt.Errorf("SubjectAltName %q matches excluded NameConstraints subtree %q", san.Value, ex.Base.Value)
				}
			}
		}
		if len(nc.Permitted) > 0 {
			ok := false
			for _, p := range nc.Permitted {
				if p.Base.Type == gnDNSName && matchesDNSConstraint(p.Base.Value, san.Value) {
					ok = true
					break
				}
			}
			if !ok {
				return fmt.Errorf("SubjectAltName %q matches no permitted NameConstraints subtree", san.Value)
			}
		}
	}
	return nil
}

// ValidateURL matches url's host against leaf's SubjectAltName DNS
// entries, per spec §4.4: wildcard only in the leftmost label, matching
// exactly one label.
func ValidateURL(leaf *Certificate, host string) error {
	sans, err := leaf.SubjectAltNames()
	if err != nil {
		return err
	}
	host = strings.ToLower(host)
	for _, san := range sans {
		if san.Type != gnDNSName {
			continue
		}
		if matchesHostPattern(strings.ToLower(san.Value), host) {
			return nil
		}
	}
	return fmt.Errorf("x509go: host %q matches no SubjectAltName DNS entry", host)
}

func matchesHostPattern(pattern, host string) bool {
	if pattern == host {
		return true
	}
	if !strings.HasPrefix(pattern, "*.") {
		return false
	}
	suffix := pattern[1:] // ".example.com"
	if !strings.HasSuffix(host, suffix) {
		return false
	}
	// The wildcard must replace exactly one label: the remaining host
	// prefix (before suffix) must not itself contain a dot.
	prefix := host[:len(host)-len(suffix)]
	return prefix != "" && !strings.Contains(prefix, ".")
}
