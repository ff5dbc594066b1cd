package bigint

import "math/big"

// PrimeField is GF(p) for a prime modulus p. Elements are reduced
// representatives in [0, p).
type PrimeField struct {
	P *BigInteger
}

// NewPrimeField constructs the field GF(p).
func NewPrimeField(p *BigInteger) *PrimeField { return &PrimeField{P: p} }

// Elem returns the reduced representative of x in this field.
func (f *PrimeField) Elem(x *BigInteger) *PrimeField1 {
	return &PrimeField1{f: f, v: x.Mod(f.P)}
}

// PrimeField1 is an element of a PrimeField.
type PrimeField1 struct {
	f *PrimeField
	v *BigInteger
}

// Value returns the element's reduced representative.
func (e *PrimeField1) Value() *BigInteger { return e.v }

// Add returns e + o mod p.
func (e *PrimeField1) Add(o *PrimeField1) *PrimeField1 { return e.f.Elem(e.v.Add(o.v)) }

// Sub returns e - o mod p.
func (e *PrimeField1) Sub(o *PrimeField1) *PrimeField1 { return e.f.Elem(e.v.Sub(o.v)) }

// Mul returns e * o mod p.
func (e *PrimeField1) Mul(o *PrimeField1) *PrimeField1 { return e.f.Elem(e.v.Mul(o.v)) }

// Inv returns the multiplicative inverse of e, or nil if e is zero.
func (e *PrimeField1) Inv() *PrimeField1 {
	inv := e.v.ModInverse(e.f.P)
	if inv == nil {
		return nil
	}
	return &PrimeField1{f: e.f, v: inv}
}

// BinaryField is GF(2^m), represented as polynomials over GF(2) packed into
// the bits of a BigInteger, reduced modulo an irreducible polynomial
// (also given as a BigInteger bitmask, e.g. the NIST B/K curve reduction
// polynomials).
type BinaryField struct {
	M        int
	Reducer  *BigInteger // irreducible polynomial of degree M, without the x^M term
}

// NewBinaryField constructs GF(2^m) reduced by the given polynomial.
func NewBinaryField(m int, reducer *BigInteger) *BinaryField {
	return &BinaryField{M: m, Reducer: reducer}
}

// Elem wraps x (a bit-packed polynomial) as a field element, reducing it.
func (f *BinaryField) Elem(x *BigInteger) *BinaryField1 {
	return &BinaryField1{f: f, v: f.reduce(x)}
}

func (f *BinaryField) reduce(x *BigInteger) *BigInteger {
	v := new(big.Int).Set(x.Big())
	mod := new(big.Int).Lsh(big.NewInt(1), uint(f.M))
	red := f.Reducer.Big()
	for v.BitLen() > f.M {
		shift := v.BitLen() - f.M - 1
		term := new(big.Int).Lsh(red, uint(shift))
		term.SetBit(term, f.M+shift, 1)
		v.Xor(v, term)
	}
	_ = mod
	return FromBig(v)
}

// BinaryField1 is an element of a BinaryField (a reduced GF(2) polynomial).
type BinaryField1 struct {
	f *BinaryField
	v *BigInteger
}

// Value returns the element's bit-packed polynomial representation.
func (e *BinaryField1) Value() *BigInteger { return e.v }

// Add is polynomial addition over GF(2), i.e. XOR.
func (e *BinaryField1) Add(o *BinaryField1) *BinaryField1 {
	return &BinaryField1{f: e.f, v: FromBig(new(big.Int).Xor(e.v.Big(), o.v.Big()))}
}

// Mul is polynomial multiplication modulo the field's reduction polynomial
// (carry-less multiply then reduce).
func (e *BinaryField1) Mul(o *BinaryField1) *BinaryField1 {
	a, b := e.v.Big(), o.v.Big()
	result := new(big.Int)
	shifted := new(big.Int).Set(a)
	for i := 0; i < b.BitLen(); i++ {
		if b.Bit(i) == 1 {
			result.Xor(result, new(big.Int).Lsh(shifted, uint(i)))
		}
	}
	return e.f.Elem(FromBig(result))
}
