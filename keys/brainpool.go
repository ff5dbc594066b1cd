package keys

import (
	"crypto/elliptic"
	"math/big"
)

// weierstrassCurve is a general short-Weierstrass curve y^2 = x^3 + A*x + B
// over a prime field, implementing elliptic.Curve directly. Unlike
// elliptic.CurveParams (which hardcodes A = -3 in its Add/Double formulas,
// correct for the NIST curves but wrong for brainpool's arbitrary A), this
// type carries A explicitly and uses the general point-addition formulas —
// needed because the brainpool curves (RFC 5639) were deliberately
// generated with a non-(-3) A to avoid sharing NIST's curve structure.
type weierstrassCurve struct {
	p, a, b, gx, gy, n *big.Int
	bitSize            int
	name               string
}

func (c *weierstrassCurve) Params() *elliptic.CurveParams {
	return &elliptic.CurveParams{
		P: c.p, N: c.n, B: c.b, Gx: c.gx, Gy: c.gy,
		BitSize: c.bitSize, Name: c.name,
	}
}

func (c *weierstrassCurve) isInfinity(x, y *big.Int) bool {
	return x.Sign() == 0 && y.Sign() == 0
}

func (c *weierstrassCurve) IsOnCurve(x, y *big.Int) bool {
	if c.isInfinity(x, y) {
		return false
	}
	lhs := new(big.Int).Mul(y, y)
	lhs.Mod(lhs, c.p)

	rhs := new(big.Int).Mul(x, x)
	rhs.Mul(rhs, x)
	ax := new(big.Int).Mul(c.a, x)
	rhs.Add(rhs, ax)
	rhs.Add(rhs, c.b)
	rhs.Mod(rhs, c.p)

	return lhs.Cmp(rhs) == 0
}

func (c *weierstrassCurve) Add(x1, y1, x2, y2 *big.Int) (*big.Int, *big.Int) {
	if c.isInfinity(x1, y1) {
		return new(big.Int).Set(x2), new(big.Int).Set(y2)
	}
	if c.isInfinity(x2, y2) {
		return new(big.Int).Set(x1), new(big.Int).Set(y1)
	}
	if x1.Cmp(x2) == 0 {
		sum := new(big.Int).Add(y1, y2)
		sum.Mod(sum, c.p)
		if sum.Sign() == 0 {
			return big.NewInt(0), big.NewInt(0)
		}
		return c.Double(x1, y1)
	}

	dx := new(big.Int).Sub(x2, x1)
	dx.Mod(dx, c.p)
	dy := new(big.Int).Sub(y2, y1)
	dy.Mod(dy, c.p)

	lambda := new(big.Int).ModInverse(dx, c.p)
	lambda.Mul(lambda, dy)
	lambda.Mod(lambda, c.p)

	x3 := new(big.Int).Mul(lambda, lambda)
	x3.Sub(x3, x1)
	x3.Sub(x3, x2)
	x3.Mod(x3, c.p)

	y3 := new(big.Int).Sub(x1, x3)
	y3.Mul(y3, lambda)
	y3.Sub(y3, y1)
	y3.Mod(y3, c.p)

	return x3, y3
}

func (c *weierstrassCurve) Double(x1, y1 *big.Int) (*big.Int, *big.Int) {
	if c.isInfinity(x1, y1) || y1.Sign() == 0 {
		return big.NewInt(0), big.NewInt(0)
	}

	num := new(big.Int).Mul(x1, x1)
	num.Mul(num, big.NewInt(3))
	num.Add(num, c.a)
	num.Mod(num, c.p)

	den := new(big.Int).Lsh(y1, 1)
	den.Mod(den, c.p)
	denInv := new(big.Int).ModInverse(den, c.p)

	lambda := new(big.Int).Mul(num, denInv)
	lambda.Mod(lambda, c.p)

	x3 := new(big.Int).Mul(lambda, lambda)
	x3.Sub(x3, new(big.Int).Lsh(x1, 1))
	x3.Mod(x3, c.p)

	y3 := new(big.Int).Sub(x1, x3)
	y3.Mul(y3, lambda)
	y3.Sub(y3, y1)
	y3.Mod(y3, c.p)

	return x3, y3
}

func (c *weierstrassCurve) ScalarMult(x1, y1 *big.Int, k []byte) (*big.Int, *big.Int) {
	rx, ry := big.NewInt(0), big.NewInt(0)
	qx, qy := new(big.Int).Set(x1), new(big.Int).Set(y1)

	scalar := new(big.Int).SetBytes(k)
	for i := 0; i < scalar.BitLen(); i++ {
		if scalar.Bit(i) == 1 {
			rx, ry = c.Add(rx, ry, qx, qy)
		}
		qx, qy = c.Double(qx, qy)
	}
	return rx, ry
}

func (c *weierstrassCurve) ScalarBaseMult(k []byte) (*big.Int, *big.Int) {
	return c.ScalarMult(c.gx, c.gy, k)
}

func hexParam(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("keys: malformed curve parameter literal")
	}
	return v
}

// brainpoolP256r1 is RFC 5639 §3.4's curve.
func brainpoolP256r1() (elliptic.Curve, error) {
	return &weierstrassCurve{
		name:    "brainpoolP256r1",
		bitSize: 256,
		p:       hexParam("A9FB57DBA1EEA9BC3E660A909D838D726E3BF623D52620282013481D1F6E5377"),
		a:       hexParam("7D5A0975FC2C3057EEF67530417AFFE7FB8055C126DC5C6CE94A4B44F330B5D9"),
		b:       hexParam("26DC5C6CE94A4B44F330B5D9BBD77CBF958416295CF7E1CE6BCCDC18FF8C07B6"),
		n:       hexParam("A9FB57DBA1EEA9BC3E660A909D838D718C397AA3B561A6F7901E0E82974856A7"),
		gx:      hexParam("8BD2AEB9CB7E57CB2C4B482FFC81B7AFB9DE27E1E3BD23C23A4453BD9ACE3262"),
		gy:      hexParam("547EF835C3DAC4FD97F8461A14611DC9C27745132DED8E545C1D54C72F046997"),
	}, nil
}

// brainpoolP384r1 is RFC 5639 §3.6's curve.
func brainpoolP384r1() (elliptic.Curve, error) {
	return &weierstrassCurve{
		name:    "brainpoolP384r1",
		bitSize: 384,
		p:       hexParam("8CB91E82A3386D280F5D6F7E50E641DF152F7109ED5456B412B1DA197FB71123ACD3A729901D1A71874700133107EC53"),
		a:       hexParam("7BC382C63D8C150C3C72080ACE05AFA0C2BEA28E4FB22787139165EFBA91F90F8AA5814A503AD4EB04A8C7DD22CE2826"),
		b:       hexParam("04A8C7DD22CE28268B39B55416F0447C2FB77DE107DCD2A62E880EA53EEB62D57CB4390295DBC9943AB78696FA504C11"),
		n:       hexParam("8CB91E82A3386D280F5D6F7E50E641DF152F7109ED5456B31F166E6CAC0425A7CF3AB6AF6B7FC3103B883202E9046565"),
		gx:      hexParam("1D1C64F068CF45FFA2A63A81B7C13F6B8847A3E77EF14FE3DB7FCAFE0CBD10E8E826E03436D646AAEF87B2E247D4AF1E"),
		gy:      hexParam("8ABE1D7520F9C2A45CB1EB8E95CFD55262B70B29FEEC5864E19C054FF99129280E4646217791811142820341263C5315"),
	}, nil
}

// brainpoolP512r1 is RFC 5639 §3.7's curve.
func brainpoolP512r1() (elliptic.Curve, error) {
	return &weierstrassCurve{
		name:    "brainpoolP512r1",
		bitSize: 512,
		p:       hexParam("AADD9DB8DBE9C48B3FD4E6AE33C9FC07CB308DB3B3C9D20ED6639CCA703308717D4D9B009BC66842AECDA12AE6A380E62881FF2F2D82C68528AA6056583A48F3"),
		a:       hexParam("7830A3318B603B89E2327145AC234CC594CBDD8D3DF91610A83441CAEA9863BC2DED5D5AA8253AA10A2EF1C98B9AC8B57F1117A72BF2C7B9E7C1AC4D77FC94CA"),
		b:       hexParam("3DF91610A83441CAEA9863BC2DED5D5AA8253AA10A2EF1C98B9AC8B57F1117A72BF2C7B9E7C1AC4D77FC94CADC083E67984050B75EBAE5DD2809BD638016F723"),
		n:       hexParam("AADD9DB8DBE9C48B3FD4E6AE33C9FC07CB308DB3B3C9D20ED6639CCA70330870553E5C414CA92619418661197FAC10471DB1D381085DDADDB58796829CA90069"),
		gx:      hexParam("81AEE4BDD82ED9645A21322E9C4C6A9385ED9F70B5D916C1B43B62EEF4D0098EFF3B1F78E2D0D48D50D1687B93B97D5F7C6D5047406A5E688B352209BCB9F822"),
		gy:      hexParam("7DDE385D566332ECC0EABFA9CF7822FDF209F70024A57B1AA000C55B881F8111B2DCDE494A5F485E5BCA4BD88A2763AED1CA2B2FA8F0540678CD1E0F3AD80892"),
	}, nil
}
