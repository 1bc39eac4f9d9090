package crypto

import (
	"crypto/cipher"
	"errors"
	"strconv"
)

// Rijndael with a variable block size. AES is the 16-byte block subset;
// containers use the 32-byte block with a 32-byte key.

var (
	sbox    [256]byte
	invSbox [256]byte
	rcon    [30]byte

	// products used by InvMixColumns
	mul9, mul11, mul13, mul14 [256]byte
)

func init() {
	// Log/antilog tables over GF(2^8) with generator 3
	var exp, log [256]byte
	p := byte(1)
	for i := 0; i < 255; i++ {
		exp[i] = p
		log[p] = byte(i)
		p ^= xtime(p)
	}

	for i := 0; i < 256; i++ {
		var inv byte
		if i != 0 {
			inv = exp[(255-int(log[i]))%255]
		}
		s := inv ^ rotl8(inv, 1) ^ rotl8(inv, 2) ^ rotl8(inv, 3) ^ rotl8(inv, 4) ^ 0x63
		sbox[i] = s
		invSbox[s] = byte(i)
	}

	for i := 0; i < 256; i++ {
		b := byte(i)
		mul9[i] = gmul(b, 0x09)
		mul11[i] = gmul(b, 0x0b)
		mul13[i] = gmul(b, 0x0d)
		mul14[i] = gmul(b, 0x0e)
	}

	r := byte(1)
	for i := 1; i < len(rcon); i++ {
		rcon[i] = r
		r = xtime(r)
	}
}

func xtime(b byte) byte {
	if b&0x80 != 0 {
		return b<<1 ^ 0x1b
	}
	return b << 1
}

func rotl8(b byte, n uint) byte {
	return b<<n | b>>(8-n)
}

func gmul(a, b byte) byte {
	var p byte
	for b != 0 {
		if b&1 != 0 {
			p ^= a
		}
		a = xtime(a)
		b >>= 1
	}
	return p
}

// KeySizeError is returned for key lengths other than 16, 24 or 32 bytes.
type KeySizeError int

func (k KeySizeError) Error() string {
	return "crypto: invalid Rijndael key size " + strconv.Itoa(int(k))
}

// ErrBlockSize is returned for block lengths other than 16, 24 or 32 bytes.
var ErrBlockSize = errors.New("crypto: Rijndael block size must be 16, 24 or 32 bytes")

type rijndael struct {
	nb     int    // columns per block
	nr     int    // rounds
	shifts [4]int // row offsets for ShiftRows
	rk     []byte // expanded key, column major, 4*nb bytes per round
}

// NewRijndael returns a cipher.Block for the given key and block size.
func NewRijndael(key []byte, blockSize int) (cipher.Block, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, KeySizeError(len(key))
	}

	r := &rijndael{nb: blockSize / 4}
	switch blockSize {
	case 16, 24:
		r.shifts = [4]int{0, 1, 2, 3}
	case 32:
		r.shifts = [4]int{0, 1, 3, 4}
	default:
		return nil, ErrBlockSize
	}

	nk := len(key) / 4
	r.nr = max(nk, r.nb) + 6
	r.expandKey(key, nk)
	return r, nil
}

func (r *rijndael) BlockSize() int { return 4 * r.nb }

func (r *rijndael) expandKey(key []byte, nk int) {
	words := r.nb * (r.nr + 1)
	r.rk = make([]byte, 4*words)
	copy(r.rk, key)

	var temp [4]byte
	for i := nk; i < words; i++ {
		copy(temp[:], r.rk[4*(i-1):4*i])
		if i%nk == 0 {
			temp[0], temp[1], temp[2], temp[3] = temp[1], temp[2], temp[3], temp[0]
			for j := range temp {
				temp[j] = sbox[temp[j]]
			}
			temp[0] ^= rcon[i/nk]
		} else if nk > 6 && i%nk == 4 {
			for j := range temp {
				temp[j] = sbox[temp[j]]
			}
		}
		for j := 0; j < 4; j++ {
			r.rk[4*i+j] = r.rk[4*(i-nk)+j] ^ temp[j]
		}
	}
}

func (r *rijndael) addRoundKey(s []byte, round int) {
	k := r.rk[round*4*r.nb : (round+1)*4*r.nb]
	for i := range s {
		s[i] ^= k[i]
	}
}

func (r *rijndael) shiftRows(s, tmp []byte) {
	copy(tmp, s)
	for row := 1; row < 4; row++ {
		for c := 0; c < r.nb; c++ {
			s[4*c+row] = tmp[4*((c+r.shifts[row])%r.nb)+row]
		}
	}
}

func (r *rijndael) invShiftRows(s, tmp []byte) {
	copy(tmp, s)
	for row := 1; row < 4; row++ {
		for c := 0; c < r.nb; c++ {
			s[4*((c+r.shifts[row])%r.nb)+row] = tmp[4*c+row]
		}
	}
}

func mixColumns(s []byte) {
	for c := 0; c < len(s); c += 4 {
		a0, a1, a2, a3 := s[c], s[c+1], s[c+2], s[c+3]
		s[c] = xtime(a0) ^ (xtime(a1) ^ a1) ^ a2 ^ a3
		s[c+1] = a0 ^ xtime(a1) ^ (xtime(a2) ^ a2) ^ a3
		s[c+2] = a0 ^ a1 ^ xtime(a2) ^ (xtime(a3) ^ a3)
		s[c+3] = (xtime(a0) ^ a0) ^ a1 ^ a2 ^ xtime(a3)
	}
}

func invMixColumns(s []byte) {
	for c := 0; c < len(s); c += 4 {
		a0, a1, a2, a3 := s[c], s[c+1], s[c+2], s[c+3]
		s[c] = mul14[a0] ^ mul11[a1] ^ mul13[a2] ^ mul9[a3]
		s[c+1] = mul9[a0] ^ mul14[a1] ^ mul11[a2] ^ mul13[a3]
		s[c+2] = mul13[a0] ^ mul9[a1] ^ mul14[a2] ^ mul11[a3]
		s[c+3] = mul11[a0] ^ mul13[a1] ^ mul9[a2] ^ mul14[a3]
	}
}

func (r *rijndael) Encrypt(dst, src []byte) {
	bs := r.BlockSize()
	if len(src) < bs || len(dst) < bs {
		panic("crypto: input not full block")
	}
	var buf, tmp [32]byte
	s, t := buf[:bs], tmp[:bs]
	copy(s, src)

	r.addRoundKey(s, 0)
	for round := 1; round < r.nr; round++ {
		for i := range s {
			s[i] = sbox[s[i]]
		}
		r.shiftRows(s, t)
		mixColumns(s)
		r.addRoundKey(s, round)
	}
	for i := range s {
		s[i] = sbox[s[i]]
	}
	r.shiftRows(s, t)
	r.addRoundKey(s, r.nr)

	copy(dst, s)
}

func (r *rijndael) Decrypt(dst, src []byte) {
	bs := r.BlockSize()
	if len(src) < bs || len(dst) < bs {
		panic("crypto: input not full block")
	}
	var buf, tmp [32]byte
	s, t := buf[:bs], tmp[:bs]
	copy(s, src)

	r.addRoundKey(s, r.nr)
	for round := r.nr - 1; round > 0; round-- {
		r.invShiftRows(s, t)
		for i := range s {
			s[i] = invSbox[s[i]]
		}
		r.addRoundKey(s, round)
		invMixColumns(s)
	}
	r.invShiftRows(s, t)
	for i := range s {
		s[i] = invSbox[s[i]]
	}
	r.addRoundKey(s, 0)

	copy(dst, s)
}
