// mt19937.go - Mersenne-Twister Kern fuer beide RNG-Varianten.
//
// Standard MT19937 (32 bit) wie von Matsumoto/Nishimura definiert. Both the
// numpy RandomState and the torch CPU generator sit on top of this exact
// state machine, so the uniform core is shared and only the normal
// transforms differ per variant.
package rng

const (
	mtN         = 624
	mtM         = 397
	mtMatrixA   = 0x9908b0df
	mtUpperMask = 0x80000000
	mtLowerMask = 0x7fffffff
)

type mt19937 struct {
	state [mtN]uint32
	index int
}

func newMT19937(seed uint32) *mt19937 {
	m := &mt19937{index: mtN}
	m.state[0] = seed
	for i := 1; i < mtN; i++ {
		m.state[i] = 1812433253*(m.state[i-1]^(m.state[i-1]>>30)) + uint32(i)
	}
	return m
}

func (m *mt19937) next() uint32 {
	if m.index >= mtN {
		for i := 0; i < mtN; i++ {
			y := (m.state[i] & mtUpperMask) | (m.state[(i+1)%mtN] & mtLowerMask)
			next := m.state[(i+mtM)%mtN] ^ (y >> 1)
			if y&1 != 0 {
				next ^= mtMatrixA
			}
			m.state[i] = next
		}
		m.index = 0
	}

	y := m.state[m.index]
	m.index++

	y ^= y >> 11
	y ^= (y << 7) & 0x9d2c5680
	y ^= (y << 15) & 0xefc60000
	y ^= y >> 18
	return y
}

// float64 with 53 random bits in [0, 1), the randomkit rk_double layout.
func (m *mt19937) float64() float64 {
	a := m.next() >> 5
	b := m.next() >> 6
	return (float64(a)*67108864.0 + float64(b)) / 9007199254740992.0
}

// float32 in [0, 1) from the low 24 bits, the torch
// uniform_real_distribution layout.
func (m *mt19937) float32() float32 {
	return float32(m.next()&0xffffff) / (1 << 24)
}
