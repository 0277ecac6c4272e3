package links

import "math"

const base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz" + "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Base62 is the reversible ID <-> short code transform.
type Base62 struct{}

func NewBase62() Base62 { return Base62{} }

func (Base62) Encode(id uint64) string {
	if id == 0 {
		return base62Alphabet[:1]
	}

	// 62^11 > 2^64
	var buf [11]byte
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = base62Alphabet[id%62]
		id /= 62
	}
	return string(buf[i:])
}

func (Base62) Decode(code string) (uint64, error) {
	if code == "" {
		return 0, ErrInvalidCode
	}

	var id uint64
	for i := 0; i < len(code); i++ {
		digit, ok := base62Digit(code[i])
		if !ok {
			return 0, ErrInvalidCode
		}
		if id > (math.MaxUint64-digit)/62 {
			return 0, ErrInvalidCode
		}
		id = id*62 + digit
	}
	return id, nil
}

func base62Digit(c byte) (uint64, bool) {
	switch {
	case c >= '0' && c <= '9':
		return uint64(c - '0'), true
	case c >= 'a' && c <= 'z':
		return uint64(c-'a') + 10, true
	case c >= 'A' && c <= 'Z':
		return uint64(c-'A') + 36, true
	default:
		return 0, false
	}
}
