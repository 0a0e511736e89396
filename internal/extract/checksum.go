package extract

// Verhoeff tables (dihedral group D5 multiplication, permutation, inverse).
var (
	verhoeffD = [10][10]byte{
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		{1, 2, 3, 4, 0, 6, 7, 8, 9, 5},
		{2, 3, 4, 0, 1, 7, 8, 9, 5, 6},
		{3, 4, 0, 1, 2, 8, 9, 5, 6, 7},
		{4, 0, 1, 2, 3, 9, 5, 6, 7, 8},
		{5, 9, 8, 7, 6, 0, 4, 3, 2, 1},
		{6, 5, 9, 8, 7, 1, 0, 4, 3, 2},
		{7, 6, 5, 9, 8, 2, 1, 0, 4, 3},
		{8, 7, 6, 5, 9, 3, 2, 1, 0, 4},
		{9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
	}
	verhoeffP = [8][10]byte{
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		{1, 5, 7, 6, 2, 8, 3, 0, 9, 4},
		{5, 8, 0, 3, 7, 9, 6, 1, 4, 2},
		{8, 9, 1, 6, 0, 4, 3, 5, 2, 7},
		{9, 4, 5, 3, 1, 2, 6, 8, 7, 0},
		{4, 2, 8, 6, 5, 7, 3, 9, 0, 1},
		{2, 7, 9, 3, 8, 0, 6, 4, 1, 5},
		{7, 0, 4, 6, 9, 1, 3, 2, 5, 8},
	}
)

// verhoeffValid reports whether a digit string ends in a correct Verhoeff
// check digit. Aadhaar numbers carry one.
func verhoeffValid(digits string) bool {
	if digits == "" {
		return false
	}
	var c byte
	for i := 0; i < len(digits); i++ {
		ch := digits[len(digits)-1-i]
		if !isDigit(ch) {
			return false
		}
		c = verhoeffD[c][verhoeffP[i%8][ch-'0']]
	}
	return c == 0
}

// luhnValid reports whether a digit string passes the Luhn mod-10 check.
func luhnValid(digits string) bool {
	if digits == "" {
		return false
	}
	var sum int
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		ch := digits[i]
		if !isDigit(ch) {
			return false
		}
		d := int(ch - '0')
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func base36Value(ch byte) int {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0')
	case ch >= 'A' && ch <= 'Z':
		return int(ch-'A') + 10
	}
	return -1
}

// gstinValid checks the mod-36 check character of a 15 character GSTIN.
func gstinValid(id string) bool {
	if len(id) != 15 {
		return false
	}
	sum := 0
	for i := 0; i < 14; i++ {
		v := base36Value(id[i])
		if v < 0 {
			return false
		}
		factor := 1
		if i%2 == 1 {
			factor = 2
		}
		p := v * factor
		sum += p/36 + p%36
	}
	return base36[(36-sum%36)%36] == id[14]
}

// digitsOnly strips everything but ASCII digits.
func digitsOnly(s string) string {
	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if isDigit(s[i]) {
			buf = append(buf, s[i])
		}
	}
	return string(buf)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isUpper(ch byte) bool {
	return ch >= 'A' && ch <= 'Z'
}

func isWordByte(ch byte) bool {
	return isDigit(ch) || isUpper(ch) || (ch >= 'a' && ch <= 'z') || ch == '_'
}
