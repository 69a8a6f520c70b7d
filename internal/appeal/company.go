package appeal

import "strings"

const companyNumberLength = 8

// SanitizeCompanyNumber normalises user input into the 8 character company
// number format: SC123 becomes SC000123 and 1234 becomes 00001234. Length is
// counted in characters, not bytes.
func SanitizeCompanyNumber(input string) string {
	value := strings.ToUpper(strings.Join(strings.Fields(input), ""))
	chars := []rune(value)
	if len(chars) == 0 || len(chars) >= companyNumberLength {
		return value
	}
	padding := strings.Repeat("0", companyNumberLength-len(chars))
	if len(chars) > 2 && isLetter(chars[0]) && isLetter(chars[1]) {
		return string(chars[:2]) + padding + string(chars[2:])
	}
	return padding + value
}

func isLetter(r rune) bool {
	return r >= 'A' && r <= 'Z'
}
