package crypto

// MaskAccountNumber keeps only the last four digits of an account number
// so log lines and API responses never leak the full value.
func MaskAccountNumber(account string) string {
	if len(account) < 4 {
		return "****"
	}
	return "****" + account[len(account)-4:]
}

// MaskOwnerName keeps only the first character of a party name
func MaskOwnerName(name string) string {
	if len(name) < 2 {
		return "***"
	}
	return string(name[0]) + "***"
}
