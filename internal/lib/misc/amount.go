package misc

import (
	"strings"

	"github.com/holiman/uint256"
)

// FormattedAmount renders a base unit amount as a decimal token amount, chopping trailing 0's and the
// decimal point (if nothing else).
func FormattedAmount(amount *uint256.Int, decimals uint8) string {
	digits := amount.Dec()
	if decimals == 0 {
		return digits
	}
	if pad := int(decimals) + 1 - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	point := len(digits) - int(decimals)
	formatted := digits[:point] + "." + digits[point:]
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")
	return formatted
}
