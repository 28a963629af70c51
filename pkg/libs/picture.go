package libs

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SetOpacity appends an alpha channel to a #RRGGBB color, opacity in percent.
func SetOpacity(hex string, opacity int) string {
	alpha := int(math.Round(255.0 / 100.0 * float64(opacity)))
	return strings.ToLower(hex) + fmt.Sprintf("%02x", alpha)
}

// SplitOpacity returns the #RRGGBB part and the opacity percent of a
// #RRGGBBAA color.
func SplitOpacity(color string) (string, int) {
	if len(color) != 9 {
		return color, 100
	}
	alpha, err := strconv.ParseUint(color[7:], 16, 8)
	if err != nil {
		return color[:7], 100
	}
	return color[:7], int(math.Round(float64(alpha) / 255.0 * 100.0))
}
