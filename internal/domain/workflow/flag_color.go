package workflow

import "strings"

// FlagColor classifies ticket severity/effort. Order matters: black is the
// heaviest class and drives the backlog SLA metric.
type FlagColor string

const (
	FlagGreen  FlagColor = "green"
	FlagYellow FlagColor = "yellow"
	FlagRed    FlagColor = "red"
	FlagBlack  FlagColor = "black"
)

var flagRank = map[FlagColor]int{
	FlagGreen:  0,
	FlagYellow: 1,
	FlagRed:    2,
	FlagBlack:  3,
}

func ParseFlagColor(raw string) (FlagColor, error) {
	color := FlagColor(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := flagRank[color]; !ok {
		return "", Validationf("unknown flag color %q", raw)
	}
	return color, nil
}

func (c FlagColor) AtLeast(other FlagColor) bool {
	return flagRank[c] >= flagRank[other]
}

// FlagsAtLeast enumerates the colors ranked at or above the given color,
// lightest first.
func FlagsAtLeast(flag FlagColor) []FlagColor {
	ordered := []FlagColor{FlagGreen, FlagYellow, FlagRed, FlagBlack}
	out := make([]FlagColor, 0, len(ordered))
	for _, color := range ordered {
		if color.AtLeast(flag) {
			out = append(out, color)
		}
	}
	return out
}
