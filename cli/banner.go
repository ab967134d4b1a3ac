package cli

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	boxTopLeft     = "╒"
	boxBottomLeft  = "└"
	boxTopRight    = "╕"
	boxBottomRight = "┘"
	boxSide        = "│"
	boxTop         = "═"
	boxBottom      = "─"
	ellipsis       = "…"
)

// Alignment of text inside a banner.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

const (
	// DefaultWidth is the banner width used when none is configured.
	DefaultWidth = 60

	bannerPadding   = 2
	truncateReserve = 1
	halfDivisor     = 2
)

// Banner draws lines inside a box width columns wide. Lines that do not fit are cut
// with an ellipsis. It returns "" for no lines or a width too small for the frame.
func Banner(lines []string, width int, alignment Alignment) string {
	if len(lines) == 0 || width <= bannerPadding {
		return ""
	}

	inner := width - bannerPadding
	parts := []string{boxTopLeft + strings.Repeat(boxTop, inner) + boxTopRight}

	for _, l := range lines {
		parts = append(parts, boxSide+pad(l, inner, alignment)+boxSide)
	}

	parts = append(parts, boxBottomLeft+strings.Repeat(boxBottom, inner)+boxBottomRight)

	return strings.Join(parts, "\n") + "\n"
}

func countGraphic(s string) int {
	count := 0

	for _, r := range s {
		if unicode.IsGraphic(r) {
			count++
		}
	}

	return count
}

// truncateGraphic keeps the first n graphic runes of s.
func truncateGraphic(s string, n int) (string, int) {
	var out strings.Builder

	count := 0

	for _, r := range s {
		if unicode.IsGraphic(r) {
			if count == n {
				break
			}

			count++
		}

		out.WriteRune(r)
	}

	return out.String(), count
}

func pad(text string, width int, alignment Alignment) string {
	str := text
	length := countGraphic(text)

	if length > width {
		str, length = truncateGraphic(str, width-truncateReserve)
		str += ellipsis
		length++
	}

	diff := width - length

	switch alignment {
	case AlignCenter:
		left := diff / halfDivisor

		return fmt.Sprintf("%s%s%s", strings.Repeat(" ", left), str, strings.Repeat(" ", diff-left))
	case AlignRight:
		return strings.Repeat(" ", diff) + str
	default:
		return str + strings.Repeat(" ", diff)
	}
}
