package viewer

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/taigrr/threedviewer/pkg/render"
)

// Theme tokens accepted by SetBackground.
const (
	ThemeLight       = "light"
	ThemeDark        = "dark"
	ThemeTransparent = "transparent"
)

var themes = map[string]render.Color{
	ThemeLight:       render.RGB(0xf5, 0xf5, 0xf5),
	ThemeDark:        render.RGB(0x1e, 0x1e, 0x1e),
	ThemeTransparent: render.ColorTransparent,
}

// ParseBackground turns a theme token or a hex colour (#rgb, #rrggbb,
// with or without the hash) into a colour.
func ParseBackground(s string) (render.Color, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if c, ok := themes[s]; ok {
		return c, nil
	}
	if s == "" {
		return render.Color{}, fmt.Errorf("empty background")
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return render.Color{}, fmt.Errorf("invalid background %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return render.RGB(r, g, b), nil
}
