package assets

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"
	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/zerr"
)

// mediaTypes maps file extensions to the media types the minifier understands.
var mediaTypes = map[string]string{
	".css":  "text/css",
	".js":   "application/javascript",
	".mjs":  "application/javascript",
	".json": "application/json",
	".svg":  "image/svg+xml",
}

// Minifier minifies assets by media type.
type Minifier struct {
	m *minify.M
}

// NewMinifier creates a Minifier for CSS, JavaScript, JSON and SVG.
func NewMinifier() *Minifier {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`), js.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`[/+]json$`), json.Minify)
	return &Minifier{m: m}
}

// Supports reports whether files named like path can be minified.
func (mf *Minifier) Supports(path string) bool {
	_, ok := mediaTypes[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Minify returns the minified content of a file named like path.
// Content of an unsupported type is returned unchanged.
func (mf *Minifier) Minify(path string, data []byte) ([]byte, error) {
	mediaType, ok := mediaTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return data, nil
	}
	out, err := mf.m.Bytes(mediaType, data)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrMinifyFailed.Error()), "path", path)
	}
	return out, nil
}
