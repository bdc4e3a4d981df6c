// Package render turns a solve response into the pieces the result section shows.
package render

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultLanguage is used when neither detection nor the server hint names a known language.
	DefaultLanguage = "plaintext"
	// StyleName is the chroma style the stylesheet is generated from.
	StyleName = "github"
)

// lexer name (lower-cased) -> language id shown on the page
var knownLanguages = map[string]string{
	"python":     "python",
	"python 2":   "python",
	"javascript": "javascript",
	"typescript": "typescript",
	"java":       "java",
	"c++":        "cpp",
	"c":          "c",
	"c#":         "csharp",
	"go":         "go",
	"rust":       "rust",
	"ruby":       "ruby",
	"kotlin":     "kotlin",
	"swift":      "swift",
	"php":        "php",
	"sql":        "sql",
	"bash":       "bash",
	"plaintext":  "plaintext",
}

var formatter = chromahtml.New(chromahtml.WithClasses(true), chromahtml.TabWidth(4))

// Detect guesses the language of code. It reports false when nothing known matched
// and never panics.
func Detect(code string) (lang string, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			log.Warn().Interface("panic", p).Msg("[render] language detection panicked")
			lang, ok = "", false
		}
	}()
	if strings.TrimSpace(code) == "" {
		return "", false
	}
	lexer := lexers.Analyse(code)
	if lexer == nil {
		return "", false
	}
	return Known(lexer.Config().Name)
}

// Known maps a lexer name or language id to a language id.
func Known(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if id, ok := knownLanguages[key]; ok {
		return id, true
	}
	for _, id := range knownLanguages {
		if id == key {
			return id, true
		}
	}
	return "", false
}

// ChooseLanguage applies detection, then the server's hint, then DefaultLanguage.
func ChooseLanguage(code, hint string) string {
	if lang, ok := Detect(code); ok {
		return lang
	}
	if lang, ok := Known(hint); ok {
		return lang
	}
	return DefaultLanguage
}

// Highlight renders code as class-annotated HTML. A formatter failure degrades to escaped text.
func Highlight(code, lang string) template.HTML {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		log.Warn().Err(err).Str("language", lang).Msg("[render] tokenise failed")
		return plain(code)
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style(), it); err != nil {
		log.Warn().Err(err).Str("language", lang).Msg("[render] format failed")
		return plain(code)
	}
	return template.HTML(buf.String())
}

// Stylesheet is the CSS matching Highlight's classes.
func Stylesheet() (string, error) {
	var buf bytes.Buffer
	if err := formatter.WriteCSS(&buf, style()); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func style() *chroma.Style {
	if s := styles.Get(StyleName); s != nil {
		return s
	}
	return styles.Fallback
}

func plain(code string) template.HTML {
	return template.HTML(`<pre class="chroma">` + template.HTMLEscapeString(code) + `</pre>`)
}
