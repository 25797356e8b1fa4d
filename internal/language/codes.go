package language

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"gopkg.in/yaml.v3"
)

//go:embed codes.yaml
var codesYAML []byte

// EnglishCode is the station code assigned on English defaults and
// fallbacks.
const EnglishCode = "E"

// Language is one recognized station language code.
type Language struct {
	Code string `yaml:"code"`
	Tag  string `yaml:"tag"`
	Name string `yaml:"name,omitempty"`
}

type codeFile struct {
	UndeterminedCodes []string   `yaml:"undetermined_codes"`
	Languages         []Language `yaml:"languages"`
}

// CodeTable is the recognized-language lookup used by the engine.
type CodeTable struct {
	byCode       map[string]Language
	undetermined map[string]bool
}

// LoadCodes parses the embedded code table. Display names missing from the
// file are derived from the BCP-47 tag via x/text display data.
func LoadCodes() (*CodeTable, error) {
	var f codeFile
	if err := yaml.Unmarshal(codesYAML, &f); err != nil {
		return nil, eris.Wrap(err, "language: parse codes.yaml")
	}

	t := &CodeTable{
		byCode:       make(map[string]Language, len(f.Languages)),
		undetermined: make(map[string]bool, len(f.UndeterminedCodes)),
	}
	for _, code := range f.UndeterminedCodes {
		t.undetermined[strings.ToUpper(code)] = true
	}
	for _, lang := range f.Languages {
		if lang.Name == "" {
			tag, err := xlanguage.Parse(lang.Tag)
			if err != nil {
				return nil, eris.Wrapf(err, "language: bad tag %q for code %q", lang.Tag, lang.Code)
			}
			lang.Name = display.English.Languages().Name(tag)
		}
		t.byCode[strings.ToUpper(lang.Code)] = lang
	}

	english, ok := t.byCode[EnglishCode]
	if !ok || english.Name == "" {
		return nil, eris.New("language: code table missing English")
	}
	return t, nil
}

// MustLoadCodes panics on a malformed embedded table; used at wiring time.
func MustLoadCodes() *CodeTable {
	t, err := LoadCodes()
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the language for a station code, case-insensitively.
func (t *CodeTable) Lookup(code string) (Language, bool) {
	lang, ok := t.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return lang, ok
}

// IsUndetermined reports whether code is a reserved undetermined marker.
func (t *CodeTable) IsUndetermined(code string) bool {
	return t.undetermined[strings.ToUpper(strings.TrimSpace(code))]
}

// English returns the English entry.
func (t *CodeTable) English() Language {
	return t.byCode[EnglishCode]
}
