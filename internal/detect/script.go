package detect

import "unicode"

type scriptRule struct {
	language string
	ranges   *unicode.RangeTable
}

// Rules are checked in order against the whole text; the first rule with any
// matching code point wins.
var scriptRules = []scriptRule{
	{"ja", &unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0x3040, Hi: 0x309f, Stride: 1}, // Hiragana
		{Lo: 0x30a0, Hi: 0x30ff, Stride: 1}, // Katakana
		{Lo: 0x3400, Hi: 0x4dbf, Stride: 1}, // CJK extension A
		{Lo: 0x4e00, Hi: 0x9fff, Stride: 1}, // CJK unified ideographs
		{Lo: 0xff66, Hi: 0xff9f, Stride: 1}, // half-width katakana
	}}},
	{"ko", &unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0x1100, Hi: 0x11ff, Stride: 1}, // Hangul jamo
		{Lo: 0x3130, Hi: 0x318f, Stride: 1}, // Hangul compatibility jamo
		{Lo: 0xac00, Hi: 0xd7af, Stride: 1}, // Hangul syllables
	}}},
	{"ar", &unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0x0600, Hi: 0x06ff, Stride: 1},
		{Lo: 0x0750, Hi: 0x077f, Stride: 1},
		{Lo: 0xfb50, Hi: 0xfdff, Stride: 1},
		{Lo: 0xfe70, Hi: 0xfeff, Stride: 1},
	}}},
}

// DetectScript guesses a language from the Unicode scripts present in text.
func DetectScript(text string) string {
	for _, rule := range scriptRules {
		for _, r := range text {
			if unicode.Is(rule.ranges, r) {
				return rule.language
			}
		}
	}
	return DefaultLanguage
}
