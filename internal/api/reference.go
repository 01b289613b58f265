package api

import "net/http"

type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type Font struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type TranslationStyle struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

var Languages = []Language{
	{"ar", "Arabic"},
	{"zh", "Chinese"},
	{"en", "English"},
	{"fr", "French"},
	{"de", "German"},
	{"hi", "Hindi"},
	{"id", "Indonesian"},
	{"it", "Italian"},
	{"ja", "Japanese"},
	{"ko", "Korean"},
	{"ms", "Malay"},
	{"pt", "Portuguese"},
	{"ru", "Russian"},
	{"es", "Spanish"},
	{"th", "Thai"},
	{"tr", "Turkish"},
	{"vi", "Vietnamese"},
}

var Fonts = []Font{
	{"Comic Sans", "Comic Sans MS, cursive"},
	{"Bangers", "Bangers, cursive"},
	{"Wild Words", "'Comic Neue', cursive"},
	{"Arial", "Arial, sans-serif"},
	{"Roboto", "Roboto, sans-serif"},
	{"Times New Roman", "'Times New Roman', serif"},
}

var FontSizes = []int{10, 12, 14, 16, 18, 20, 24}

var TranslationStyles = []TranslationStyle{
	{"Bubble Replace", "bubble_replace", "Replace text within speech bubbles"},
	{"Overlay", "overlay", "Place translation as overlay on the original text"},
	{"Side-by-Side", "side_by_side", "Show translation next to the original"},
	{"Tooltip", "tooltip", "Show translation on hover"},
}

func (h *Handlers) Languages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"languages": Languages, "auto": "auto"})
}

func (h *Handlers) Fonts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"fonts": Fonts, "sizes": FontSizes})
}

func (h *Handlers) Styles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"styles": TranslationStyles})
}
