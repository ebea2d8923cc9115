package services

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalTerms are the vocabulary counted for legal relevance, stored folded.
var legalTerms = foldSet(
	// general
	"artículo", "ley", "decreto", "norma", "reglamento", "código",
	"constitución", "jurisprudencia", "sentencia", "resolución",
	// concepts
	"derecho", "deber", "obligación", "facultad", "competencia",
	"responsabilidad", "sanción", "multa", "pena", "delito",
	// procedure
	"recurso", "apelación", "demanda", "querella", "denuncia",
	"proceso", "juicio", "instancia", "procedimiento",
	// parties
	"tribunal", "juez", "parte", "demandante", "demandado",
	"acusado", "imputado", "fiscal", "abogado",
	// effects
	"nulo", "válido", "vigente", "derogado", "modificado",
	"aplicable", "exigible", "prescrito", "caducado",
	// time limits
	"plazo", "término", "día", "hábil", "inhábil", "mes", "año",
	"vencimiento", "prórroga", "suspensión", "interrupción",
)

// clarityIndicators are connectors and discourse markers, stored folded.
var clarityIndicators = foldList(
	"por lo tanto", "en consecuencia", "debido a", "dado que",
	"puesto que", "ya que", "porque", "así que",
	"primero", "segundo", "tercero", "finalmente",
	"en primer lugar", "en segundo lugar", "por último",
	"se entiende por", "es decir", "esto es", "a saber",
	"se define como", "consiste en", "significa",
	"salvo", "excepto", "sin perjuicio", "a menos que",
	"siempre que", "cuando", "si", "en caso de",
)

// Patterns operate on folded, lowercased text.
var (
	referencePatterns = []*regexp.Regexp{
		regexp.MustCompile(`articulo\s+\d+`),
		regexp.MustCompile(`inciso\s+\w+`),
		regexp.MustCompile(`parrafo\s+\d+`),
		regexp.MustCompile(`literal\s+\w+`),
		regexp.MustCompile(`numeral\s+\d+`),
		regexp.MustCompile(`capitulo\s+[ivxlc]+\b`),
		regexp.MustCompile(`titulo\s+[ivxlc]+\b`),
		regexp.MustCompile(`ley\s+\d+`),
		regexp.MustCompile(`decreto\s+\d+`),
	}

	articleStructure = regexp.MustCompile(`(?m)articulo\s+\d+\s*[.:ºo°]|^\s*\d+\.`)
	definitionRe     = regexp.MustCompile(`se\s+(?:entiende|define|considera)\s+(?:por|como)`)
	enumerationRe    = regexp.MustCompile(`(?m)^\s*\d+\.|\bprimero\b|\bsegundo\b|\btercero\b|\b[a-c]\)`)
	sentenceSplit    = regexp.MustCompile(`[.!?]+`)

	// conservationMarkers are legal-structure headers that force a section to be kept.
	conservationMarkers = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*(?:articulo|art\.)\s*\d+`),
		regexp.MustCompile(`(?m)^\s*(?:capitulo|titulo|libro)\s+(?:[ivxlc]+|\d+)\b`),
		regexp.MustCompile(`(?m)^\s*disposicion\s+(?:transitoria|final|adicional|derogatoria)`),
	}
)

// foldText lowercases text and strips diacritics so that "Artículo" and
// "articulo" compare equal.
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// words splits folded text into letter/digit tokens.
func words(folded string) []string {
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func foldSet(terms ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[foldText(t)] = struct{}{}
	}
	return set
}

func foldList(terms ...string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = foldText(t)
	}
	return out
}

// containsPhrase reports whether phrase occurs in tokens as whole words.
func containsPhrase(padded, phrase string) bool {
	return strings.Contains(padded, " "+phrase+" ")
}
