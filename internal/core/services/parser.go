package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
)

// ParsedQuestion is one question payload decoded from a model response.
type ParsedQuestion struct {
	Content  domain.Content
	Metadata domain.QuestionMetadata

	// SectionRef is the 1-based section position inside the batch, or 0
	// when the payload carried none.
	SectionRef int
}

var (
	thinkBlock  = regexp.MustCompile(`(?s)<(thought|think|thinking)>.*?</(thought|think|thinking)>`)
	fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")
)

// ParseResponse decodes a model response into question payloads. A
// response with no recognisable question list fails with a batch-level
// ParseError. Individual payloads that do not match their schema are
// returned as item-level ParseErrors and skipped.
func ParseResponse(text string, qtype domain.QuestionType, batchIndex int) ([]ParsedQuestion, []error, error) {
	root, err := ExtractJSON(text)
	if err != nil {
		return nil, nil, &domain.ParseError{BatchIndex: batchIndex, Item: -1, Reason: err.Error()}
	}
	items, ok := questionList(root)
	if !ok {
		return nil, nil, &domain.ParseError{BatchIndex: batchIndex, Item: -1, Reason: "no question list in response"}
	}

	var (
		parsed  []ParsedQuestion
		dropped []error
	)
	for i, raw := range items {
		q, err := parseItem(raw, qtype)
		if err != nil {
			dropped = append(dropped, &domain.ParseError{BatchIndex: batchIndex, Item: i, Reason: err.Error()})
			continue
		}
		parsed = append(parsed, q)
	}
	return parsed, dropped, nil
}

// ExtractJSON finds the JSON document in a model response. It strips
// reasoning blocks, then tries the whole text, fenced code blocks and
// finally the outermost object or array.
func ExtractJSON(text string) (any, error) {
	text = strings.TrimSpace(thinkBlock.ReplaceAllString(text, ""))
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}

	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v, nil
	}

	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &v); err == nil {
			return v, nil
		}
	}

	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(text, pair[0])
		end := strings.LastIndex(text, pair[1])
		if start >= 0 && end > start {
			if err := json.Unmarshal([]byte(text[start:end+1]), &v); err == nil {
				return v, nil
			}
		}
	}
	return nil, fmt.Errorf("response is not valid JSON")
}

// questionList locates the list of question payloads in a decoded response.
func questionList(root any) ([]any, bool) {
	switch v := root.(type) {
	case []any:
		return v, true
	case map[string]any:
		for _, key := range []string{"preguntas", "questions"} {
			if list, ok := v[key].([]any); ok {
				return list, true
			}
		}
		for _, val := range v {
			if list, ok := val.([]any); ok {
				return list, true
			}
		}
	}
	return nil, false
}

// fieldAliases maps canonical payload fields to the names models use.
var fieldAliases = map[string][]string{
	"front":         {"front", "anverso", "frente", "pregunta"},
	"back":          {"back", "reverso", "respuesta"},
	"statement":     {"statement", "afirmacion", "afirmación", "pregunta", "question"},
	"answer":        {"answer", "respuesta_correcta", "respuesta", "correct_answer"},
	"justification": {"justification", "justificacion", "justificación", "explicacion", "explicación", "explanation"},
	"question":      {"question", "pregunta", "enunciado"},
	"options":       {"options", "opciones"},
	"correct_index": {"correct_index", "indice_correcto", "respuesta_correcta", "correct_answer"},
	"text":          {"text", "texto_con_espacios", "texto"},
	"answers":       {"answers", "respuestas_validas", "respuestas"},
}

// typeFields lists the canonical fields of each question type.
var typeFields = map[domain.QuestionType][]string{
	domain.QuestionFlashcard:      {"front", "back"},
	domain.QuestionTrueFalse:      {"statement", "answer", "justification"},
	domain.QuestionMultipleChoice: {"question", "options", "correct_index", "justification"},
	domain.QuestionCloze:          {"text", "answers"},
}

func parseItem(raw any, qtype domain.QuestionType) (ParsedQuestion, error) {
	item, ok := raw.(map[string]any)
	if !ok {
		return ParsedQuestion{}, fmt.Errorf("payload is not an object")
	}

	content := item
	for _, key := range []string{"contenido_tipo", "contenido", "content"} {
		if c, ok := item[key].(map[string]any); ok {
			content = c
			break
		}
	}

	canonical := make(map[string]any)
	for _, field := range typeFields[qtype] {
		if v, ok := lookup(content, item, fieldAliases[field]); ok {
			canonical[field] = v
		}
	}
	normaliseCanonical(qtype, canonical)

	if err := validatePayload(qtype, canonical); err != nil {
		return ParsedQuestion{}, err
	}

	c, err := buildContent(qtype, canonical)
	if err != nil {
		return ParsedQuestion{}, err
	}
	return ParsedQuestion{
		Content:    c,
		Metadata:   parseMetadata(item),
		SectionRef: sectionRef(item),
	}, nil
}

// lookup returns the first alias present in content, then in the item root.
func lookup(content, root map[string]any, aliases []string) (any, bool) {
	for _, m := range []map[string]any{content, root} {
		for _, a := range aliases {
			if v, ok := m[a]; ok && v != nil {
				return v, true
			}
		}
	}
	return nil, false
}

// normaliseCanonical coerces loosely typed values into schema types.
func normaliseCanonical(qtype domain.QuestionType, m map[string]any) {
	switch qtype {
	case domain.QuestionTrueFalse:
		if v, ok := m["answer"].(string); ok {
			if b, ok := parseTruth(v); ok {
				m["answer"] = b
			}
		}
	case domain.QuestionMultipleChoice:
		if s, ok := m["correct_index"].(string); ok {
			if idx, ok := parseOptionIndex(s, m["options"]); ok {
				m["correct_index"] = float64(idx)
			}
		}
	case domain.QuestionCloze:
		if s, ok := m["answers"].(string); ok {
			m["answers"] = []any{s}
		}
	}
}

func parseTruth(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verdadero", "true", "v", "si", "sí", "cierto":
		return true, true
	case "falso", "false", "f", "no":
		return false, true
	}
	return false, false
}

// parseOptionIndex accepts "2", "C", "c)" or the option text itself.
func parseOptionIndex(s string, options any) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	letter := strings.ToUpper(strings.TrimRight(s, ").:"))
	if len(letter) == 1 && letter[0] >= 'A' && letter[0] <= 'Z' {
		return int(letter[0] - 'A'), true
	}
	if opts, ok := options.([]any); ok {
		for i, o := range opts {
			if str, ok := o.(string); ok && strings.EqualFold(strings.TrimSpace(str), s) {
				return i, true
			}
		}
	}
	return 0, false
}

func parseMetadata(item map[string]any) domain.QuestionMetadata {
	meta := item
	for _, key := range []string{"sm2_metadata", "metadata", "metadatos"} {
		if m, ok := item[key].(map[string]any); ok {
			meta = m
			break
		}
	}

	var md domain.QuestionMetadata
	if v, ok := lookup(meta, item, []string{"difficulty", "dificultad"}); ok {
		if s, ok := v.(string); ok {
			md.Difficulty = domain.ParseDifficulty(s)
		}
	}
	if md.Difficulty == "" {
		md.Difficulty = domain.DifficultyIntermediate
	}
	if v, ok := lookup(meta, item, []string{"tags", "etiquetas"}); ok {
		md.Tags = domain.NormaliseTags(toStrings(v))
	}
	if v, ok := lookup(meta, item, []string{"subtype", "subtipo"}); ok {
		md.Subtype, _ = v.(string)
	}
	if v, ok := lookup(meta, item, []string{"source_excerpt", "fragmento", "cita"}); ok {
		md.SourceExcerpt, _ = v.(string)
	}
	return md
}

func sectionRef(item map[string]any) int {
	origin := item
	for _, key := range []string{"origen", "origin"} {
		if m, ok := item[key].(map[string]any); ok {
			origin = m
			break
		}
	}
	v, ok := lookup(origin, item, []string{"section_id", "seccion", "sección"})
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err == nil {
			return i
		}
	}
	return 0
}

func buildContent(qtype domain.QuestionType, m map[string]any) (domain.Content, error) {
	str := func(k string) string {
		s, _ := m[k].(string)
		return s
	}
	switch qtype {
	case domain.QuestionFlashcard:
		return domain.NewFlashcardContent(domain.Flashcard{Front: str("front"), Back: str("back")}), nil
	case domain.QuestionTrueFalse:
		answer, _ := m["answer"].(bool)
		return domain.NewTrueFalseContent(domain.TrueFalse{
			Statement:     str("statement"),
			Answer:        answer,
			Justification: str("justification"),
		}), nil
	case domain.QuestionMultipleChoice:
		idx, _ := m["correct_index"].(float64)
		return domain.NewMultipleChoiceContent(domain.MultipleChoice{
			Question:      str("question"),
			Options:       toStrings(m["options"]),
			CorrectIndex:  int(idx),
			Justification: str("justification"),
		}), nil
	case domain.QuestionCloze:
		return domain.NewClozeContent(domain.Cloze{Text: str("text"), Answers: toStrings(m["answers"])}), nil
	}
	return domain.Content{}, fmt.Errorf("unsupported question type %q", qtype)
}

func toStrings(v any) []string {
	switch list := v.(type) {
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case float64:
				out = append(out, strconv.FormatFloat(s, 'f', -1, 64))
			}
		}
		return out
	case string:
		return []string{list}
	}
	return nil
}

// payloadSchemas are the JSON Schemas each canonical payload must satisfy.
var payloadSchemas = map[domain.QuestionType]string{
	domain.QuestionFlashcard: `{
		"type": "object",
		"required": ["front", "back"],
		"properties": {
			"front": {"type": "string"},
			"back": {"type": "string"}
		}
	}`,
	domain.QuestionTrueFalse: `{
		"type": "object",
		"required": ["statement", "answer"],
		"properties": {
			"statement": {"type": "string"},
			"answer": {"type": "boolean"},
			"justification": {"type": "string"}
		}
	}`,
	domain.QuestionMultipleChoice: `{
		"type": "object",
		"required": ["question", "options", "correct_index"],
		"properties": {
			"question": {"type": "string"},
			"options": {"type": "array", "items": {"type": "string"}, "minItems": 4, "maxItems": 4},
			"correct_index": {"type": "integer", "minimum": 0, "maximum": 3},
			"justification": {"type": "string"}
		}
	}`,
	domain.QuestionCloze: `{
		"type": "object",
		"required": ["text", "answers"],
		"properties": {
			"text": {"type": "string", "minLength": 1},
			"answers": {"type": "array", "items": {"type": "string"}, "minItems": 1}
		}
	}`,
}

var (
	compileOnce     sync.Once
	compiledSchemas map[domain.QuestionType]*jsonschema.Schema
	compileErr      error
)

func compileSchemas() {
	compiledSchemas = make(map[domain.QuestionType]*jsonschema.Schema, len(payloadSchemas))
	for qtype, src := range payloadSchemas {
		url := string(qtype) + ".json"
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(url, strings.NewReader(src)); err != nil {
			compileErr = fmt.Errorf("add schema %s: %w", qtype, err)
			return
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			compileErr = fmt.Errorf("compile schema %s: %w", qtype, err)
			return
		}
		compiledSchemas[qtype] = schema
	}
}

// validatePayload checks a canonical payload against its type schema.
func validatePayload(qtype domain.QuestionType, payload map[string]any) error {
	compileOnce.Do(compileSchemas)
	if compileErr != nil {
		return compileErr
	}
	schema, ok := compiledSchemas[qtype]
	if !ok {
		return fmt.Errorf("unsupported question type %q", qtype)
	}

	// Round-trip so the validator sees plain decoded JSON values.
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("payload does not match %s schema: %w", qtype, err)
	}
	return nil
}
