package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driving"
)

// Ensure ValidationService implements the interface.
var _ driving.ValidationService = (*ValidationService)(nil)

// Violation rule identifiers.
const (
	RuleMalformed           = "malformed_content"
	RuleWhitespace          = "whitespace"
	RuleEmptyPrompt         = "empty_prompt"
	RuleTooShort            = "too_short"
	RuleAnswerTooShort      = "answer_too_short"
	RuleMissingOrigin       = "missing_origin"
	RuleEmptyBack           = "empty_back"
	RuleFrontEqualsBack     = "front_equals_back"
	RuleMissingQuestionMark = "missing_question_mark"
	RuleMissingJustify      = "missing_justification"
	RuleRepeatsStatement    = "justification_repeats_statement"
	RuleOptionCount         = "option_count"
	RuleEmptyOption         = "empty_option"
	RuleCorrectIndex        = "invalid_correct_index"
	RuleDuplicateOptions    = "duplicate_options"
	RuleNoBlanks            = "no_blanks"
	RuleMissingAnswers      = "missing_answers"
	RuleEmptyAnswer         = "empty_answer"
	RuleBlankCount          = "blank_count"
	RuleDuplicateAnswers    = "duplicate_answers"
)

// levelRules are the thresholds and checks enabled at a validation level.
type levelRules struct {
	minPrompt      int
	minAnswer      int
	requireJustify bool
	checkDupes     bool
	checkOrigin    bool
	requireQMark   bool
}

func rulesFor(level domain.ValidationLevel) levelRules {
	switch level {
	case domain.LevelStrict:
		return levelRules{
			minPrompt:      20,
			minAnswer:      10,
			requireJustify: true,
			checkDupes:     true,
			checkOrigin:    true,
			requireQMark:   true,
		}
	case domain.LevelLenient:
		return levelRules{}
	default:
		return levelRules{minPrompt: 15, minAnswer: 5, checkOrigin: true}
	}
}

var (
	spaceRuns   = regexp.MustCompile(`[ \t]{2,}`)
	clozeBraces = regexp.MustCompile(`\{\{[^{}]*\}\}`)
	clozeLines  = regexp.MustCompile(`_{3,}`)
)

// ValidationService checks questions against per-type structural rules and
// applies a fixed set of deterministic repairs. It never discards questions.
type ValidationService struct{}

// NewValidationService creates a validation service.
func NewValidationService() *ValidationService {
	return &ValidationService{}
}

// Validate returns a copy of q with status and violations set. With
// autoFix, repairable violations are repaired once and the question is
// re-checked.
func (s *ValidationService) Validate(q domain.Question, level domain.ValidationLevel, autoFix bool) domain.Question {
	out, _ := s.validate(q, level, autoFix)
	return out
}

// ValidateAll validates every question and summarises the outcome.
func (s *ValidationService) ValidateAll(
	questions []domain.Question,
	level domain.ValidationLevel,
	autoFix bool,
) ([]domain.Question, driving.ValidationSummary) {
	summary := driving.ValidationSummary{Total: len(questions), ByRule: make(map[string]int)}
	out := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		v, fixed := s.validate(q, level, autoFix)
		switch v.Status {
		case domain.StatusValidated:
			summary.Validated++
			if fixed {
				summary.Fixed++
			}
		case domain.StatusInvalid:
			summary.Invalid++
			for _, viol := range v.Violations {
				summary.ByRule[viol.Rule]++
			}
		}
		out = append(out, v)
	}
	return out, summary
}

// validate reports whether a repair was applied alongside the result.
func (s *ValidationService) validate(q domain.Question, level domain.ValidationLevel, autoFix bool) (domain.Question, bool) {
	rules := rulesFor(level)
	out := q.Clone()
	violations := check(out, rules)

	repaired := false
	if len(violations) > 0 && autoFix && anyRepairable(violations) {
		repair(&out, rules)
		repaired = true
		violations = check(out, rules)
	}

	if len(violations) == 0 {
		out.Status = domain.StatusValidated
		out.Violations = nil
	} else {
		out.Status = domain.StatusInvalid
		out.Violations = violations
	}
	return out, repaired
}

func anyRepairable(vs []domain.Violation) bool {
	for _, v := range vs {
		if v.Repairable {
			return true
		}
	}
	return false
}

// violations collects rule failures for one question.
type violations []domain.Violation

func (v *violations) add(rule, field string, sev domain.Severity, repairable bool, format string, args ...any) {
	*v = append(*v, domain.Violation{
		Rule:       rule,
		Field:      field,
		Message:    fmt.Sprintf(format, args...),
		Severity:   sev,
		Repairable: repairable,
	})
}

func check(q domain.Question, r levelRules) []domain.Violation {
	var v violations
	c := q.Content
	if c.Type != q.Type || !variantPresent(c) {
		v.add(RuleMalformed, "content", domain.SeverityError, false, "content does not match type %s", q.Type)
		return v
	}

	for _, f := range textFields(c) {
		if needsTrim(f.text) {
			v.add(RuleWhitespace, f.name, domain.SeverityWarning, true, "untrimmed or repeated whitespace")
		}
	}

	prompt := strings.TrimSpace(c.Prompt())
	switch {
	case prompt == "":
		v.add(RuleEmptyPrompt, "content", domain.SeverityError, false, "question text is empty")
	case runeLen(prompt) < r.minPrompt:
		v.add(RuleTooShort, "content", domain.SeverityError, false,
			"question text too short (%d < %d characters)", runeLen(prompt), r.minPrompt)
	}
	if r.checkOrigin && q.Origin.SectionID == 0 {
		v.add(RuleMissingOrigin, "origin", domain.SeverityWarning, false, "missing source section")
	}

	switch q.Type {
	case domain.QuestionFlashcard:
		checkFlashcard(&v, c.Flashcard, r)
	case domain.QuestionTrueFalse:
		checkTrueFalse(&v, c.TrueFalse, r)
	case domain.QuestionMultipleChoice:
		checkMultipleChoice(&v, c.MultipleChoice, r)
	case domain.QuestionCloze:
		checkCloze(&v, c.Cloze, r)
	}
	return v
}

func checkFlashcard(v *violations, f *domain.Flashcard, r levelRules) {
	front, back := strings.TrimSpace(f.Front), strings.TrimSpace(f.Back)
	if back == "" {
		v.add(RuleEmptyBack, "back", domain.SeverityError, false, "answer is empty")
	} else if runeLen(back) < r.minAnswer {
		v.add(RuleAnswerTooShort, "back", domain.SeverityError, false,
			"answer too short (%d < %d characters)", runeLen(back), r.minAnswer)
	}
	if front != "" && strings.EqualFold(front, back) {
		v.add(RuleFrontEqualsBack, "back", domain.SeverityError, false, "answer repeats the question")
	}
	if r.requireQMark && front != "" && !strings.HasSuffix(front, "?") {
		v.add(RuleMissingQuestionMark, "front", domain.SeverityWarning, true, "question does not end with '?'")
	}
}

func checkTrueFalse(v *violations, tf *domain.TrueFalse, r levelRules) {
	justification := strings.TrimSpace(tf.Justification)
	if r.requireJustify && justification == "" {
		v.add(RuleMissingJustify, "justification", domain.SeverityError, false, "justification is required")
	}
	if justification != "" && strings.EqualFold(justification, strings.TrimSpace(tf.Statement)) {
		v.add(RuleRepeatsStatement, "justification", domain.SeverityError, false, "justification repeats the statement")
	}
}

func checkMultipleChoice(v *violations, mc *domain.MultipleChoice, r levelRules) {
	n := len(mc.Options)
	if n != domain.MultipleChoiceOptions {
		repairable := n > domain.MultipleChoiceOptions && canDedupeOptions(mc)
		v.add(RuleOptionCount, "options", domain.SeverityError, repairable,
			"expected %d options, got %d", domain.MultipleChoiceOptions, n)
	}
	for i, o := range mc.Options {
		if strings.TrimSpace(o) == "" {
			v.add(RuleEmptyOption, "options", domain.SeverityError, false, "option %d is empty", i)
		}
	}
	if mc.CorrectIndex < 0 || mc.CorrectIndex >= domain.MultipleChoiceOptions || mc.CorrectIndex >= n {
		v.add(RuleCorrectIndex, "correct_index", domain.SeverityError, false,
			"correct index %d out of range", mc.CorrectIndex)
	}
	if r.checkDupes && n == domain.MultipleChoiceOptions && len(distinctFold(mc.Options)) < n {
		v.add(RuleDuplicateOptions, "options", domain.SeverityError, false, "options are not distinct")
	}
	if r.requireJustify && strings.TrimSpace(mc.Justification) == "" {
		v.add(RuleMissingJustify, "justification", domain.SeverityError, false, "justification is required")
	}
}

func checkCloze(v *violations, cz *domain.Cloze, r levelRules) {
	blanks := countBlanks(cz.Text)
	if blanks == 0 {
		v.add(RuleNoBlanks, "text", domain.SeverityError, false, "text has no blanks")
	}

	nonEmpty := 0
	for _, a := range cz.Answers {
		if strings.TrimSpace(a) != "" {
			nonEmpty++
		}
	}
	switch {
	case nonEmpty == 0:
		v.add(RuleMissingAnswers, "answers", domain.SeverityError, false, "no answers")
	case nonEmpty < len(cz.Answers):
		v.add(RuleEmptyAnswer, "answers", domain.SeverityError, true, "%d empty answer(s)", len(cz.Answers)-nonEmpty)
	}

	if r.checkDupes {
		if blanks > nonEmpty && nonEmpty > 0 {
			v.add(RuleBlankCount, "answers", domain.SeverityError, false,
				"%d blanks but only %d answer(s)", blanks, nonEmpty)
		}
		if len(distinctFold(cz.Answers)) < len(cz.Answers) {
			v.add(RuleDuplicateAnswers, "answers", domain.SeverityWarning, true, "duplicate answers")
		}
	}
}

// repair applies every deterministic fix the level calls for in place.
func repair(q *domain.Question, r levelRules) {
	c := &q.Content
	switch q.Type {
	case domain.QuestionFlashcard:
		c.Flashcard.Front = tidy(c.Flashcard.Front)
		c.Flashcard.Back = tidy(c.Flashcard.Back)
		if r.requireQMark && c.Flashcard.Front != "" && !strings.HasSuffix(c.Flashcard.Front, "?") {
			c.Flashcard.Front = strings.TrimRight(c.Flashcard.Front, ".:;") + "?"
		}
	case domain.QuestionTrueFalse:
		c.TrueFalse.Statement = tidy(c.TrueFalse.Statement)
		c.TrueFalse.Justification = tidy(c.TrueFalse.Justification)
	case domain.QuestionMultipleChoice:
		mc := c.MultipleChoice
		mc.Question = tidy(mc.Question)
		mc.Justification = tidy(mc.Justification)
		for i := range mc.Options {
			mc.Options[i] = tidy(mc.Options[i])
		}
		if len(mc.Options) > domain.MultipleChoiceOptions && canDedupeOptions(mc) {
			dedupeOptions(mc)
		}
	case domain.QuestionCloze:
		cz := c.Cloze
		cz.Text = tidy(cz.Text)
		answers := make([]string, 0, len(cz.Answers))
		seen := make(map[string]struct{}, len(cz.Answers))
		for _, a := range cz.Answers {
			a = tidy(a)
			key := strings.ToLower(a)
			if _, dup := seen[key]; a == "" || dup {
				continue
			}
			seen[key] = struct{}{}
			answers = append(answers, a)
		}
		if len(answers) > 0 {
			cz.Answers = answers
		}
		cz.Text = convertUnderscoreBlanks(cz.Text, cz.Answers)
	}
}

// canDedupeOptions reports whether removing case-insensitive duplicates
// leaves exactly the required number of options with the correct one kept.
func canDedupeOptions(mc *domain.MultipleChoice) bool {
	if mc.CorrectIndex < 0 || mc.CorrectIndex >= len(mc.Options) {
		return false
	}
	return len(distinctFold(mc.Options)) == domain.MultipleChoiceOptions
}

// dedupeOptions keeps the first occurrence of each option and re-points
// the correct index at the surviving copy of the correct option.
func dedupeOptions(mc *domain.MultipleChoice) {
	correct := strings.ToLower(strings.TrimSpace(mc.Options[mc.CorrectIndex]))
	seen := make(map[string]struct{}, len(mc.Options))
	kept := make([]string, 0, domain.MultipleChoiceOptions)
	for _, o := range mc.Options {
		key := strings.ToLower(strings.TrimSpace(o))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if key == correct {
			mc.CorrectIndex = len(kept)
		}
		kept = append(kept, o)
	}
	mc.Options = kept
}

// convertUnderscoreBlanks replaces "___" runs with {{answer}} markers in
// answer order. Runs beyond the answer list become empty markers.
func convertUnderscoreBlanks(text string, answers []string) string {
	i := 0
	return clozeLines.ReplaceAllStringFunc(text, func(string) string {
		a := ""
		if i < len(answers) {
			a = answers[i]
		}
		i++
		return "{{" + a + "}}"
	})
}

func countBlanks(text string) int {
	return len(clozeBraces.FindAllStringIndex(text, -1)) + len(clozeLines.FindAllStringIndex(text, -1))
}

func tidy(s string) string {
	return spaceRuns.ReplaceAllString(strings.TrimSpace(s), " ")
}

func needsTrim(s string) bool {
	return s != tidy(s)
}

type fieldText struct {
	name string
	text string
}

// textFields lists the free-text fields of a question in a stable order.
func textFields(c domain.Content) []fieldText {
	switch c.Type {
	case domain.QuestionFlashcard:
		return []fieldText{{"front", c.Flashcard.Front}, {"back", c.Flashcard.Back}}
	case domain.QuestionTrueFalse:
		return []fieldText{{"statement", c.TrueFalse.Statement}, {"justification", c.TrueFalse.Justification}}
	case domain.QuestionMultipleChoice:
		fields := []fieldText{{"question", c.MultipleChoice.Question}}
		for i, o := range c.MultipleChoice.Options {
			fields = append(fields, fieldText{fmt.Sprintf("options[%d]", i), o})
		}
		return append(fields, fieldText{"justification", c.MultipleChoice.Justification})
	case domain.QuestionCloze:
		fields := []fieldText{{"text", c.Cloze.Text}}
		for i, a := range c.Cloze.Answers {
			fields = append(fields, fieldText{fmt.Sprintf("answers[%d]", i), a})
		}
		return fields
	}
	return nil
}

func variantPresent(c domain.Content) bool {
	switch c.Type {
	case domain.QuestionFlashcard:
		return c.Flashcard != nil
	case domain.QuestionTrueFalse:
		return c.TrueFalse != nil
	case domain.QuestionMultipleChoice:
		return c.MultipleChoice != nil
	case domain.QuestionCloze:
		return c.Cloze != nil
	}
	return false
}

func distinctFold(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return set
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
