package exchange

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
)

// internalVersion is written to every internal export; imports accept any
// 2.x file.
const internalVersion = "2.0"

type internalFile struct {
	Metadata  internalMetadata `json:"metadata"`
	Questions []questionDTO    `json:"questions"`
}

type internalMetadata struct {
	Version     string         `json:"version"`
	GeneratedAt time.Time      `json:"generated_at"`
	Total       int            `json:"total"`
	ByType      map[string]int `json:"by_type"`
}

type questionDTO struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	SectionID  int            `json:"section_id"`
	Type       string         `json:"type"`
	Content    contentDTO     `json:"content"`
	Status     string         `json:"status"`
	Violations []violationDTO `json:"violations,omitempty"`
	Metadata   metadataDTO    `json:"metadata"`
	SRS        srsDTO         `json:"srs"`
	Provider   string         `json:"provider,omitempty"`
	Model      string         `json:"model,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

type contentDTO struct {
	Front         string   `json:"front,omitempty"`
	Back          string   `json:"back,omitempty"`
	Statement     string   `json:"statement,omitempty"`
	Answer        *bool    `json:"answer,omitempty"`
	Question      string   `json:"question,omitempty"`
	Options       []string `json:"options,omitempty"`
	CorrectIndex  *int     `json:"correct_index,omitempty"`
	Justification string   `json:"justification,omitempty"`
	Text          string   `json:"text,omitempty"`
	Answers       []string `json:"answers,omitempty"`
}

type violationDTO struct {
	Rule       string `json:"rule"`
	Field      string `json:"field,omitempty"`
	Message    string `json:"message"`
	Severity   string `json:"severity"`
	Repairable bool   `json:"repairable"`
}

type metadataDTO struct {
	Difficulty    string   `json:"difficulty"`
	Tags          []string `json:"tags,omitempty"`
	Subtype       string   `json:"subtype,omitempty"`
	SourceExcerpt string   `json:"source_excerpt,omitempty"`
}

type srsDTO struct {
	EaseFactor  float64   `json:"ease_factor"`
	Interval    int       `json:"interval"`
	Repetitions int       `json:"repetitions"`
	DueDate     time.Time `json:"due_date"`
}

func (c *Codec) writeInternal(w io.Writer, questions []domain.Question) error {
	file := internalFile{
		Metadata: internalMetadata{
			Version:     internalVersion,
			GeneratedAt: c.now().UTC(),
			Total:       len(questions),
			ByType:      make(map[string]int),
		},
		Questions: make([]questionDTO, 0, len(questions)),
	}
	for _, q := range questions {
		file.Metadata.ByType[string(q.Type)]++
		file.Questions = append(file.Questions, toDTO(q))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("write internal export: %w", err)
	}
	return nil
}

func (c *Codec) readInternal(r io.Reader) ([]domain.Question, error) {
	var file internalFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrInvalidInput, err)
	}
	if v := file.Metadata.Version; v != "" && !strings.HasPrefix(v, "2.") {
		return nil, fmt.Errorf("%w: unsupported export version %q", domain.ErrInvalidInput, v)
	}

	questions := make([]domain.Question, 0, len(file.Questions))
	for i, dto := range file.Questions {
		q, err := fromDTO(dto, c.now())
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func toDTO(q domain.Question) questionDTO {
	dto := questionDTO{
		ID:         q.ID,
		DocumentID: q.Origin.DocumentID,
		SectionID:  q.Origin.SectionID,
		Type:       string(q.Type),
		Content:    contentToDTO(q.Content),
		Status:     string(q.Status),
		Metadata: metadataDTO{
			Difficulty:    string(q.Metadata.Difficulty),
			Tags:          q.Metadata.Tags,
			Subtype:       q.Metadata.Subtype,
			SourceExcerpt: q.Metadata.SourceExcerpt,
		},
		SRS: srsDTO{
			EaseFactor:  q.SRS.EaseFactor,
			Interval:    q.SRS.Interval,
			Repetitions: q.SRS.Repetitions,
			DueDate:     q.SRS.DueDate.UTC(),
		},
		Provider:  string(q.Provider),
		Model:     q.Model,
		CreatedAt: q.CreatedAt.UTC(),
	}
	for _, v := range q.Violations {
		dto.Violations = append(dto.Violations, violationDTO{
			Rule:       v.Rule,
			Field:      v.Field,
			Message:    v.Message,
			Severity:   string(v.Severity),
			Repairable: v.Repairable,
		})
	}
	return dto
}

func contentToDTO(c domain.Content) contentDTO {
	var dto contentDTO
	switch {
	case c.Flashcard != nil:
		dto.Front, dto.Back = c.Flashcard.Front, c.Flashcard.Back
	case c.TrueFalse != nil:
		answer := c.TrueFalse.Answer
		dto.Statement, dto.Answer, dto.Justification = c.TrueFalse.Statement, &answer, c.TrueFalse.Justification
	case c.MultipleChoice != nil:
		idx := c.MultipleChoice.CorrectIndex
		dto.Question, dto.Options, dto.CorrectIndex = c.MultipleChoice.Question, c.MultipleChoice.Options, &idx
		dto.Justification = c.MultipleChoice.Justification
	case c.Cloze != nil:
		dto.Text, dto.Answers = c.Cloze.Text, c.Cloze.Answers
	}
	return dto
}

func fromDTO(dto questionDTO, now time.Time) (domain.Question, error) {
	qtype := domain.QuestionType(dto.Type)
	if !qtype.IsValid() {
		return domain.Question{}, fmt.Errorf("%w: question type %q", domain.ErrInvalidInput, dto.Type)
	}

	status := domain.ValidationStatus(dto.Status)
	switch status {
	case "":
		status = domain.StatusPending
	case domain.StatusPending, domain.StatusValidated, domain.StatusInvalid:
	default:
		return domain.Question{}, fmt.Errorf("%w: status %q", domain.ErrInvalidInput, dto.Status)
	}

	id := dto.ID
	if id == "" {
		id = uuid.NewString()
	}
	created := dto.CreatedAt
	if created.IsZero() {
		created = now
	}

	q := domain.Question{
		ID:      id,
		Origin:  domain.Origin{DocumentID: dto.DocumentID, SectionID: dto.SectionID},
		Type:    qtype,
		Content: contentFromDTO(qtype, dto.Content),
		Status:  status,
		Metadata: domain.QuestionMetadata{
			Difficulty:    domain.ParseDifficulty(dto.Metadata.Difficulty),
			Tags:          domain.NormaliseTags(dto.Metadata.Tags),
			Subtype:       dto.Metadata.Subtype,
			SourceExcerpt: dto.Metadata.SourceExcerpt,
		},
		SRS: domain.SRS{
			EaseFactor:  dto.SRS.EaseFactor,
			Interval:    dto.SRS.Interval,
			Repetitions: dto.SRS.Repetitions,
			DueDate:     dto.SRS.DueDate,
		},
		Provider:  domain.AIProvider(dto.Provider),
		Model:     dto.Model,
		CreatedAt: created,
	}
	if q.SRS.EaseFactor == 0 {
		q.SRS = domain.NewSRS(q.Metadata.Difficulty, created)
	}
	if len(q.Metadata.Tags) == 0 {
		q.Metadata.Tags = nil
	}
	for _, v := range dto.Violations {
		q.Violations = append(q.Violations, domain.Violation{
			Rule:       v.Rule,
			Field:      v.Field,
			Message:    v.Message,
			Severity:   domain.Severity(v.Severity),
			Repairable: v.Repairable,
		})
	}
	return q, nil
}

func contentFromDTO(qtype domain.QuestionType, dto contentDTO) domain.Content {
	switch qtype {
	case domain.QuestionTrueFalse:
		tf := domain.TrueFalse{Statement: dto.Statement, Justification: dto.Justification}
		if dto.Answer != nil {
			tf.Answer = *dto.Answer
		}
		return domain.NewTrueFalseContent(tf)
	case domain.QuestionMultipleChoice:
		mc := domain.MultipleChoice{Question: dto.Question, Options: dto.Options, Justification: dto.Justification}
		if dto.CorrectIndex != nil {
			mc.CorrectIndex = *dto.CorrectIndex
		}
		return domain.NewMultipleChoiceContent(mc)
	case domain.QuestionCloze:
		return domain.NewClozeContent(domain.Cloze{Text: dto.Text, Answers: dto.Answers})
	default:
		return domain.NewFlashcardContent(domain.Flashcard{Front: dto.Front, Back: dto.Back})
	}
}
