package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk shape of a question catalog. Questions are listed in
// wizard order; their position defines question_order.
type catalogFile struct {
	Questions []struct {
		ID      string         `yaml:"id"`
		Text    string         `yaml:"text"`
		Options []AnswerOption `yaml:"options"`
	} `yaml:"questions"`
}

// ParseCatalog decodes and checks a YAML catalog.
func ParseCatalog(r io.Reader) ([]Question, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if len(file.Questions) == 0 {
		return nil, fmt.Errorf("catalog has no questions")
	}

	seen := make(map[string]bool, len(file.Questions))
	questions := make([]Question, 0, len(file.Questions))
	for i, raw := range file.Questions {
		id := strings.TrimSpace(raw.ID)
		if id == "" {
			return nil, fmt.Errorf("question %d: id is required", i+1)
		}
		if seen[id] {
			return nil, fmt.Errorf("question %d: duplicate id %q", i+1, id)
		}
		seen[id] = true
		if strings.TrimSpace(raw.Text) == "" {
			return nil, fmt.Errorf("question %s: text is required", id)
		}
		if len(raw.Options) < 2 {
			return nil, fmt.Errorf("question %s: at least 2 options are required, got %d", id, len(raw.Options))
		}

		optionIDs := make(map[string]bool, len(raw.Options))
		for _, opt := range raw.Options {
			if opt.ID == "" {
				return nil, fmt.Errorf("question %s: option id is required", id)
			}
			if optionIDs[opt.ID] {
				return nil, fmt.Errorf("question %s: duplicate option id %q", id, opt.ID)
			}
			optionIDs[opt.ID] = true
		}

		questions = append(questions, Question{
			ID:      id,
			Order:   i + 1,
			Text:    raw.Text,
			Options: raw.Options,
		})
	}
	return questions, nil
}

// IngestQuestionsFromFile reads a YAML catalog and replaces the stored catalog with it.
// It returns the number of questions stored.
func (s *SQLiteStore) IngestQuestionsFromFile(ctx context.Context, filePath string) (int, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open catalog file %s: %w", filePath, err)
	}
	defer f.Close()

	questions, err := ParseCatalog(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", filePath, err)
	}
	if err := s.ReplaceQuestions(ctx, questions); err != nil {
		return 0, err
	}
	return len(questions), nil
}
