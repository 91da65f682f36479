package core

import (
	"lawly.io/sow-wizard/internal/store"
)

// ReasonWrongAnswerCount is the validation reason for a submission whose size
// differs from the catalog's.
const ReasonWrongAnswerCount = "wrong answer count"

// Validate checks a candidate submission against the catalog. Checks run in a
// fixed order and the first failure is returned:
//
//  1. exactly one answer per catalog question (count only),
//  2. no question_id repeated,
//  3. every question_id names a catalog question and every answer_id one of its options.
func Validate(answers []store.AnswerItem, catalog []store.Question) error {
	if len(answers) != len(catalog) {
		return &ValidationError{Reason: ReasonWrongAnswerCount}
	}

	seen := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		if _, dup := seen[a.QuestionID]; dup {
			return newValidationError("duplicate question_id: %s", a.QuestionID)
		}
		seen[a.QuestionID] = struct{}{}
	}

	questions := indexCatalog(catalog)
	for _, a := range answers {
		q, ok := questions[a.QuestionID]
		if !ok {
			return newValidationError("invalid question_id: %s", a.QuestionID)
		}
		if q.Option(a.AnswerID) == nil {
			return newValidationError("invalid answer_id: %s for question: %s", a.AnswerID, a.QuestionID)
		}
	}
	return nil
}

func indexCatalog(catalog []store.Question) map[string]*store.Question {
	m := make(map[string]*store.Question, len(catalog))
	for i := range catalog {
		m[catalog[i].ID] = &catalog[i]
	}
	return m
}
