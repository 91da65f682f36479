package core

import (
	"fmt"
	"sort"

	"lawly.io/sow-wizard/internal/store"
)

// GenerateFragments maps validated answers to the fragments of the chosen options,
// ordered by question_order regardless of the order the answers arrive in.
// The answers must already have passed Validate; an unresolvable reference here is
// an internal error, not a user one.
func GenerateFragments(answers []store.AnswerItem, catalog []store.Question) ([]string, error) {
	questions := indexCatalog(catalog)

	sorted := make([]store.AnswerItem, len(answers))
	copy(sorted, answers)
	for _, a := range sorted {
		if _, ok := questions[a.QuestionID]; !ok {
			return nil, fmt.Errorf("fragment generation: question %s not in catalog", a.QuestionID)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return questions[sorted[i].QuestionID].Order < questions[sorted[j].QuestionID].Order
	})

	fragments := make([]string, 0, len(sorted))
	for _, a := range sorted {
		opt := questions[a.QuestionID].Option(a.AnswerID)
		if opt == nil {
			return nil, fmt.Errorf("fragment generation: option %s not in question %s", a.AnswerID, a.QuestionID)
		}
		fragments = append(fragments, opt.Fragment)
	}
	return fragments, nil
}
