package render

import (
	"bytes"
	"encoding/json"
	"html/template"
	"strings"

	"github.com/codeturtle/turtle-web/internal/models/dto"
)

// ResultView is a solve result ready for the template. Empty fields hide their section.
type ResultView struct {
	ProblemStatement string
	Code             string
	CodeHTML         template.HTML
	Language         string
	TestCases        []TestCaseView
}

// TestCaseView is one test case card.
type TestCaseView struct {
	Number      int
	Input       string
	Expected    string
	Description string
}

// NewResultView builds the view for a successful response.
func NewResultView(res dto.SolveResponse) ResultView {
	code := res.Solution.BestSolution
	lang := ChooseLanguage(code, res.Language)
	v := ResultView{
		ProblemStatement: strings.TrimSpace(res.ProblemStatement),
		Code:             code,
		CodeHTML:         Highlight(code, lang),
		Language:         lang,
	}
	for i, tc := range res.TestCases {
		v.TestCases = append(v.TestCases, TestCaseView{
			Number:      i + 1,
			Input:       compactJSON(tc.Input),
			Expected:    compactJSON(tc.Expected),
			Description: tc.Description,
		})
	}
	return v
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
