package dto

import "encoding/json"

type Solution struct {
	BestSolution string `json:"bestSolution"`
}

// TestCase keeps input and expected as raw JSON; their shape is problem specific.
type TestCase struct {
	Input       json.RawMessage `json:"input"`
	Expected    json.RawMessage `json:"expected"`
	Description string          `json:"description,omitempty"`
}

type SolveResponse struct {
	Success          bool       `json:"success"`
	ProblemStatement string     `json:"problemStatement,omitempty"`
	Solution         Solution   `json:"solution"`
	Language         string     `json:"language,omitempty"`
	TestCases        []TestCase `json:"testCases,omitempty"`
	Error            string     `json:"error,omitempty"`
	Details          string     `json:"details,omitempty"`
}
