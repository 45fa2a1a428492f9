package sqlcheck_test

import (
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/askdb/pkg/sqlcheck"
)

func TestStripFences(t *testing.T) {
	cases := map[string]struct {
		input    string
		expected string
	}{
		"sql fence": {
			input:    "```sql\nSELECT * FROM batteries LIMIT 5;```",
			expected: "SELECT * FROM batteries LIMIT 5;",
		},
		"bare fence": {
			input:    "```\nSELECT 1\n```",
			expected: "SELECT 1",
		},
		"no fence": {
			input:    "SELECT 1",
			expected: "SELECT 1",
		},
		"unpaired fence": {
			input:    "```SELECT 1",
			expected: "SELECT 1",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			gt.Equal(t, sqlcheck.StripFences(tc.input), tc.expected)
		})
	}
}

func TestStagesAreIdempotent(t *testing.T) {
	inputs := []string{
		"```sql\nSELECT * FROM batteries;```",
		"  SELECT 1  ",
		"How heavy is PART-1234?",
		"PART-1 and PART-23456 and [MASKED]",
	}
	stages := map[string]sqlcheck.Stage{
		"StripFences":     sqlcheck.StripFences,
		"TrimSpace":       sqlcheck.TrimSpace,
		"MaskPartNumbers": sqlcheck.MaskPartNumbers,
	}

	for name, stage := range stages {
		t.Run(name, func(t *testing.T) {
			for _, input := range inputs {
				once := stage(input)
				gt.Equal(t, stage(once), once)
			}
		})
	}
}

func TestMaskPartNumbers(t *testing.T) {
	masked := sqlcheck.MaskPartNumbers("compare PART-1234 with PART-9876")
	gt.Equal(t, masked, "compare [MASKED] with [MASKED]")

	// Similar shapes that are not part numbers stay untouched
	gt.Equal(t, sqlcheck.MaskPartNumbers("PARTS-1234 DEPART-9"), "PARTS-1234 DEPART-9")
}

func TestApply(t *testing.T) {
	out := sqlcheck.Apply("```sql\n SELECT 1 \n```", sqlcheck.StripFences, sqlcheck.TrimSpace)
	gt.Equal(t, out, "SELECT 1")
}
