package parser

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantTerms    []string
		wantExcludes []string
	}{
		{
			name:      "plain terms",
			query:     "buy milk",
			wantTerms: []string{"buy", "milk"},
		},
		{
			name:      "normalised case and punctuation",
			query:     "Buy MILK!",
			wantTerms: []string{"buy", "milk"},
		},
		{
			name:         "not excludes next term",
			query:        "buy NOT bread",
			wantTerms:    []string{"buy"},
			wantExcludes: []string{"bread"},
		},
		{
			name:      "and is ignored",
			query:     "buy AND milk",
			wantTerms: []string{"buy", "milk"},
		},
		{
			name:      "tag term resolves to tag posting",
			query:     "#Errand",
			wantTerms: []string{"#errand"},
		},
		{
			name:         "exclude tag",
			query:        "buy NOT #errand",
			wantTerms:    []string{"buy"},
			wantExcludes: []string{"#errand"},
		},
		{
			name:         "exclusion only",
			query:        "NOT bread",
			wantExcludes: []string{"bread"},
		},
		{
			name:  "empty query",
			query: "   ",
		},
		{
			name:      "duplicate terms collapse",
			query:     "buy buy Buy",
			wantTerms: []string{"buy"},
		},
		{
			name:         "not keyword is case-insensitive",
			query:        "do not panic",
			wantTerms:    []string{"do"},
			wantExcludes: []string{"panic"},
		},
		{
			name:      "trailing not has no effect",
			query:     "buy NOT",
			wantTerms: []string{"buy"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Parse(tt.query)
			if tt.wantTerms == nil {
				tt.wantTerms = []string{}
			}
			if tt.wantExcludes == nil {
				tt.wantExcludes = []string{}
			}
			if !reflect.DeepEqual(q.Terms, tt.wantTerms) {
				t.Errorf("Terms = %v, want %v", q.Terms, tt.wantTerms)
			}
			if !reflect.DeepEqual(q.ExcludeTerms, tt.wantExcludes) {
				t.Errorf("ExcludeTerms = %v, want %v", q.ExcludeTerms, tt.wantExcludes)
			}
			if q.RawQuery != tt.query {
				t.Errorf("RawQuery = %q", q.RawQuery)
			}
		})
	}
}
