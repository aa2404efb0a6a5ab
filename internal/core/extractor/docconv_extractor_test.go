package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPages(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty input",
			text: "",
			want: nil,
		},
		{
			name: "whitespace only",
			text: "  \n\t \f  \n",
			want: nil,
		},
		{
			name: "no form feeds is one page",
			text: "Dear counsel,\nplease find enclosed.",
			want: []string{"Dear counsel,\nplease find enclosed."},
		},
		{
			name: "form feeds split pages",
			text: "page one\fpage two\fpage three",
			want: []string{"page one", "page two", "page three"},
		},
		{
			name: "lines are trimmed and blank lines dropped",
			text: "  ACME000001  \n\n   Exhibit A   \f line \n",
			want: []string{"ACME000001\nExhibit A", "line"},
		},
		{
			name: "interior blank page keeps its index",
			text: "first\f   \n  \fthird",
			want: []string{"first", "", "third"},
		},
		{
			name: "trailing form feed drops the empty tail",
			text: "first\fsecond\f",
			want: []string{"first", "second"},
		},
		{
			name: "multiple trailing empties are all dropped",
			text: "only\f\f  \n\f",
			want: []string{"only"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitPages(tt.text))
		})
	}
}
