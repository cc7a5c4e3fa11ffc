package services

import (
	"bytes"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"pdf-term-stats/internal/pdftext"
)

func TestPageTable_RoundTrip(t *testing.T) {
	pages := []pdftext.PageRecord{
		{PageNumber: 1, Text: "the cat sat"},
		{PageNumber: 2, Text: ""},
		{PageNumber: 3, Text: "line one\nline \"two\", with comma"},
	}

	path := filepath.Join(t.TempDir(), "pages.csv")
	if err := SavePageTable(path, pages); err != nil {
		t.Fatalf("SavePageTable: %v", err)
	}
	got, err := LoadPageTable(path)
	if err != nil {
		t.Fatalf("LoadPageTable: %v", err)
	}
	if !reflect.DeepEqual(got, pages) {
		t.Errorf("round trip = %#v, want %#v", got, pages)
	}
}

func TestWritePageTable_Header(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePageTable(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "Page Number,Extracted Text\n" {
		t.Errorf("empty table = %q", got)
	}
}

func TestReadPageTable(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []pdftext.PageRecord
		wantErr bool
	}{
		{
			name:  "missing text cell reads as empty",
			input: "Page Number,Extracted Text\n1,hello\n2\n",
			want:  []pdftext.PageRecord{{PageNumber: 1, Text: "hello"}, {PageNumber: 2, Text: ""}},
		},
		{
			name:  "columns located by name",
			input: "Extracted Text,Page Number\nalpha,7\n",
			want:  []pdftext.PageRecord{{PageNumber: 7, Text: "alpha"}},
		},
		{
			name:  "byte order mark",
			input: "\ufeffPage Number,Extracted Text\n1,x\n",
			want:  []pdftext.PageRecord{{PageNumber: 1, Text: "x"}},
		},
		{
			name:  "no page column numbers rows",
			input: "Extracted Text\na\nb\n",
			want:  []pdftext.PageRecord{{PageNumber: 1, Text: "a"}, {PageNumber: 2, Text: "b"}},
		},
		{
			name:  "header only",
			input: "Page Number,Extracted Text\n",
			want:  []pdftext.PageRecord{},
		},
		{name: "empty input", input: "", wantErr: true},
		{name: "no text column", input: "Page Number,Body\n1,x\n", wantErr: true},
		{name: "bad page number", input: "Page Number,Extracted Text\none,x\n", wantErr: true},
		{name: "bare quote", input: "Page Number,Extracted Text\n1,\"unterminated\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadPageTable(strings.NewReader(tt.input))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPageTable) {
					t.Fatalf("error = %v, want ErrInvalidPageTable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadPageTable: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestPageTexts(t *testing.T) {
	got := PageTexts([]pdftext.PageRecord{{PageNumber: 1, Text: "a"}, {PageNumber: 2}})
	if !reflect.DeepEqual(got, []string{"a", ""}) {
		t.Errorf("PageTexts = %q", got)
	}
}
