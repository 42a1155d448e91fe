package types

import "testing"

func TestDocumentValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		wantErr bool
	}{
		{
			name: "valid document",
			doc:  Document{ID: "doc-1", Source: "agency-x", CanonicalURL: "https://ex.test/a.pdf"},
		},
		{
			name:    "missing source",
			doc:     Document{ID: "doc-1", CanonicalURL: "https://ex.test/a.pdf"},
			wantErr: true,
		},
		{
			name:    "missing canonical url",
			doc:     Document{ID: "doc-1", Source: "agency-x"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVersionValidate(t *testing.T) {
	v := Version{DocumentID: "doc-1", ContentHash: "abc", ContentHashBlake3: "def", FileSize: 10}
	if err := v.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v2 := Version{DocumentID: "doc-1", ContentHash: "abc", ContentHashBlake3: "def", FileSize: 0}
	if err := v2.Validate(); err == nil {
		t.Fatal("expected error for zero file size")
	}
}

func TestPageValidate(t *testing.T) {
	p := Page{DocumentID: "doc-1", VersionID: 1, PageNumber: 0}
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for page_number < 1")
	}
	p.PageNumber = 1
	if err := p.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
