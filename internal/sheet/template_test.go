package sheet

import "testing"

func TestWriteTemplate_RoundTrip(t *testing.T) {
	header := []string{"Code", "Description", "Subcategory"}
	samples := [][]string{
		{"DR-100", "Shaker door", "Doors"},
		{"DW-200", "Drawer box", "Drawers"},
	}

	data, err := WriteTemplate(header, samples)
	if err != nil {
		t.Fatalf("WriteTemplate() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("WriteTemplate() returned no bytes")
	}

	table, err := Decode(data, "template.xlsx")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	for i, h := range header {
		if table.Header[i] != h {
			t.Errorf("Header[%d] = %q, want %q", i, table.Header[i], h)
		}
	}
	if len(table.Rows) != len(samples) {
		t.Fatalf("Rows length = %d, want %d", len(table.Rows), len(samples))
	}
	for i, row := range samples {
		for j, v := range row {
			if got := table.Cell(table.Rows[i], j); got != v {
				t.Errorf("Cell(%d,%d) = %q, want %q", i, j, got, v)
			}
		}
	}
}

func TestWriteTemplate_HeaderOnly(t *testing.T) {
	data, err := WriteTemplate([]string{"Name", "Price"}, nil)
	if err != nil {
		t.Fatalf("WriteTemplate() error = %v", err)
	}

	table, err := Decode(data, "template.xlsx")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(table.Rows) != 0 {
		t.Errorf("Rows length = %d, want 0", len(table.Rows))
	}
}
