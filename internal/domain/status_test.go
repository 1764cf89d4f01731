package domain

import "testing"

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Status
		wantErr bool
	}{
		{name: "lowercase good", input: "good", want: StatusGood},
		{name: "capitalized good", input: "Good", want: StatusGood},
		{name: "capitalized bad", input: "Bad", want: StatusBad},
		{name: "padded bad", input: "  BAD ", want: StatusBad},
		{name: "unknown", input: "maybe", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatus(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseStatus(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStatus(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestStatusIsUp(t *testing.T) {
	if !StatusGood.IsUp() {
		t.Error("good should be up")
	}
	if StatusBad.IsUp() {
		t.Error("bad should not be up")
	}
}
