package sanitize

import "testing"

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "  Replaced the valve  ", want: "Replaced the valve"},
		{name: "tags", in: "<p>Hello <b>there</b></p>", want: "Hello there"},
		{name: "encoded tags", in: "&lt;script&gt;alert(1)&lt;/script&gt;ok", want: "alert(1)ok"},
		{name: "paragraphs", in: "Line one\r\n\r\n\r\n\r\nLine   two", want: "Line one\n\nLine two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.in); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTextPtr(t *testing.T) {
	if TextPtr(nil) != nil {
		t.Fatal("nil must stay nil")
	}
	in := " <i>note</i> "
	if got := TextPtr(&in); *got != "note" {
		t.Fatalf("got %q", *got)
	}
}
