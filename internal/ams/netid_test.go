package ams

import "testing"

func TestNetIDParseRenderRoundTrip(t *testing.T) {
	cases := []string{
		"192.168.1.100.1.1",
		"0.0.0.0.0.0",
		"10.10.0.10.1.1",
		"255.255.255.255.255.255",
	}
	for _, s := range cases {
		id, err := ParseNetID(s)
		if err != nil {
			t.Fatalf("ParseNetID(%q): %v", s, err)
		}
		if got := id.String(); got != s {
			t.Errorf("render(parse(%q)) = %q, want %q", s, got, s)
		}
	}
}

func TestNetIDParseMalformed(t *testing.T) {
	cases := []string{
		"",
		"1.2.3.4.5",
		"1.2.3.4.5.6.7",
		"1.2.3.4.5.x",
		"1.2.3.4.5.256",
	}
	for _, s := range cases {
		id, err := ParseNetID(s)
		if err == nil {
			t.Errorf("ParseNetID(%q): expected error, got nil", s)
		}
		if !id.IsZero() {
			t.Errorf("ParseNetID(%q): expected zero id on error, got %v", s, id)
		}
	}
}

func TestNetIDIsZero(t *testing.T) {
	var zero NetID
	if !zero.IsZero() {
		t.Error("zero-value NetID should be IsZero")
	}
	nonZero := NetID{1, 0, 0, 0, 0, 0}
	if nonZero.IsZero() {
		t.Error("non-zero NetID should not be IsZero")
	}
}
