package main

import "testing"

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("GEND_TEST_STR", "value")
	if got := envStr("GEND_TEST_STR", "def"); got != "value" {
		t.Fatalf("envStr set = %q", got)
	}
	if got := envStr("GEND_TEST_UNSET", "def"); got != "def" {
		t.Fatalf("envStr unset = %q", got)
	}

	t.Setenv("GEND_TEST_INT", "42")
	if got := envInt("GEND_TEST_INT", 7); got != 42 {
		t.Fatalf("envInt set = %d", got)
	}
	t.Setenv("GEND_TEST_INT", "not-a-number")
	if got := envInt("GEND_TEST_INT", 7); got != 7 {
		t.Fatalf("envInt garbage = %d", got)
	}
}
