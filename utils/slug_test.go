package utils

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Red Bicycle", "red-bicycle"},
		{"  lamp  ", "lamp"},
		{"Crème Brûlée", "creme-brulee"},
		{"fire   hydrant!!", "fire-hydrant"},
		{"ALREADY-SLUGGED", "already-slugged"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
