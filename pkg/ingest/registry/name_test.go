package registry

import "testing"

func TestNextVersionName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Precision", "Precision v2"},
		{"Precision v2", "Precision v3"},
		{"Precision v9", "Precision v10"},
		{"Precision v10", "Precision v11"},
		{"Long Context v2 Final", "Long Context v2 Final v2"},
		{"v2", "v2 v2"},
		{"", " v2"},
	}
	for _, tc := range cases {
		if got := nextVersionName(tc.in); got != tc.want {
			t.Errorf("nextVersionName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
