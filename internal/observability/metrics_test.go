package observability

import "testing"

func TestClassifyStatus(t *testing.T) {
	cases := map[int]string{
		200: "2xx",
		204: "2xx",
		303: "3xx",
		404: "4xx",
		429: "4xx",
		502: "5xx",
		0:   "unknown",
	}
	for code, want := range cases {
		if got := classifyStatus(code); got != want {
			t.Fatalf("classifyStatus(%d) = %s, want %s", code, got, want)
		}
	}
}
