package gtmpl

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fiji-flo/gtmpl/internal/testutil"
)

func TestGoldenCases(t *testing.T) {
	cases, err := testutil.LoadCases("testdata")
	if err != nil {
		t.Fatal(err)
	}
	if len(cases) == 0 {
		t.Fatal("no cases under testdata")
	}
	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			got, err := Render(c.Template, c.Context)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(c.Expected, got); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
