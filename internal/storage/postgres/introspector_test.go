package postgres

import "testing"

func TestNormalizeDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"postgresql://u:p@localhost:5432/db", "postgresql://u:p@localhost:5432/db"},
		{"postgresql+psycopg://u:p@localhost/db", "postgresql://u:p@localhost/db"},
		{"postgres+psycopg2://localhost/db?sslmode=disable", "postgresql://localhost/db?sslmode=disable"},
		{"host=localhost dbname=app", "host=localhost dbname=app"},
	}
	for _, tc := range tests {
		if got := NormalizeDSN(tc.in); got != tc.want {
			t.Fatalf("NormalizeDSN(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestQualified(t *testing.T) {
	t.Parallel()

	if got, want := qualified("", "users"), `"public"."users"`; got != want {
		t.Fatalf("qualified default schema = %s, want %s", got, want)
	}
	if got, want := qualified("sales", `odd"name`), `"sales"."odd""name"`; got != want {
		t.Fatalf("qualified quoting = %s, want %s", got, want)
	}
}
