package postgres

import "testing"

func TestSplitStatements(t *testing.T) {
	schema := `
-- content
CREATE TABLE IF NOT EXISTS a (id INT);

CREATE INDEX IF NOT EXISTS a_id ON a (id);
-- trailing comment
`
	stmts := SplitStatements(schema)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[0] != "CREATE TABLE IF NOT EXISTS a (id INT)" {
		t.Errorf("unexpected first statement %q", stmts[0])
	}
}
