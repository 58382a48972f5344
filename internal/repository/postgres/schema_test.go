package postgres

import (
	"strings"
	"testing"
)

func TestNewTableNames(t *testing.T) {
	tables := NewTableNames("dev_")
	if tables.Conversations != "dev_conversations" || tables.Messages != "dev_messages" || tables.UserSettings != "dev_user_settings" {
		t.Errorf("tables = %+v", tables)
	}
}

func TestSchema(t *testing.T) {
	tables := NewTableNames("test_")
	schema := strings.Join(tables.Schema(), "\n")

	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS test_conversations",
		"REFERENCES test_conversations (id) ON DELETE CASCADE",
		"CREATE TABLE IF NOT EXISTS test_user_settings",
		"content JSONB NOT NULL",
	} {
		if !strings.Contains(schema, want) {
			t.Errorf("schema missing %q", want)
		}
	}

	drops := tables.DropStatements()
	if len(drops) != 3 || !strings.Contains(drops[0], "test_messages") {
		t.Errorf("drop order = %v", drops)
	}
}
