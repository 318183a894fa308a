package sqlquery

import "testing"

func TestIsSingleSelect(t *testing.T) {
	cases := map[string]bool{
		"SELECT 1":                         true,
		"  select * from chat_sessions  ":  true,
		"select 1; drop table users":       false,
		"delete from chat_sessions":        false,
		"SELECT 1; SELECT 2":                false,
		"":                                 false,
	}
	for q, want := range cases {
		if got := isSingleSelect(q); got != want {
			t.Errorf("isSingleSelect(%q) = %v, want %v", q, got, want)
		}
	}
}

func TestNewWithNilPoolReturnsNil(t *testing.T) {
	if New(nil) != nil {
		t.Error("New(nil) should return nil so callers skip registering the tool")
	}
}
