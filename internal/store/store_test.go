package store

import (
	"errors"
	"sort"
	"testing"
)

// backends under test; the surreal backend is covered by the integration suite.
func testStores(t *testing.T) map[string]Store {
	t.Helper()

	file, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	return map[string]Store{
		"memory": NewMemory(),
		"file":   file,
	}
}

func TestGetSetDelete(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get("jchat_user_id"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get on empty store = %v, want ErrNotFound", err)
			}

			if err := s.Set("jchat_user_id", []byte(`"abc"`)); err != nil {
				t.Fatalf("Set: %v", err)
			}

			got, err := s.Get("jchat_user_id")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got) != `"abc"` {
				t.Errorf("Get = %q, want %q", got, `"abc"`)
			}

			if err := s.Set("jchat_user_id", []byte(`"def"`)); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			got, _ = s.Get("jchat_user_id")
			if string(got) != `"def"` {
				t.Errorf("Get after overwrite = %q, want %q", got, `"def"`)
			}

			if err := s.Delete("jchat_user_id"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := s.Get("jchat_user_id"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get after delete = %v, want ErrNotFound", err)
			}

			// Deleting an absent key is a no-op, not an error.
			if err := s.Delete("jchat_user_id"); err != nil {
				t.Errorf("Delete absent = %v, want nil", err)
			}
		})
	}
}

func TestKeysPrefix(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			seed := map[string]string{
				"jchat_session_data_a": "{}",
				"jchat_session_data_b": "{}",
				"jchat_messages_a":     "[]",
				"jchat_user_id":        `"a"`,
			}
			for k, v := range seed {
				if err := s.Set(k, []byte(v)); err != nil {
					t.Fatalf("Set %s: %v", k, err)
				}
			}

			keys, err := s.Keys("jchat_session_data_")
			if err != nil {
				t.Fatalf("Keys: %v", err)
			}
			sort.Strings(keys)
			want := []string{"jchat_session_data_a", "jchat_session_data_b"}
			if len(keys) != len(want) {
				t.Fatalf("Keys = %v, want %v", keys, want)
			}
			for i := range want {
				if keys[i] != want[i] {
					t.Errorf("Keys[%d] = %q, want %q", i, keys[i], want[i])
				}
			}
		})
	}
}

func TestFileSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s1, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if err := s1.Set("jchat_history_x", []byte(`[{"role":"user"}]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s2, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile reopen: %v", err)
	}
	got, err := s2.Get("jchat_history_x")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(got) != `[{"role":"user"}]` {
		t.Errorf("Get after reopen = %q", got)
	}
}
