package ids

import "testing"

func TestNewIsUniqueAndSortable(t *testing.T) {
	prev := New()
	for i := 0; i < 1000; i++ {
		id := New()
		if !Valid(id) {
			t.Fatalf("generated id %q is not a valid ULID", id)
		}
		if id <= prev {
			t.Fatalf("ids not monotonic: %q after %q", id, prev)
		}
		prev = id
	}
}

func TestValid(t *testing.T) {
	if Valid("") {
		t.Error("empty string should not be valid")
	}
	if Valid("not-a-ulid") {
		t.Error("garbage should not be valid")
	}
}
