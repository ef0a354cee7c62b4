package session

import "testing"

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	m := New(Config{SessionID: "sess-1", DoctorID: "doc-1", PatientID: "pat-1"})
	r.Add(m)

	got, ok := r.Get("sess-1")
	if !ok || got != m {
		t.Fatalf("Get(sess-1) = %v, %v", got, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) must report absence")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	r.Remove("sess-1")
	if _, ok := r.Get("sess-1"); ok {
		t.Error("machine still present after Remove")
	}
	r.Remove("sess-1") // idempotent
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}
