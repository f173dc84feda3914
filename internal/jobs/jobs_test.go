package jobs

import "testing"

func TestSchemaToJobRoundTrip(t *testing.T) {
	s := Schema{
		ID:     "3fa85f64-5717-4562-b3fc-2c963f66afa6",
		Kind:   string(KindIngest),
		Target: "https://example.com/a",
		Status: string(StatusPending),
	}

	job := schemaToJob(s)
	if job.Kind != KindIngest {
		t.Fatalf("expected kind %q, got %q", KindIngest, job.Kind)
	}
	if job.Target != s.Target {
		t.Fatalf("expected target %q, got %q", s.Target, job.Target)
	}
	if job.ID.String() != s.ID {
		t.Fatalf("expected id %q, got %q", s.ID, job.ID.String())
	}
}
