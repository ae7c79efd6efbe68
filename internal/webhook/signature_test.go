package webhook

import "testing"

func TestSignAndVerify_RoundTrip(t *testing.T) {
	secret := []byte("shh-secret")
	body := []byte(`{"event":"job.finished"}`)
	timestamp := "1700000000"

	sig := Sign(secret, body, timestamp)
	if !Verify(secret, body, timestamp, sig) {
		t.Fatal("expected generated signature to verify")
	}
}

func TestVerify_RejectsTamperedBody(t *testing.T) {
	secret := []byte("shh-secret")
	sig := Sign(secret, []byte(`{"a":1}`), "123")

	if Verify(secret, []byte(`{"a":2}`), "123", sig) {
		t.Fatal("expected tampered body to fail verification")
	}
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	sig := Sign([]byte("secret-a"), []byte("body"), "123")
	if Verify([]byte("secret-b"), []byte("body"), "123", sig) {
		t.Fatal("expected mismatched secret to fail verification")
	}
}

func TestVerify_RejectsWrongTimestamp(t *testing.T) {
	secret := []byte("shh-secret")
	sig := Sign(secret, []byte("body"), "123")
	if Verify(secret, []byte("body"), "456", sig) {
		t.Fatal("expected mismatched timestamp to fail verification")
	}
}
