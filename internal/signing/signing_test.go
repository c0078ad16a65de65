package signing

import "testing"

func TestVerifyAcceptsMatchingSignature(t *testing.T) {
	secret := []byte("top-secret")
	body := []byte(`{"event":"order.created"}`)
	header := Header(secret, body)

	if !Verify(secret, body, header) {
		t.Fatalf("expected Verify to accept a signature produced by Header")
	}
}

func TestVerifyAcceptsBareHexWithoutPrefix(t *testing.T) {
	secret := []byte("top-secret")
	body := []byte(`{"event":"order.created"}`)

	if !Verify(secret, body, Sign(secret, body)) {
		t.Fatalf("expected Verify to accept a signature without the sha256= prefix")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"event":"order.created"}`)
	header := Header([]byte("correct"), body)

	if Verify([]byte("wrong"), body, header) {
		t.Fatalf("expected Verify to reject a signature computed under a different secret")
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	secret := []byte("top-secret")
	header := Header(secret, []byte(`{"event":"order.created"}`))

	if Verify(secret, []byte(`{"event":"order.cancelled"}`), header) {
		t.Fatalf("expected Verify to reject a signature computed over a different body")
	}
}
