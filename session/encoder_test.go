package session

import (
	"strings"
	"testing"
)

func TestEncodeDecodeEmptyFields(t *testing.T) {
	sess := &Session{
		Login:     LoginNone,
		Reset:     ResetNone,
		CreatedAt: 1700000000,
		ExpiresAt: 1700003600,
	}

	encoded, err := Encode(sess)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Login != LoginNone || got.Reset != ResetNone {
		t.Fatalf("states changed: %+v", got)
	}
	if got.CreatedAt != sess.CreatedAt || got.ExpiresAt != sess.ExpiresAt {
		t.Fatalf("timestamps changed: %+v", got)
	}
}

func TestEncodeRejectsOverlongField(t *testing.T) {
	sess := &Session{LoginEmail: strings.Repeat("a", 256)}
	if _, err := Encode(sess); err == nil {
		t.Fatal("expected error for overlong field")
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	sess := &Session{CreatedAt: 1, ExpiresAt: 2}
	encoded, err := Encode(sess)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	encoded[0] = 99
	if _, err := Decode(encoded); err == nil {
		t.Fatal("expected error for unknown version")
	}
}

func TestDecodeRejectsInvalidStates(t *testing.T) {
	sess := &Session{CreatedAt: 1, ExpiresAt: 2}
	encoded, err := Encode(sess)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	bad := append([]byte(nil), encoded...)
	bad[1] = byte(LoginAuthenticated) + 1
	if _, err := Decode(bad); err == nil {
		t.Fatal("expected error for invalid login state")
	}

	bad = append([]byte(nil), encoded...)
	bad[2] = byte(ResetAuthorized) + 1
	if _, err := Decode(bad); err == nil {
		t.Fatal("expected error for invalid reset state")
	}
}

// FuzzDecode exercises the binary decoder with arbitrary inputs. Goal:
// no panics, graceful errors for malformed data.
func FuzzDecode(f *testing.F) {
	sess := &Session{
		Login:       LoginAwaitingCode,
		LoginEmail:  "ana@example.com",
		Reset:       ResetAwaitingCode,
		ResetEmail:  "ana@example.com",
		ResetUserID: "u-1",
		CreatedAt:   1700000000,
		ExpiresAt:   1700003600,
	}
	encoded, err := Encode(sess)
	if err == nil {
		f.Add(encoded)
		if len(encoded) > 10 {
			f.Add(encoded[:10])
		}
	}
	f.Add([]byte{})
	f.Add([]byte{1})
	f.Add([]byte{255, 255, 255})

	f.Fuzz(func(t *testing.T, data []byte) {
		s, err := Decode(data)
		if err != nil {
			return
		}
		if _, err := Encode(s); err != nil {
			t.Fatalf("re-encode of decoded session failed: %v", err)
		}
	})
}
