package guid

import (
	"strings"
	"testing"
)

func TestMintGUIDs_Clamp(t *testing.T) {
	tests := []struct {
		count int
		want  int
	}{
		{-1, 0},
		{0, 0},
		{5, 5},
		{MaxMintCount, MaxMintCount},
		{100000, MaxMintCount},
	}

	for _, tt := range tests {
		if got := len(MintGUIDs(tt.count, "")); got != tt.want {
			t.Errorf("len(MintGUIDs(%d)) = %d, ожидается %d", tt.count, got, tt.want)
		}
	}
}

func TestMintGUIDs_DistinctAndValid(t *testing.T) {
	ids := MintGUIDs(500, "dg.4503/")
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if !strings.HasPrefix(id, "dg.4503/") {
			t.Fatalf("%q без префикса", id)
		}
		if err := ValidateDID(id); err != nil {
			t.Fatalf("ValidateDID(%q): %v", id, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("повторный идентификатор %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestMintRev(t *testing.T) {
	prev := ""
	for i := 0; i < 100; i++ {
		rev := MintRev()
		if !ValidRev(rev) {
			t.Fatalf("MintRev() = %q: ожидается 8 hex-символов", rev)
		}
		if rev == prev {
			t.Fatalf("два подряд одинаковых токена %q", rev)
		}
		prev = rev
	}
}

func TestValidateDID(t *testing.T) {
	tests := []struct {
		did     string
		wantErr bool
	}{
		{"11111111-1111-4111-8111-111111111111", false},
		{"testprefix:11111111-1111-4111-8111-111111111111", false},
		{"dg.4503/11111111-1111-4111-8111-111111111111", false},
		{"11111111-1111-1111-8111-111111111111", true},
		{"11111111-1111-4111-8111-11111111111Z", true},
		{"not-a-uuid", true},
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateDID(tt.did)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateDID(%q) ошибка = %v, wantErr %v", tt.did, err, tt.wantErr)
		}
	}
}

func TestAlternate(t *testing.T) {
	if _, ok := Alternate("abc", ""); ok {
		t.Error("без префикса альтернативной формы нет")
	}
	if got, _ := Alternate("abc", "p:"); got != "p:abc" {
		t.Errorf("Alternate = %q, ожидается p:abc", got)
	}
	if got, _ := Alternate("p:abc", "p:"); got != "abc" {
		t.Errorf("Alternate = %q, ожидается abc", got)
	}
}
