package security

import "testing"

func TestHasher_HashAndMatch(t *testing.T) {
	h := NewHasher(4) // min cost for test speed
	hash, err := h.Hash("Passw0rd!")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" || hash == "Passw0rd!" {
		t.Fatal("hash empty or equal to plaintext")
	}
	if !h.Match(hash, "Passw0rd!") {
		t.Error("Match should succeed for correct password")
	}
	if h.Match(hash, "wrong-password") {
		t.Error("Match should fail for wrong password")
	}
}

func TestHasher_MatchMalformedHash(t *testing.T) {
	h := NewHasher(4)
	if h.Match("not-a-bcrypt-hash", "anything") {
		t.Error("Match should fail for malformed hash")
	}
	if h.Match("", "anything") {
		t.Error("Match should fail for empty hash")
	}
}

func TestNewHasher_CostClamping(t *testing.T) {
	testCases := []struct {
		name string
		cost int
		want int
	}{
		{"zero uses default", 0, 10},
		{"negative uses default", -1, 10},
		{"below min clamped", 2, 4},
		{"above max clamped", 40, 31},
		{"valid kept", 12, 12},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHasher(tc.cost)
			if h.Cost != tc.want {
				t.Errorf("NewHasher(%d).Cost = %d, want %d", tc.cost, h.Cost, tc.want)
			}
		})
	}
}
