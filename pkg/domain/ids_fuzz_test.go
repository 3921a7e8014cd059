package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseSetID checks that parsing never panics and that accepted input
// round-trips through String.
func FuzzParseSetID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE slot_sets;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseSetID(input)
		if err == nil {
			roundTrip, err2 := ParseSetID(id.String())
			if err2 != nil {
				t.Errorf("valid id failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed id value")
			}
			if id.IsNil() {
				t.Error("nil id was accepted")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

func FuzzParseAllIDs(f *testing.F) {
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("")
	f.Add("invalid")

	f.Fuzz(func(t *testing.T, input string) {
		_, errOwner := ParseOwnerID(input)
		_, errReviewer := ParseReviewerID(input)
		_, errConv := ParseConversationID(input)
		_, errBroadcast := ParseBroadcastID(input)

		ok := errOwner == nil
		if (errReviewer == nil) != ok || (errConv == nil) != ok || (errBroadcast == nil) != ok {
			t.Errorf("inconsistent validation for %q", input)
		}
	})
}
