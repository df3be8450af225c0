package pairing

// Separator joins the two participant identifiers of a paired room.
const Separator = "-"

// Mark is the tic-tac-toe symbol a participant plays with.
type Mark string

const (
	MarkX Mark = "X"
	MarkO Mark = "O"
)

// RoomKey derives the room both participants of a pair address.
//
// With a partner the two identifiers are ordered as strings and joined with
// Separator, so RoomKey(a, b) == RoomKey(b, a). Without a partner the user's
// own identifier is the (solo) room.
func RoomKey(primary, partner string) string {
	if partner == "" {
		return primary
	}
	if partner < primary {
		primary, partner = partner, primary
	}
	return primary + Separator + partner
}

// Role returns the mark self plays against partner. The identifier that sorts
// first plays X; an unpaired user always plays X.
func Role(self, partner string) Mark {
	if partner == "" || self <= partner {
		return MarkX
	}
	return MarkO
}
