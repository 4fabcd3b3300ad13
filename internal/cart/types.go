package cart

// Mode tags which backend owns the cart for the current session. The
// transition is one-way: a sign-in moves guest to member via the merge, and
// sign-out starts over with an empty guest cart.
type Mode string

const (
	ModeGuest  Mode = "guest"
	ModeMember Mode = "member"
)

// LineItem is one cart entry. LineID is server-assigned in member mode and a
// locally generated monotonic token in guest mode.
type LineItem struct {
	LineID           string `json:"line_id"`
	ItemID           int64  `json:"item_id"`
	ItemName         string `json:"item_name"`
	UnitPrice        int64  `json:"unit_price"`
	OptionLabel      string `json:"option_label"`
	OptionExtraPrice int64  `json:"option_extra_price"`
	Quantity         int    `json:"quantity"`
	IsDiscounted     bool   `json:"is_discounted"`
	DiscountPercent  int    `json:"discount_percent"`
	DeliveryFee      int64  `json:"delivery_fee"`
	ImageURL         string `json:"image_url"`
}

// Snapshot is the full cart state. It is replaced wholesale on every
// mutation; callers never hold a partially updated view.
type Snapshot struct {
	Mode  Mode       `json:"mode"`
	Lines []LineItem `json:"lines"`
}

// Clone returns a deep copy so callers cannot alias the store's state.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Mode: s.Mode}
	if s.Lines != nil {
		out.Lines = make([]LineItem, len(s.Lines))
		copy(out.Lines, s.Lines)
	}
	return out
}

// Find returns the line with the given id, or nil.
func (s Snapshot) Find(lineID string) *LineItem {
	for i := range s.Lines {
		if s.Lines[i].LineID == lineID {
			return &s.Lines[i]
		}
	}
	return nil
}

// AddInput carries the server-meaningful fields of an add-to-cart request.
// Display fields (name, image, pricing flags) are resolved by whichever side
// owns the catalog data for the cart's mode.
type AddInput struct {
	ItemID           int64  `json:"item_id"`
	Quantity         int    `json:"quantity"`
	OptionLabel      string `json:"option_label"`
	OptionExtraPrice int64  `json:"option_extra_price"`
}
