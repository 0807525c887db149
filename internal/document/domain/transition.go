package domain

// TransitionPolicy decides whether a document may move between two statuses.
// It is the single place status changes are vetted.
type TransitionPolicy interface {
	Allow(kind Kind, from, to string) error
}

// Permissive accepts any transition.
type Permissive struct{}

func (Permissive) Allow(Kind, string, string) error { return nil }

// Strict enforces a transition table with accepted quotes and paid or
// cancelled invoices terminal. Staying in the same status is always allowed.
type Strict struct{}

var strictTransitions = map[Kind]map[string][]string{
	KindQuote: {
		"draft":    {"sent", "viewed", "accepted", "rejected", "expired"},
		"sent":     {"draft", "viewed", "accepted", "rejected", "expired"},
		"viewed":   {"sent", "accepted", "rejected", "expired"},
		"expired":  {"draft", "sent"},
		"rejected": {"draft"},
		"accepted": {},
	},
	KindInvoice: {
		"draft":          {"sent", "viewed", "partially_paid", "paid", "cancelled"},
		"sent":           {"draft", "viewed", "partially_paid", "paid", "overdue", "cancelled"},
		"viewed":         {"partially_paid", "paid", "overdue", "cancelled"},
		"partially_paid": {"paid", "overdue", "cancelled"},
		"overdue":        {"partially_paid", "paid", "cancelled"},
		"paid":           {},
		"cancelled":      {},
	},
}

func (Strict) Allow(kind Kind, from, to string) error {
	if from == to {
		return nil
	}
	for _, next := range strictTransitions[kind][from] {
		if next == to {
			return nil
		}
	}
	return &TransitionError{Kind: kind, From: from, To: to}
}
