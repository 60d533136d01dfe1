package domain

// Address is the flat postal record produced by reverse geocoding.
// The zero value means "unknown", never "failed".
type Address struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
}

// Empty reports whether no field was resolved.
func (a Address) Empty() bool {
	return a == Address{}
}
