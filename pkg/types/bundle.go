package types

// BundleDetails overrides an order's head counts for bundled crews. It is
// stored as jsonb on the order row.
type BundleDetails struct {
	Male   int `json:"male"`
	Female int `json:"female"`
}

func (b BundleDetails) Total() int {
	return b.Male + b.Female
}
