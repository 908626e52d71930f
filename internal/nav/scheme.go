package nav

import "errors"

// ErrUnknownScheme is returned by NAV sources that have no record of a scheme.
var ErrUnknownScheme = errors.New("unknown scheme")

type Meta struct {
	Code      string `json:"scheme_code"`
	Name      string `json:"scheme_name"`
	FundHouse string `json:"fund_house"`
	Category  string `json:"scheme_category"`
	Type      string `json:"scheme_type"`
}

// Scheme is what a NAV source hands back: metadata plus uncleaned rows in
// whatever order the source stores them.
type Scheme struct {
	Meta Meta  `json:"meta"`
	Rows []Raw `json:"data"`
}
