package app

import (
	"fmt"

	"review_sync/internal/domain"
)

// Adapters is the closed set of platform adapters.
type Adapters struct {
	Google   domain.PlatformAdapter
	Yelp     domain.PlatformAdapter
	Facebook domain.PlatformAdapter
}

func (a Adapters) For(p domain.Platform) (domain.PlatformAdapter, error) {
	var ad domain.PlatformAdapter
	switch p {
	case domain.PlatformGoogle:
		ad = a.Google
	case domain.PlatformYelp:
		ad = a.Yelp
	case domain.PlatformFacebook:
		ad = a.Facebook
	}
	if ad == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedPlatform, p)
	}
	return ad, nil
}
