package linkup

import (
	"fmt"
	"strings"
)

// Region denotes a geographic API region of the LibreLinkUp service
type Region string

const (

	// RegionGlobal denotes the global endpoint (the service may redirect to a
	// regional one during login)
	RegionGlobal Region = "global"

	// RegionAE denotes the United Arab Emirates endpoint
	RegionAE Region = "ae"

	// RegionAP denotes the Asia-Pacific endpoint
	RegionAP Region = "ap"

	// RegionAU denotes the Australia endpoint
	RegionAU Region = "au"

	// RegionCA denotes the Canada endpoint
	RegionCA Region = "ca"

	// RegionDE denotes the Germany endpoint
	RegionDE Region = "de"

	// RegionEU denotes the Europe endpoint
	RegionEU Region = "eu"

	// RegionEU2 denotes the second Europe endpoint
	RegionEU2 Region = "eu2"

	// RegionFR denotes the France endpoint
	RegionFR Region = "fr"

	// RegionJP denotes the Japan endpoint
	RegionJP Region = "jp"

	// RegionUS denotes the United States endpoint
	RegionUS Region = "us"

	// RegionLA denotes the Latin America endpoint
	RegionLA Region = "la"

	// RegionRU denotes the Russia endpoint
	RegionRU Region = "ru"

	// RegionCN denotes the China endpoint
	RegionCN Region = "cn"
)

// defaultRegionHosts maps each known region to its API base URL
var defaultRegionHosts = map[Region]string{
	RegionGlobal: "https://api.libreview.io",
	RegionAE:     "https://api-ae.libreview.io",
	RegionAP:     "https://api-ap.libreview.io",
	RegionAU:     "https://api-au.libreview.io",
	RegionCA:     "https://api-ca.libreview.io",
	RegionDE:     "https://api-de.libreview.io",
	RegionEU:     "https://api-eu.libreview.io",
	RegionEU2:    "https://api-eu2.libreview.io",
	RegionFR:     "https://api-fr.libreview.io",
	RegionJP:     "https://api-jp.libreview.io",
	RegionUS:     "https://api-us.libreview.io",
	RegionLA:     "https://api-la.libreview.io",
	RegionRU:     "https://api.libreview.ru",
	RegionCN:     "https://api-cn.myfreestyle.cn",
}

// ParseRegion parses a region code (case-insensitive). An empty code yields
// RegionGlobal, an unrecognized one fails with ErrUnknownRegion
func ParseRegion(code string) (Region, error) {
	if code == "" {
		return RegionGlobal, nil
	}

	region := Region(strings.ToLower(code))
	if _, exists := defaultRegionHosts[region]; !exists {
		return "", fmt.Errorf("%w: %q", ErrUnknownRegion, code)
	}

	return region, nil
}

// String returns the lowercase region code
func (r Region) String() string {
	return string(r)
}

// host resolves a region against the client's host table
func (c *Client) host(region Region) (string, error) {
	host, exists := c.regionHosts[region]
	if !exists {
		return "", fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}

	return host, nil
}
