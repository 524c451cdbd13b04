package crawler

import (
	"bytes"
	"encoding/json"
	"strings"
)

// flexString decodes a JSON string or number into a string.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		// Objects and booleans carry no usable text.
		*s = ""
		return nil
	}
	*s = flexString(n.String())
	return nil
}

func (s flexString) String() string { return string(s) }

// PropertyPayload is the properties-hydration document.
type PropertyPayload struct {
	ID          flexString `json:"id"`
	Title       flexString `json:"title"`
	ShortTitle  flexString `json:"shortTitle"`
	Description flexString `json:"description"`
	Type        flexString `json:"type"`
	Price       struct {
		Amount       any        `json:"amount"`
		Raw          any        `json:"raw"`
		CurrencyCode flexString `json:"currencyCode"`
		Currency     flexString `json:"currency"`
	} `json:"price"`
	Location struct {
		Address    flexString `json:"address"`
		City       flexString `json:"city"`
		Province   flexString `json:"province"`
		Country    flexString `json:"country"`
		ZipCode    flexString `json:"zipCode"`
		PostalCode flexString `json:"postalCode"`
	} `json:"location"`
	Bedrooms  any `json:"bedrooms"`
	Bathrooms any `json:"bathrooms"`
	Surface   any `json:"surface"`
	Agency    struct {
		Name  flexString `json:"name"`
		Phone flexString `json:"phone"`
	} `json:"agency"`
}

// GalleryPayload is the gallery-hydration document.
type GalleryPayload struct {
	PropertyFloorPlans []struct {
		Src string `json:"src"`
	} `json:"propertyFloorPlans"`
	VideoURL       string `json:"videoUrl"`
	VirtualTourURL string `json:"virtualTourUrl"`
}

// ExtraFeature is one entry of the features payload. Value may be a string,
// a JSON-encoded array inside a string, or an array.
type ExtraFeature struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

type geoName struct {
	Translations map[string]string `json:"translations"`
}

func (g *geoName) english() string {
	if g == nil {
		return ""
	}
	return strings.TrimSpace(g.Translations["en_GB"])
}

// FeaturesPayload is the features-hydration document.
type FeaturesPayload struct {
	ExtraFeatures []ExtraFeature `json:"extraFeatures"`
	Type          flexString     `json:"type"`
	Transaction   flexString     `json:"transaction"`
	GeoInfo       struct {
		PPL  *geoName `json:"PPL"`
		ADM1 *geoName `json:"ADM1"`
		PCLI *geoName `json:"PCLI"`
	} `json:"geoInfo"`
	CreationTime     flexString `json:"creationTime"`
	ModificationTime flexString `json:"modificationTime"`
}

// Extra returns the value of the extra feature with the given label.
func (f *FeaturesPayload) Extra(label string) (any, bool) {
	for _, ef := range f.ExtraFeatures {
		if ef.Label == label {
			return ef.Value, true
		}
	}
	return nil, false
}

// AgencyPayload is the agency-hydration document.
type AgencyPayload struct {
	AgencyName flexString `json:"agencyName"`
	AgencyLogo struct {
		Img string `json:"img"`
	} `json:"agencyLogo"`
	AgencyPhoneCrypted flexString `json:"agencyPhoneCrypted"`
	AgencyLocation     flexString `json:"agencyLocation"`
}

// decodePayload parses an optional payload. A missing or broken payload
// leaves out untouched.
func decodePayload(text string, out any) error {
	if text == "" {
		return nil
	}
	return json.Unmarshal([]byte(text), out)
}

// isEmptyObject reports whether a payload carries no keys at all.
func isEmptyObject(text string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return true
	}
	return len(m) == 0
}
