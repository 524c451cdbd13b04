package models

import "time"

// ReferencePrefix namespaces external ids in the store.
const ReferencePrefix = "EXT-"

// PropertyRecord is one normalized listing.
type PropertyRecord struct {
	ExternalID  string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Price    Price    `json:"price"`
	Location Location `json:"location"`
	Features Numeric  `json:"features"`

	PropertyType       string `json:"propertyType"`
	Transaction        string `json:"transaction,omitempty"`
	Status             string `json:"status"`
	EnergyRating       string `json:"energyRating,omitempty"`
	CoolingSystem      string `json:"coolingSystem,omitempty"`
	HeatingSource      string `json:"heatingSource,omitempty"`
	ExteriorType       string `json:"exteriorType,omitempty"`
	FloorType          string `json:"floorType,omitempty"`
	GardenType         string `json:"gardenType,omitempty"`
	RoofType           string `json:"roofType,omitempty"`
	ArchitecturalStyle string `json:"architecturalStyle,omitempty"`
	ParkingType        string `json:"parkingType,omitempty"`
	GasEmissionClass   string `json:"gasEmissionClass,omitempty"`
	GeneralView        string `json:"generalView,omitempty"`

	Amenities         AmenityFlags `json:"amenities"`
	ExteriorAmenities []string     `json:"exteriorAmenities"`
	InteriorAmenities []string     `json:"interiorAmenities"`
	RawFeatures       Features     `json:"rawFeatures,omitempty"`

	Media  Media   `json:"media"`
	Agency *Agency `json:"agency,omitempty"`

	URL        string    `json:"url"`
	SourceURL  string    `json:"sourceUrl"`
	CreatedAt  string    `json:"createdAt,omitempty"`
	ModifiedAt string    `json:"modifiedAt,omitempty"`
	ScrapedAt  time.Time `json:"scrapedAt"`
}

// Reference is the dedup key used by the record sinks.
func (r *PropertyRecord) Reference() string {
	return ReferencePrefix + r.ExternalID
}

// Price is an asking price.
type Price struct {
	Amount   *float64 `json:"amount"`
	Currency string   `json:"currency"`
}

// Location holds the address parts of a listing.
type Location struct {
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	Province     string `json:"province,omitempty"`
	Country      string `json:"country"`
	ZipCode      string `json:"zipCode,omitempty"`
}

// Numeric holds best-effort numeric features. Nil means unknown.
type Numeric struct {
	Rooms        *int `json:"rooms"`
	Bathrooms    *int `json:"bathrooms"`
	AreaM2       *int `json:"areaM2"`
	LotArea      *int `json:"lotArea"`
	Floor        *int `json:"floor"`
	FloorTotal   *int `json:"floorTotal"`
	YearBuilt    *int `json:"yearBuilt"`
	BalconyCount *int `json:"balconyCount"`
	KitchenCount *int `json:"kitchenCount"`
}

// Media groups the visual assets of a listing.
type Media struct {
	Images         []Image  `json:"images"`
	Floorplans     []string `json:"floorplans"`
	VideoURL       string   `json:"videoUrl,omitempty"`
	VirtualTourURL string   `json:"virtualTourUrl,omitempty"`
}

// Image is one listing photo. URL is the stored reference; SourceURL the
// address it was fetched from.
type Image struct {
	URL       string `json:"url"`
	SourceURL string `json:"sourceUrl"`
	IsPrimary bool   `json:"isPrimary"`
	Position  int    `json:"position"`
}

// Agency is the listing agent.
type Agency struct {
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	LogoURL  string `json:"logoUrl,omitempty"`
	Location string `json:"location,omitempty"`
}

// NewImages builds an ordered image list from source URLs. The first image is
// the primary one.
func NewImages(sources []string) []Image {
	images := make([]Image, 0, len(sources))
	for i, src := range sources {
		images = append(images, Image{
			URL:       src,
			SourceURL: src,
			IsPrimary: i == 0,
			Position:  i,
		})
	}
	return images
}
