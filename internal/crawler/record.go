package crawler

import (
	"fmt"
	"strings"
	"time"

	"sjsage522/estateworker/internal/models"
	"sjsage522/estateworker/internal/normalize"
)

const (
	defaultCurrency = "EUR"
	defaultCountry  = "Spain"
	defaultType     = "Other"
	defaultStatus   = "available"
)

// BuildRecord maps a raw listing to a PropertyRecord. Payload fields win over
// DOM features; DOM features fill whatever the payloads leave empty.
func BuildRecord(raw *RawListing, now time.Time) models.PropertyRecord {
	p := &raw.Property
	f := raw.DOMFeatures
	if f == nil {
		f = models.Features{}
	}
	reference := f.Text("Reference")

	rec := models.PropertyRecord{
		ExternalID:  externalID(p.ID.String(), reference, now),
		Description: firstNonEmpty(p.Description.String(), raw.Description),
		URL:         raw.URL,
		SourceURL:   raw.URL,
		CreatedAt:   raw.Features.CreationTime.String(),
		ModifiedAt:  raw.Features.ModificationTime.String(),
		ScrapedAt:   now.UTC(),
	}

	rec.Title = firstNonEmpty(p.Title.String(), p.ShortTitle.String())
	if rec.Title == "" {
		rec.Title = fmt.Sprintf("Property %s", firstNonEmpty(reference, "Unknown"))
	}

	rec.Price.Amount = normalize.ParsePrice(p.Price.Amount)
	if rec.Price.Amount == nil {
		rec.Price.Amount = normalize.ParsePrice(p.Price.Raw)
	}
	if rec.Price.Amount == nil {
		if v, ok := f.Get("Price"); ok {
			rec.Price.Amount = normalize.ParsePrice(v.Raw())
		}
	}
	rec.Price.Currency = firstNonEmpty(p.Price.CurrencyCode.String(), p.Price.Currency.String(), defaultCurrency)

	geo := &raw.Features.GeoInfo
	rec.Location = models.Location{
		Address:      firstNonEmpty(p.Location.Address.String(), f.Text("Address")),
		City:         firstNonEmpty(p.Location.City.String(), geo.PPL.english(), f.Text("City", "Town")),
		Neighborhood: f.Text("Neighborhood", "Neighbourhood"),
		Province:     firstNonEmpty(p.Location.Province.String(), geo.ADM1.english(), f.Text("Province", "Region")),
		Country:      firstNonEmpty(p.Location.Country.String(), geo.PCLI.english(), defaultCountry),
		ZipCode:      firstNonEmpty(p.Location.ZipCode.String(), p.Location.PostalCode.String(), f.Text("Zip code", "Postal code")),
	}

	rec.Features = models.Numeric{
		Rooms:        number(p.Bedrooms, f, "Bedrooms", "Rooms"),
		Bathrooms:    number(p.Bathrooms, f, "Bathrooms"),
		AreaM2:       number(p.Surface, f, "Size", "Area", "Internal size"),
		LotArea:      number(nil, f, "External size", "Lot size"),
		Floor:        number(nil, f, "Floor"),
		FloorTotal:   number(nil, f, "Floor Count", "Floors"),
		YearBuilt:    number(nil, f, "Year of construction", "Year built"),
		BalconyCount: number(nil, f, "Balcony count", "Balconies"),
		KitchenCount: number(nil, f, "Kitchens"),
	}

	rec.PropertyType = firstNonEmpty(p.Type.String(), f.Text("Type", "Property type"), raw.Features.Type.String(), defaultType)
	rec.Transaction = firstNonEmpty(raw.Features.Transaction.String(), f.Text("Transaction", "Contract"))
	rec.Status = firstNonEmpty(f.Text("Status"), defaultStatus)
	rec.EnergyRating = f.Text("Energy Rating", "Energy rating", "Energy class")
	rec.CoolingSystem = f.Text("Cooling Systems", "Cooling System", "Air conditioning")
	rec.HeatingSource = f.Text("Heating Source", "Heating")
	rec.ExteriorType = f.Text("Exterior Type")
	rec.FloorType = f.Text("Floor Type")
	rec.GardenType = f.Text("Garden Type")
	rec.RoofType = f.Text("Roof Type")
	rec.ArchitecturalStyle = f.Text("Architectural Style")
	rec.ParkingType = f.Text("Parking Type", "Car parking")
	rec.GasEmissionClass = f.Text("Gas emission Class", "Gas emission class")
	rec.GeneralView = f.Text("View", "Views")

	rec.ExteriorAmenities = nonNil(raw.Exterior)
	rec.InteriorAmenities = nonNil(raw.Interior)
	rec.Amenities = normalize.DeriveAmenities(raw.Exterior, raw.Interior, f)
	rec.RawFeatures = f

	rec.Media = models.Media{
		Images:         models.NewImages(raw.Images),
		Floorplans:     []string{},
		VideoURL:       strings.TrimSpace(raw.Gallery.VideoURL),
		VirtualTourURL: strings.TrimSpace(raw.Gallery.VirtualTourURL),
	}
	for _, plan := range raw.Gallery.PropertyFloorPlans {
		if src := strings.TrimSpace(plan.Src); src != "" {
			rec.Media.Floorplans = append(rec.Media.Floorplans, src)
		}
	}

	rec.Agency = buildAgency(raw)
	return rec
}

// externalID picks the payload id, then the Reference feature, then a
// timestamp token.
func externalID(payloadID, reference string, now time.Time) string {
	if id := strings.TrimSpace(payloadID); id != "" {
		return id
	}
	if id := normalize.FallbackID(reference); id != "" {
		return id
	}
	return fmt.Sprintf("fallback-%d", now.UnixMilli())
}

func buildAgency(raw *RawListing) *models.Agency {
	var contactName, contactPhone string
	if raw.Contact != nil {
		contactName, contactPhone = raw.Contact.Name, raw.Contact.Phone
	}
	agency := &models.Agency{
		Name:     firstNonEmpty(contactName, raw.Agency.AgencyName.String(), raw.Property.Agency.Name.String(), raw.DOMAgencyName),
		Phone:    firstNonEmpty(contactPhone, raw.Agency.AgencyPhoneCrypted.String(), raw.Property.Agency.Phone.String()),
		LogoURL:  strings.TrimSpace(raw.Agency.AgencyLogo.Img),
		Location: raw.Agency.AgencyLocation.String(),
	}
	if *agency == (models.Agency{}) {
		return nil
	}
	return agency
}

// number reads the payload value first and then the first labelled feature
// present.
func number(payload any, f models.Features, labels ...string) *int {
	if n := normalize.ExtractNumber(payload); n != nil {
		return n
	}
	for _, label := range labels {
		if v, ok := f[label]; ok {
			if n := normalize.ExtractNumber(v.Raw()); n != nil {
				return n
			}
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
