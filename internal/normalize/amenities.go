package normalize

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"sjsage522/estateworker/internal/models"
)

// Scope says which raw amenity list a keyword rule reads.
type Scope int

const (
	ScopeAny Scope = iota
	ScopeExterior
	ScopeInterior
)

// KeywordRule raises Amenity when any keyword occurs in the scoped list.
type KeywordRule struct {
	Amenity  models.Amenity
	Scope    Scope
	Keywords []string
}

// KeywordRules is the static keyword table. Every label alias below is also a
// keyword of the same flag so both paths agree on clean labels.
var KeywordRules = []KeywordRule{
	{models.HasPool, ScopeExterior, []string{"pool"}},
	{models.HasGarden, ScopeExterior, []string{"garden"}},
	{models.HasGarage, ScopeExterior, []string{"garage", "parking"}},
	{models.HasBarbequeArea, ScopeExterior, []string{"barbeque area", "barbecue area", "bbq area"}},
	{models.HasBasement, ScopeExterior, []string{"basement"}},
	{models.HasCourtyard, ScopeExterior, []string{"courtyard"}},
	{models.HasDisabledAccess, ScopeExterior, []string{"disabled access"}},
	{models.HasGatedEntry, ScopeExterior, []string{"gated entry"}},
	{models.HasGreenhouse, ScopeExterior, []string{"greenhouse"}},
	{models.HasHottub, ScopeExterior, []string{"hottub", "hot tub", "spa"}},
	{models.HasLawn, ScopeExterior, []string{"lawn"}},
	{models.HasMotherInLawUnit, ScopeExterior, []string{"mother-in-law", "mother in law"}},
	{models.HasPatio, ScopeExterior, []string{"patio"}},
	{models.HasPond, ScopeExterior, []string{"pond"}},
	{models.HasPorch, ScopeExterior, []string{"porch"}},
	{models.HasPrivatePatio, ScopeExterior, []string{"private patio"}},
	{models.HasSportsCourt, ScopeExterior, []string{"sports court"}},
	{models.HasSprinklerSystem, ScopeExterior, []string{"sprinkler system"}},
	{models.IsWaterfront, ScopeExterior, []string{"waterfront"}},

	{models.HasAttic, ScopeInterior, []string{"attic"}},
	{models.HasCableSatellite, ScopeInterior, []string{"cable", "satellite"}},
	{models.HasDoublepaneWindow, ScopeInterior, []string{"doublepane windows", "double pane windows"}},
	{models.HasElevator, ScopeInterior, []string{"elevator", "lift"}},
	{models.HasFireplace, ScopeInterior, []string{"fireplace"}},
	{models.Furnished, ScopeInterior, []string{"furnished"}},
	{models.HasHandRails, ScopeInterior, []string{"hand rails"}},
	{models.HasCinema, ScopeInterior, []string{"home theater", "cinema"}},
	{models.HasIntercom, ScopeInterior, []string{"intercom"}},
	{models.HasJacuzzi, ScopeInterior, []string{"jacuzzi", "jetted bath tub"}},
	{models.HasSauna, ScopeInterior, []string{"sauna"}},
	{models.HasSecuritySystem, ScopeInterior, []string{"security system"}},
	{models.HasSkylight, ScopeInterior, []string{"skylight"}},
	{models.HasVaultedCeiling, ScopeInterior, []string{"vaulted ceiling"}},
	{models.HasWetBar, ScopeInterior, []string{"wet bar"}},
	{models.HasWindowCoverings, ScopeInterior, []string{"window coverings"}},

	{models.HasGym, ScopeAny, []string{"gym"}},
	{models.HasTerrace, ScopeAny, []string{"terrace"}},
	{models.HasSeaView, ScopeAny, []string{"sea view"}},
	{models.NearBeach, ScopeAny, []string{"beachfront"}},
	{models.HasTennisCourt, ScopeAny, []string{"tennis court"}},
	{models.HasHelipad, ScopeAny, []string{"helipad"}},
}

// labelAliases maps canonical lower-case amenity labels to flags.
var labelAliases = map[string]models.Amenity{
	"pool":                models.HasPool,
	"swimming pool":       models.HasPool,
	"garden":              models.HasGarden,
	"garage":              models.HasGarage,
	"parking":             models.HasGarage,
	"jacuzzi":             models.HasJacuzzi,
	"sauna":               models.HasSauna,
	"gym":                 models.HasGym,
	"terrace":             models.HasTerrace,
	"elevator":            models.HasElevator,
	"lift":                models.HasElevator,
	"sea view":            models.HasSeaView,
	"beachfront":          models.NearBeach,
	"furnished":           models.Furnished,
	"barbecue area":       models.HasBarbequeArea,
	"barbeque area":       models.HasBarbequeArea,
	"bbq area":            models.HasBarbequeArea,
	"basement":            models.HasBasement,
	"courtyard":           models.HasCourtyard,
	"disabled access":     models.HasDisabledAccess,
	"gated entry":         models.HasGatedEntry,
	"greenhouse":          models.HasGreenhouse,
	"hot tub":             models.HasHottub,
	"hottub":              models.HasHottub,
	"spa":                 models.HasHottub,
	"lawn":                models.HasLawn,
	"patio":               models.HasPatio,
	"pond":                models.HasPond,
	"porch":               models.HasPorch,
	"private patio":       models.HasPrivatePatio,
	"sports court":        models.HasSportsCourt,
	"sprinkler system":    models.HasSprinklerSystem,
	"waterfront":          models.IsWaterfront,
	"attic":               models.HasAttic,
	"cable/satellite":     models.HasCableSatellite,
	"double pane windows": models.HasDoublepaneWindow,
	"doublepane windows":  models.HasDoublepaneWindow,
	"fireplace":           models.HasFireplace,
	"hand rails":          models.HasHandRails,
	"cinema":              models.HasCinema,
	"home theater":        models.HasCinema,
	"intercom":            models.HasIntercom,
	"security system":     models.HasSecuritySystem,
	"skylight":            models.HasSkylight,
	"vaulted ceiling":     models.HasVaultedCeiling,
	"wet bar":             models.HasWetBar,
	"window coverings":    models.HasWindowCoverings,
	"tennis court":        models.HasTennisCourt,
	"helipad":             models.HasHelipad,
}

// booleanFeatures are feature labels whose value is a yes/no signal.
var booleanFeatures = []struct {
	amenity models.Amenity
	labels  []string
}{
	{models.HasSeaView, []string{"Sea view"}},
	{models.NearBeach, []string{"Beachfront", "Distance to beach"}},
	{models.HasPool, []string{"Pool", "Swimming pool"}},
	{models.HasGarden, []string{"Garden"}},
	{models.HasGarage, []string{"Garage", "Parking"}},
	{models.HasJacuzzi, []string{"Jacuzzi"}},
	{models.HasSauna, []string{"Sauna"}},
	{models.HasGym, []string{"Gym"}},
	{models.HasTerrace, []string{"Terrace"}},
	{models.HasElevator, []string{"Elevator"}},
	{models.Furnished, []string{"Furnished"}},
}

var seaTerms = []string{"sea", "ocean", "waterfront", "beach", "marina"}

// LookupLabel maps a clean amenity label to its flag.
func LookupLabel(label string) (models.Amenity, bool) {
	a, ok := labelAliases[strings.ToLower(strings.TrimSpace(label))]
	return a, ok
}

// FlagsFromLabels raises flags for every recognised clean label.
func FlagsFromLabels(labels []string) models.AmenityFlags {
	var flags models.AmenityFlags
	for _, l := range labels {
		if a, ok := LookupLabel(l); ok {
			flags.Set(a)
		}
	}
	return flags
}

// FlagsFromKeywords applies the keyword table to free-text amenity lists.
func FlagsFromKeywords(exterior, interior []string) models.AmenityFlags {
	var flags models.AmenityFlags
	all := append(append([]string{}, exterior...), interior...)
	for _, rule := range KeywordRules {
		list := all
		switch rule.Scope {
		case ScopeExterior:
			list = exterior
		case ScopeInterior:
			list = interior
		}
		if AmenityKeywordMatch(list, rule.Keywords) {
			flags.Set(rule.Amenity)
		}
	}
	return flags
}

// DeriveAmenities combines the label path, the keyword path and the
// structured feature list into one flag set.
func DeriveAmenities(exterior, interior []string, features models.Features) models.AmenityFlags {
	flags := FlagsFromKeywords(exterior, interior)
	for _, a := range FlagsFromLabels(append(append([]string{}, exterior...), interior...)).Raised() {
		flags.Set(a)
	}

	for label, value := range features {
		if value.Kind() != models.FeaturePresent {
			continue
		}
		if a, ok := LookupLabel(label); ok {
			flags.Set(a)
		}
	}

	for _, bf := range booleanFeatures {
		for _, label := range bf.labels {
			if v, ok := features[label]; ok {
				flags.SetIf(bf.amenity, NormalizeBoolean(v.Raw()))
			}
		}
	}

	if view, ok := features.Get("View", "Views"); ok {
		if AmenityKeywordMatch(view.List(), seaTerms) {
			flags.Set(models.HasSeaView)
			flags.Set(models.NearBeach)
		}
	}
	return flags
}

// Vocabulary collects every distinct amenity label seen across listings.
type Vocabulary struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewVocabulary returns an empty vocabulary.
func NewVocabulary() *Vocabulary {
	return &Vocabulary{seen: make(map[string]struct{})}
}

// Add records labels. Blank labels are ignored.
func (v *Vocabulary) Add(lists ...[]string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, list := range lists {
		for _, label := range list {
			if label = strings.TrimSpace(label); label != "" {
				v.seen[label] = struct{}{}
			}
		}
	}
}

// Sorted returns the labels in lexical order.
func (v *Vocabulary) Sorted() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.seen))
	for label := range v.seen {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON writes the sorted label list.
func (v *Vocabulary) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Sorted())
}
