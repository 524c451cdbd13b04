package models

import (
	"encoding/json"
	"sort"
)

// Amenity is one flag of the fixed amenity vocabulary. Its value doubles as
// the column name in the relational store.
type Amenity string

const (
	HasPool             Amenity = "has_pool"
	HasGarden           Amenity = "has_garden"
	HasGarage           Amenity = "has_garage"
	NearBeach           Amenity = "near_beach"
	HasSeaView          Amenity = "has_sea_view"
	HasJacuzzi          Amenity = "has_jacuzzi"
	HasSauna            Amenity = "has_sauna"
	HasGym              Amenity = "has_gym"
	HasTerrace          Amenity = "has_terrace"
	HasElevator         Amenity = "has_elevator"
	Furnished           Amenity = "furnished"
	HasBarbequeArea     Amenity = "has_barbeque_area"
	HasBasement         Amenity = "has_basement"
	HasCourtyard        Amenity = "has_courtyard"
	HasDisabledAccess   Amenity = "has_disabled_access"
	HasGatedEntry       Amenity = "has_gated_entry"
	HasGreenhouse       Amenity = "has_greenhouse"
	HasHottub           Amenity = "has_hottub"
	HasLawn             Amenity = "has_lawn"
	HasMotherInLawUnit  Amenity = "has_mother_in_law_unit"
	HasPatio            Amenity = "has_patio"
	HasPond             Amenity = "has_pond"
	HasPorch            Amenity = "has_porch"
	HasPrivatePatio     Amenity = "has_private_patio"
	HasSportsCourt      Amenity = "has_sports_court"
	HasSprinklerSystem  Amenity = "has_sprinkler_system"
	IsWaterfront        Amenity = "is_waterfront"
	HasAttic            Amenity = "has_attic"
	HasCableSatellite   Amenity = "has_cable_satellite"
	HasDoublepaneWindow Amenity = "has_doublepane_windows"
	HasFireplace        Amenity = "has_fireplace"
	HasHandRails        Amenity = "has_hand_rails"
	HasCinema           Amenity = "has_cinema"
	HasIntercom         Amenity = "has_intercom"
	HasSecuritySystem   Amenity = "has_security_system"
	HasSkylight         Amenity = "has_skylight"
	HasVaultedCeiling   Amenity = "has_vaulted_ceiling"
	HasWetBar           Amenity = "has_wet_bar"
	HasWindowCoverings  Amenity = "has_window_coverings"
	HasTennisCourt      Amenity = "has_tennis_court"
	HasHelipad          Amenity = "has_helipad"
)

// AllAmenities lists the vocabulary in storage column order.
var AllAmenities = []Amenity{
	HasPool, HasGarden, HasGarage, NearBeach, HasSeaView, HasJacuzzi, HasSauna,
	HasGym, HasTerrace, HasElevator, Furnished, HasBarbequeArea, HasBasement,
	HasCourtyard, HasDisabledAccess, HasGatedEntry, HasGreenhouse, HasHottub,
	HasLawn, HasMotherInLawUnit, HasPatio, HasPond, HasPorch, HasPrivatePatio,
	HasSportsCourt, HasSprinklerSystem, IsWaterfront, HasAttic,
	HasCableSatellite, HasDoublepaneWindow, HasFireplace, HasHandRails,
	HasCinema, HasIntercom, HasSecuritySystem, HasSkylight, HasVaultedCeiling,
	HasWetBar, HasWindowCoverings, HasTennisCourt, HasHelipad,
}

// AmenityFlags holds the flags that were set. A flag can only be raised:
// there is no way to clear one once set.
type AmenityFlags struct {
	set map[Amenity]bool
}

// NewAmenityFlags returns flags with the given amenities raised.
func NewAmenityFlags(amenities ...Amenity) AmenityFlags {
	f := AmenityFlags{set: make(map[Amenity]bool, len(amenities))}
	for _, a := range amenities {
		f.set[a] = true
	}
	return f
}

// Set raises a flag.
func (f *AmenityFlags) Set(a Amenity) {
	if f.set == nil {
		f.set = make(map[Amenity]bool)
	}
	f.set[a] = true
}

// SetIf raises a flag when v is true. False and nil are no signal.
func (f *AmenityFlags) SetIf(a Amenity, v *bool) {
	if v != nil && *v {
		f.Set(a)
	}
}

// Has reports whether a flag is raised.
func (f AmenityFlags) Has(a Amenity) bool {
	return f.set[a]
}

// Raised returns the raised flags sorted by name.
func (f AmenityFlags) Raised() []Amenity {
	out := make([]Amenity, 0, len(f.set))
	for a := range f.set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Map returns every vocabulary flag with its value.
func (f AmenityFlags) Map() map[string]bool {
	m := make(map[string]bool, len(AllAmenities))
	for _, a := range AllAmenities {
		m[string(a)] = f.set[a]
	}
	return m
}

// MarshalJSON writes the full vocabulary so absent flags read as false.
func (f AmenityFlags) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Map())
}

// UnmarshalJSON restores raised flags.
func (f *AmenityFlags) UnmarshalJSON(data []byte) error {
	var m map[string]bool
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for k, v := range m {
		if v {
			f.Set(Amenity(k))
		}
	}
	return nil
}
