package shared

// Geography claims.
const (
	PermStateAreaCodes      = "StateAreaCodes:StateAreaCodes"
	PermStateAreaCode       = "StateAreaCodes:StateAreaCode"
	PermStateAreaCodeCreate = "StateAreaCodes:Create"
	PermStateAreaCodeUpdate = "StateAreaCodes:Update"
	PermStateAreaCodeDelete = "StateAreaCodes:Delete"

	PermCountry       = "Countries:Country"
	PermCountries     = "Countries:Countries"
	PermCountryStates = "Countries:States"
	PermCountryCreate = "Countries:Create"
	PermCountryUpdate = "Countries:Update"
	PermCountryDelete = "Countries:Delete"

	PermState       = "States:State"
	PermStates      = "States:States"
	PermStateCreate = "States:Create"
	PermStateUpdate = "States:Update"
	PermStateDelete = "States:Delete"

	PermCity   = "Cities:City"
	PermCities = "Cities:Cities"
	// City mutations have always been registered under the singular module name.
	PermCityCreate = "City:Create"
	PermCityUpdate = "City:Update"
	PermCityDelete = "City:Delete"
)

// GeoScopes lists all claims related to geography tables.
func GeoScopes() []string {
	return []string{
		PermStateAreaCodes,
		PermStateAreaCode,
		PermStateAreaCodeCreate,
		PermStateAreaCodeUpdate,
		PermStateAreaCodeDelete,
		PermCountry,
		PermCountries,
		PermCountryStates,
		PermCountryCreate,
		PermCountryUpdate,
		PermCountryDelete,
		PermState,
		PermStates,
		PermStateCreate,
		PermStateUpdate,
		PermStateDelete,
		PermCity,
		PermCities,
		PermCityCreate,
		PermCityUpdate,
		PermCityDelete,
	}
}
