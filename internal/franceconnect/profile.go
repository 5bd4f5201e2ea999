// Package franceconnect models the user profile delivered by the
// FranceConnect identity broker. The redirect-based handoff and the broker
// wire protocol live outside this service; the profile arrives here already
// fetched, once per validation flow.
package franceconnect

// Gender tokens as emitted by the broker. Anything else is treated as
// unspecified.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// UserProfile is the pivot identity supplied by the broker. Immutable once
// received; owned by the validation flow that received it.
type UserProfile struct {
	BirthDate           string `json:"birthdate"`
	BirthPlace          string `json:"birthplace"`
	BirthCountry        string `json:"birthcountry"`
	Email               string `json:"email"`
	EmailVerified       bool   `json:"email_verified"`
	FamilyName          string `json:"family_name"`
	GivenName           string `json:"given_name"`
	Gender              string `json:"gender"`
	PreferredUsername   string `json:"preferred_username"`
	PhoneNumber         string `json:"phone_number"`
	PhoneNumberVerified bool   `json:"phone_number_verified"`
}
