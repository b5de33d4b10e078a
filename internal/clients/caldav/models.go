package caldav

// Calendar is a collection found in the user's calendar home set.
type Calendar struct {
	Path        string
	DisplayName string
	Description string
}
