package entity

// Album is a resolved album page: its identifier, display name and the
// ordered list of item pages it links to.
type Album struct {
	ID        string
	Name      string
	URL       string
	ItemPages []string
}

// DirName is the local directory name for the album, "name (id)" when both
// are known.
func (a Album) DirName() string {
	switch {
	case a.Name == "":
		return a.ID
	case a.ID == "":
		return a.Name
	}
	return a.Name + " (" + a.ID + ")"
}
