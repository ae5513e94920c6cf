package entity

// Institution is a catalog tenant and the credential used to query it.
type Institution struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Code   string `json:"code"`
	APIKey string `json:"api_key"`
}

// HasAPIKey reports whether the institution can call the catalog API.
func (i *Institution) HasAPIKey() bool {
	return i != nil && i.APIKey != ""
}

func (i *Institution) String() string {
	return "Institution(name=" + i.Name + ", code=" + i.Code + ")"
}
