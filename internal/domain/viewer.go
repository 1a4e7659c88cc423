package domain

// Viewer is the signed-in participant. A nil *Viewer means anonymous.
type Viewer struct {
	ID     UserID `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

func (v *Viewer) UserID() UserID {
	if v == nil {
		return ""
	}
	return v.ID
}

func (v *Viewer) Author() Author {
	return Author{Avatar: v.Avatar, Name: v.Name}
}
