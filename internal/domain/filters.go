package domain

// CourseFilters narrows the eco-course list. Zero values mean "no filter".
// Two filters with equal fields select the same cached list.
type CourseFilters struct {
	AreaName    string `json:"areaName,omitempty"`
	SigunguName string `json:"sigunguName,omitempty"`
	Tag         string `json:"tag,omitempty"`
}

// IsZero reports whether no filter field is set.
func (f CourseFilters) IsZero() bool {
	return f == CourseFilters{}
}
