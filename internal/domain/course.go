package domain

import "time"

// CourseSummary is one entry of the eco-course list.
type CourseSummary struct {
	ID                  int     `json:"id"`
	Title               string  `json:"title"`
	ThumbnailURL        string  `json:"thumbnailUrl"`
	AreaName            string  `json:"areaName"`
	SigunguName         string  `json:"sigunguName"`
	TotalCarbonEmission float64 `json:"totalCarbonEmission"`
	DistanceKm          float64 `json:"distanceKm"`
	ViewCount           int     `json:"viewCount"`
	LikeCount           int     `json:"likeCount"`
	IsLiked             bool    `json:"isLiked"`
}

// CourseDetail is a single eco-course as shown on its detail page.
type CourseDetail struct {
	CourseSummary
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
}

// CoursesResponse wraps the course list.
type CoursesResponse struct {
	Courses []CourseSummary `json:"courses"`
}

// LikeState is returned by the like toggle.
type LikeState struct {
	IsLiked   bool `json:"isLiked"`
	LikeCount int  `json:"likeCount"`
}
