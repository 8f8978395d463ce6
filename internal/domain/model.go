package domain

import "time"

// Core domain models. Contributions are immutable values: every lifecycle
// change goes through a copy-and-override constructor, never a mutation of a
// stored value.

// RouteContribution is a user-submitted candidate bus route.
type RouteContribution struct {
	ID            string
	SubmittedBy   string
	BusNumber     string
	BusName       string
	FromName      string
	FromLatitude  *float64
	FromLongitude *float64
	ToName        string
	ToLatitude    *float64
	ToLongitude   *float64
	DepartureTime string
	ArrivalTime   string
	Stops         []StopContribution
	Notes         string

	Status         Status
	StatusMessage  string
	SubmissionDate time.Time
	ProcessedDate  *time.Time
	SourceImageID  string // set when derived from an image contribution
}

// StopContribution is an intermediate stop on a candidate route.
type StopContribution struct {
	Name          string
	Latitude      *float64
	Longitude     *float64
	ArrivalTime   string
	DepartureTime string
	Order         int
}

// ImageContribution is a photographed schedule awaiting OCR extraction.
type ImageContribution struct {
	ID             string
	SubmittedBy    string
	ImagePath      string
	Digest         string // sha256 of the uploaded bytes
	Description    string
	ExtractedText  string
	DerivedRouteID string // route contribution created from the OCR output

	Status         Status
	StatusMessage  string
	SubmissionDate time.Time
	ProcessedDate  *time.Time
}

// WithStatus returns a copy of the contribution carrying the new status,
// message, and processed timestamp.
func (c RouteContribution) WithStatus(status Status, message string, at time.Time) RouteContribution {
	out := c
	out.Status = status
	out.StatusMessage = message
	out.ProcessedDate = &at
	return out
}

// WithStatus returns a copy of the contribution carrying the new status.
func (c ImageContribution) WithStatus(status Status, message string, at time.Time) ImageContribution {
	out := c
	out.Status = status
	out.StatusMessage = message
	out.ProcessedDate = &at
	return out
}

// WithExtraction returns a copy carrying OCR output and the derived route id.
func (c ImageContribution) WithExtraction(text, derivedRouteID string) ImageContribution {
	out := c
	out.ExtractedText = text
	out.DerivedRouteID = derivedRouteID
	return out
}

// Canonical records powering public search. Written only on approval.

type Location struct {
	ID        string
	Name      string
	Latitude  *float64
	Longitude *float64
}

type Route struct {
	ID            string
	BusNumber     string
	BusName       string
	FromLocation  Location
	ToLocation    Location
	DepartureTime string
	ArrivalTime   string
	Stops         []RouteStop
}

type RouteStop struct {
	Location      Location
	ArrivalTime   string
	DepartureTime string
	Order         int
}

// ContributionType distinguishes the two contribution shapes in interfaces
// that handle both, such as moderation and stats.
type ContributionType string

const (
	TypeRoute ContributionType = "ROUTE"
	TypeImage ContributionType = "IMAGE"
)
