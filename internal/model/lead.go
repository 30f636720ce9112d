// Package model defines the lead data types shared across the pipeline.
package model

import "time"

// Status is the lifecycle state of a persisted lead.
type Status string

const (
	StatusNew       Status = "new"
	StatusQualified Status = "qualified"
	StatusContacted Status = "contacted"
	StatusConverted Status = "converted"
	StatusRejected  Status = "rejected"
)

// ValidStatus reports whether s is a member of the closed status set.
func ValidStatus(s Status) bool {
	switch s {
	case StatusNew, StatusQualified, StatusContacted, StatusConverted, StatusRejected:
		return true
	}
	return false
}

// RawBusiness is a business record as returned by the maps scraper.
// It exists only within one pipeline run until enriched.
type RawBusiness struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Address     string  `json:"address"`
	City        string  `json:"city"`
	State       string  `json:"state"`
	PostalCode  string  `json:"postal_code"`
	Country     string  `json:"country"`
	Phone       string  `json:"phone"`
	Website     string  `json:"website"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
	MapsURL     string  `json:"maps_url"`
	PlaceID     string  `json:"place_id"`
	IsClaimed   bool    `json:"is_claimed"`
	IsOpen      bool    `json:"is_open"`
	PriceLevel  string  `json:"price_level"`
}

// Lead is the persisted unit of work: a raw business plus AI enrichment.
type Lead struct {
	ID int64 `json:"id,omitempty"`

	// Identity
	Name       string `json:"name"`
	Category   string `json:"category"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`

	// Contact
	Phone   string `json:"phone"`
	Website string `json:"website"`
	Email   string `json:"email,omitempty"`

	// Reputation
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
	MapsURL     string  `json:"maps_url"`
	PlaceID     string  `json:"place_id"`

	// Flags
	IsClaimed  bool   `json:"is_claimed"`
	IsOpen     bool   `json:"is_open"`
	PriceLevel string `json:"price_level"`

	// AI outputs
	Score               int      `json:"ai_lead_score"`
	Insights            []string `json:"ai_insights"`
	Concerns            []string `json:"ai_concerns"`
	RecommendedServices []string `json:"recommended_services"`
	OutreachMessage     string   `json:"ai_outreach_message,omitempty"`

	// Email provenance: true when the address was synthesized rather than
	// returned by a lookup provider.
	EmailGuessed    bool `json:"email_guessed,omitempty"`
	EmailConfidence int  `json:"email_confidence,omitempty"`

	// Lifecycle
	Status    Status    `json:"status"`
	Source    string    `json:"source"`
	ScrapedAt time.Time `json:"scraped_at"`
	Notes     string    `json:"notes,omitempty"`

	CRMSyncedAt *time.Time `json:"crm_synced_at,omitempty"`
}

// Analysis is the parsed AI assessment for one coarse business segment.
// Cached under a category+city+rating bucket so similar businesses in the
// same segment share one analysis.
type Analysis struct {
	Score               int      `json:"score"`
	Insights            []string `json:"insights"`
	Concerns            []string `json:"concerns"`
	RecommendedServices []string `json:"recommended_services"`
}

// Stats summarizes a database snapshot for the stats command and API.
type Stats struct {
	TotalLeads    int            `json:"total_leads"`
	ByStatus      map[string]int `json:"by_status"`
	AvgScore      float64        `json:"avg_score"`
	TopCities     map[string]int `json:"top_cities"`
	TopCategories map[string]int `json:"top_categories"`
}
