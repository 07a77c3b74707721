package v1

import (
	"fmt"
	"strings"
	"time"
)

// Condition is the normalized condition of a second-hand listing.
type Condition string

const (
	ConditionExcellent Condition = "Excellent"
	ConditionGood      Condition = "Good"
	ConditionFair      Condition = "Fair"
	ConditionPoor      Condition = "Poor"
)

// Category classifies a canonical device.
type Category string

const (
	CategoryPhone      Category = "phone"
	CategoryLaptop     Category = "laptop"
	CategoryTablet     Category = "tablet"
	CategorySmartwatch Category = "smartwatch"
	CategoryOther      Category = "other"
)

// ValidCategory reports whether c is one of the known device categories.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryPhone, CategoryLaptop, CategoryTablet, CategorySmartwatch, CategoryOther:
		return true
	}
	return false
}

// RawListing is one listing as returned by a source adapter, before
// normalization. Adapters stamp Platform; everything else comes from
// the marketplace page or API payload.
type RawListing struct {
	// Title is the free-text listing title (e.g. "iphone 13 pro max 256gb").
	Title string `json:"title"`

	// Price is the asking price in the smallest currency unit.
	// Listings with a zero or negative price are skipped during ingestion.
	Price int64 `json:"price"`

	// RawCondition is the free-text condition phrase from the source
	// (e.g. "like new", "slightly used"). Normalized during ingestion.
	RawCondition string `json:"raw_condition"`

	// Location is the seller-reported location string.
	Location string `json:"location"`

	// URL uniquely identifies the real-world listing. It is the dedup key:
	// re-observing the same URL updates the existing Price row.
	URL string `json:"url"`

	// Platform is the source platform identifier, stamped by the adapter
	// (or the orchestrator on its behalf).
	Platform string `json:"platform"`

	// Category is optionally supplied by the adapter. When empty, the model
	// normalizer infers it from the title.
	Category Category `json:"category,omitempty"`

	ImageURL   string `json:"image_url,omitempty"`
	SellerName string `json:"seller_name,omitempty"`
}

// Validate checks the fields the ingestion engine requires. A listing that
// fails validation is skipped and counted, never fatal to its batch.
func (l *RawListing) Validate() error {
	if strings.TrimSpace(l.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.TrimSpace(l.URL) == "" {
		return fmt.Errorf("url is required")
	}
	if l.Price <= 0 {
		return fmt.Errorf("price must be > 0")
	}
	return nil
}

// Device is a canonical catalog entry. Exactly one Device exists per distinct
// canonical (brand, model) pair; ModelSlug never changes after creation.
type Device struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Brand     string    `json:"brand"`
	Category  Category  `json:"category"`
	ModelSlug string    `json:"model_slug"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Price is one observed listing, keyed by source URL.
type Price struct {
	ID         int64     `json:"id"`
	DeviceID   string    `json:"device_id"`
	Platform   string    `json:"platform"`
	Price      int64     `json:"price"`
	Condition  Condition `json:"condition"`
	Location   string    `json:"location"`
	SellerName string    `json:"seller_name,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	URL        string    `json:"url"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// RunStatus is the lifecycle state of one orchestration run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusError   RunStatus = "error"
)

// RunLog is the append-only audit record of one orchestration run.
// Created at run start (status running), finalized exactly once at run end.
type RunLog struct {
	ID           string    `json:"id"`
	Platform     string    `json:"platform"` // platform scope, or "all"
	Status       RunStatus `json:"status"`
	ItemsScraped int       `json:"items_scraped"`
	ItemsAdded   int       `json:"items_added"`
	ItemsUpdated int       `json:"items_updated"`
	ItemsSkipped int       `json:"items_skipped"`
	DurationMs   int64     `json:"duration_ms"`
	Errors       []string  `json:"errors,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
}
