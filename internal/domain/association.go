package domain

import "time"

// Association is a hunting association (LD).
type Association struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Region    string    `json:"region,omitempty"`
	KMLFile   string    `json:"kmlFile,omitempty"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AssociationSummary is the entry returned by the association list.
type AssociationSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Dashboard is the association overview.
type Dashboard struct {
	AssociationID   string    `json:"ldId"`
	AssociationName string    `json:"ldName"`
	UsersCount      int       `json:"usersCount"`
	HuntsThisMonth  int       `json:"huntsThisMonth"`
	LastSync        time.Time `json:"lastSync"`
}
