package models

import (
	"time"
)

// AccessToken is an installation access token issued by GitHub
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// ExpiredAt reports whether the token can no longer be used at the given instant.
// A token expiring exactly at now counts as expired.
func (t *AccessToken) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IssueRecord is the normalized view of a GitHub issue handed to callers
type IssueRecord struct {
	Key         int    `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Repo        string `json:"repo"`
}

// AssigneeChoice is one selectable assignee
type AssigneeChoice struct {
	Login       string
	DisplayName string
}

// UnassignedChoice is always offered first so that "no assignee" can be selected
var UnassignedChoice = AssigneeChoice{Login: "", DisplayName: "Unassigned"}

// IssueChoice is one selectable existing issue
type IssueChoice struct {
	Number int
	Label  string
}

// RepositoryChoice is one repository accessible to the installation
type RepositoryChoice struct {
	FullName string
	Name     string
}

// CreateIssueForm carries the fields submitted when creating an issue
type CreateIssueForm struct {
	Repo        string
	Title       string
	Description string
	// Assignee is sent as JSON null when nil
	Assignee *string
}

// LinkIssueData carries the fields submitted when linking an existing issue
type LinkIssueData struct {
	Repo          string
	ExternalIssue string
	Comment       string
}

// ExternalIssue records a tracker issue linked to a GitHub issue.
// Key has the form "owner/name#number".
type ExternalIssue struct {
	ID             string    `db:"id"`
	OrganizationID int64     `db:"organization_id"`
	IntegrationID  int64     `db:"integration_id"`
	Key            string    `db:"external_key"`
	Title          string    `db:"title"`
	Description    string    `db:"description"`
	CreatedAt      time.Time `db:"created_at"`
}
