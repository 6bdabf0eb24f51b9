package link

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wesm/github-issue-link/internal/api"
	"github.com/wesm/github-issue-link/internal/models"
)

// IssueClient is the subset of the GitHub client used for linking
type IssueClient interface {
	CreateIssue(ctx context.Context, form models.CreateIssueForm) (*models.IssueRecord, error)
	GetIssue(ctx context.Context, issueID string, data models.LinkIssueData) (*models.IssueRecord, error)
	AfterLinkIssue(ctx context.Context, externalIssue *models.ExternalIssue, data models.LinkIssueData) error
}

// Store persists link records
type Store interface {
	SaveExternalIssue(issue *models.ExternalIssue) (*models.ExternalIssue, error)
}

// Linker creates or links GitHub issues and records the link
type Linker struct {
	store         Store
	client        IssueClient
	integrationID int64
	logger        *slog.Logger
}

// New creates a new linker recording links under integrationID
func New(store Store, client IssueClient, integrationID int64) *Linker {
	return &Linker{
		store:         store,
		client:        client,
		integrationID: integrationID,
		logger:        slog.Default().With(slog.Int64("integration_id", integrationID)),
	}
}

// CreateAndLink opens a new GitHub issue and records it as linked
func (l *Linker) CreateAndLink(ctx context.Context, organizationID int64, form models.CreateIssueForm) (*models.ExternalIssue, error) {
	record, err := l.client.CreateIssue(ctx, form)
	if err != nil {
		return nil, err
	}

	external, err := l.save(organizationID, record)
	if err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "created and linked github issue", slog.String("key", external.Key))
	return external, nil
}

// LinkExisting records an existing GitHub issue as linked, then posts data.Comment on it
func (l *Linker) LinkExisting(ctx context.Context, organizationID int64, issueID string, data models.LinkIssueData) (*models.ExternalIssue, error) {
	record, err := l.client.GetIssue(ctx, issueID, data)
	if err != nil {
		return nil, err
	}

	external, err := l.save(organizationID, record)
	if err != nil {
		return nil, err
	}

	if err := l.client.AfterLinkIssue(ctx, external, data); err != nil {
		return external, fmt.Errorf("issue %s linked but comment failed: %w", external.Key, err)
	}

	l.logger.InfoContext(ctx, "linked github issue", slog.String("key", external.Key))
	return external, nil
}

func (l *Linker) save(organizationID int64, record *models.IssueRecord) (*models.ExternalIssue, error) {
	external, err := l.store.SaveExternalIssue(&models.ExternalIssue{
		OrganizationID: organizationID,
		IntegrationID:  l.integrationID,
		Key:            api.MakeExternalKey(record.Repo, record.Key),
		Title:          record.Title,
		Description:    record.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record link for %s#%d: %w", record.Repo, record.Key, err)
	}
	return external, nil
}

// ParseRepositoryString parses a repository string in the format "owner/name"
func ParseRepositoryString(repoStr string) (string, string, error) {
	parts := strings.Split(repoStr, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format, expected 'owner/name', got '%s'", repoStr)
	}
	return parts[0], parts[1], nil
}
