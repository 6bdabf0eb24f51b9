package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/shurcooL/githubv4"
	"github.com/wesm/github-issue-link/internal/models"
)

// searchResultLimit caps the number of issues returned by SearchIssues
const searchResultLimit = 25

// SearchIssues finds issues in repo matching query through the GraphQL search API.
// Pull requests are excluded.
func (c *GitHubClient) SearchIssues(ctx context.Context, repo, query string) ([]models.IssueChoice, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	var q struct {
		Search struct {
			Nodes []struct {
				Issue struct {
					Number githubv4.Int
					Title  githubv4.String
				} `graphql:"... on Issue"`
			}
		} `graphql:"search(query: $query, type: ISSUE, first: $first)"`
	}

	variables := map[string]interface{}{
		"query": githubv4.String(strings.TrimSpace(fmt.Sprintf("repo:%s is:issue %s", repo, query))),
		"first": githubv4.Int(searchResultLimit),
	}

	// The shared http client carries the same "token" authorization as REST calls
	client := githubv4.NewEnterpriseClient(c.graphqlURL, c.httpClient)
	if err := client.Query(ctx, &q, variables); err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}

	choices := make([]models.IssueChoice, 0, len(q.Search.Nodes))
	for _, node := range q.Search.Nodes {
		if node.Issue.Number == 0 {
			return nil, &MalformedResponseError{Field: "number"}
		}
		choices = append(choices, issueChoice(int(node.Issue.Number), string(node.Issue.Title)))
	}

	return choices, nil
}
