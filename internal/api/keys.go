package api

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultWebBaseURL is where GitHub serves issue pages
const DefaultWebBaseURL = "https://github.com"

// MakeExternalKey builds the link key "owner/name#number"
func MakeExternalKey(repo string, number int) string {
	return fmt.Sprintf("%s#%d", repo, number)
}

// ParseExternalKey splits a link key on its last '#' into the repository and issue number
func ParseExternalKey(key string) (string, int, error) {
	idx := strings.LastIndex(key, "#")
	if idx <= 0 || idx == len(key)-1 {
		return "", 0, fmt.Errorf("invalid external issue key %q, expected 'owner/name#number'", key)
	}

	number, err := strconv.Atoi(key[idx+1:])
	if err != nil || number <= 0 {
		return "", 0, fmt.Errorf("invalid issue number in external issue key %q", key)
	}

	return key[:idx], number, nil
}

// IssueURL returns the web page of the issue referenced by key
func IssueURL(webBaseURL, key string) (string, error) {
	repo, number, err := ParseExternalKey(key)
	if err != nil {
		return "", err
	}
	if webBaseURL == "" {
		webBaseURL = DefaultWebBaseURL
	}
	return fmt.Sprintf("%s/%s/issues/%d", strings.TrimSuffix(webBaseURL, "/"), repo, number), nil
}
